package transport

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/stats"
)

// Exec shells out to the system ssh binary, so ProxyJump, ControlMaster and
// everything else in the user's ssh setup applies unchanged.
type Exec struct {
	cfg    config.SSHConfig
	binary string
	log    logger.Logger
}

// ExecOption customizes an Exec transport.
type ExecOption func(*Exec)

// WithBinary replaces the ssh binary, mainly for tests.
func WithBinary(path string) ExecOption {
	return func(t *Exec) { t.binary = path }
}

// WithExecLogger sets the transport's logger.
func WithExecLogger(l logger.Logger) ExecOption {
	return func(t *Exec) { t.log = l }
}

// NewExec creates an exec transport.
func NewExec(cfg config.SSHConfig, opts ...ExecOption) *Exec {
	t := &Exec{cfg: cfg, binary: "ssh", log: logger.Noop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Name implements stats.Transport.
func (t *Exec) Name() string { return "exec" }

// Args returns the ssh argument list for host.
func (t *Exec) Args(host stats.Host) []string {
	args := []string{"-o", "BatchMode=yes"}
	if !t.cfg.StrictHostKeyChecking {
		args = append(args, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	}
	if t.cfg.KnownHostsFile != "" && t.cfg.StrictHostKeyChecking {
		args = append(args, "-o", "UserKnownHostsFile="+t.cfg.KnownHostsFile)
	}
	if t.cfg.User != "" {
		args = append(args, "-l", t.cfg.User)
	}
	if t.cfg.Port > 0 {
		args = append(args, "-p", strconv.Itoa(t.cfg.Port))
	}
	if t.cfg.IdentityFile != "" {
		args = append(args, "-i", t.cfg.IdentityFile)
	}
	return append(args, "--", string(host), t.cfg.Command)
}

// Fetch runs ssh for host and returns its stdout. The process is killed when
// ctx is cancelled.
func (t *Exec) Fetch(ctx context.Context, host stats.Host) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.binary, t.Args(host)...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.log.Debug("%s: %s %v", host, t.binary, cmd.Args[1:])
	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			// ssh itself exits 255 when the connection fails.
			if exitErr.ExitCode() == 255 {
				return nil, errors.New(errors.ErrExec,
					fmt.Sprintf("ssh to '%s' failed: %s", host, firstLine(stderr.Bytes())),
					"Try the same connection by hand: ssh "+string(host))
			}
			return nil, commandFailed(errors.ErrExec, t.cfg.Command, exitErr.ExitCode(), stderr.Bytes())
		}
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Couldn't start %s", t.binary),
			"Install OpenSSH or use --transport ssh")
	}
	return stdout.Bytes(), nil
}
