package transport

import (
	"context"

	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/stats"
	"github.com/rileyhilliard/kstats/pkg/sshutil"
)

// SSHDialer opens a connection to host.
type SSHDialer func(ctx context.Context, host string, opts sshutil.Options) (sshutil.SSHClient, error)

// SSH runs a command over a fresh x/crypto/ssh connection per host.
type SSH struct {
	opts    sshutil.Options
	command string
	dial    SSHDialer
	log     logger.Logger
}

// SSHOption customizes an SSH transport.
type SSHOption func(*SSH)

// WithDialer replaces the dialer, mainly for tests.
func WithDialer(d SSHDialer) SSHOption {
	return func(t *SSH) { t.dial = d }
}

// WithSSHLogger sets the transport's logger.
func WithSSHLogger(l logger.Logger) SSHOption {
	return func(t *SSH) { t.log = l }
}

// NewSSH creates an SSH transport that runs command on every host.
func NewSSH(opts sshutil.Options, command string, options ...SSHOption) *SSH {
	t := &SSH{
		opts:    opts,
		command: command,
		dial: func(ctx context.Context, host string, opts sshutil.Options) (sshutil.SSHClient, error) {
			return sshutil.DialContext(ctx, host, opts)
		},
		log: logger.Noop(),
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Name implements stats.Transport.
func (t *SSH) Name() string { return "ssh" }

// Fetch dials host, runs the command and returns its stdout. The connection
// is closed when Fetch returns or ctx is cancelled, whichever comes first.
func (t *SSH) Fetch(ctx context.Context, host stats.Host) ([]byte, error) {
	client, err := t.dial(ctx, string(host), t.opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	t.log.Debug("%s: running %s", host, t.command)
	stdout, stderr, exit, err := client.Output(ctx, t.command)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if exit != 0 {
		return nil, commandFailed(errors.ErrSSH, t.command, exit, stderr)
	}
	return stdout, nil
}
