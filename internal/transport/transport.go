// Package transport fetches raw `virsh domstats --raw` text from a
// hypervisor. Each implementation satisfies stats.Transport and aborts its
// work when the context passed to Fetch is cancelled.
package transport

import (
	"bytes"
	"fmt"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/stats"
	"github.com/rileyhilliard/kstats/pkg/sshutil"
)

// New returns the transport selected by cfg.Transport.
func New(cfg *config.Config, log logger.Logger) (stats.Transport, error) {
	if log == nil {
		log = logger.Noop()
	}
	switch cfg.Transport {
	case config.TransportSSH, "":
		return NewSSH(sshOptions(cfg), cfg.SSH.Command, WithSSHLogger(log)), nil
	case config.TransportLibvirt:
		return NewLibvirt(cfg.Libvirt, WithLibvirtLogger(log)), nil
	case config.TransportExec:
		return NewExec(cfg.SSH, WithExecLogger(log)), nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown transport '%s'", cfg.Transport),
		"Valid values: ssh, libvirt, exec")
}

func sshOptions(cfg *config.Config) sshutil.Options {
	return sshutil.Options{
		User:                  cfg.SSH.User,
		Port:                  cfg.SSH.Port,
		IdentityFile:          cfg.SSH.IdentityFile,
		KnownHostsFile:        cfg.SSH.KnownHostsFile,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		HandshakeTimeout:      cfg.Timeout,
	}
}

// firstLine returns the first non-empty line of b, for error messages.
func firstLine(b []byte) string {
	for _, line := range bytes.Split(b, []byte("\n")) {
		if line = bytes.TrimSpace(line); len(line) > 0 {
			return string(line)
		}
	}
	return ""
}

// commandFailed builds the error for a remote command with a non-zero exit.
func commandFailed(code, command string, exit int, stderr []byte) error {
	msg := fmt.Sprintf("'%s' exited with status %d", command, exit)
	if line := firstLine(stderr); line != "" {
		msg += ": " + line
	}
	return errors.New(code, msg,
		"Check that libvirt is running on the host and that your user may run virsh")
}
