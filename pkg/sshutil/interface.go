package sshutil

import "context"

// SSHClient is the part of Client that command runners need.
// Both the real Client and mock implementations satisfy this interface.
type SSHClient interface {
	// Output runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Output(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string
}

var _ SSHClient = (*Client)(nil)
