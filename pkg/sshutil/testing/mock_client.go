// Package testing provides an in-memory SSH client for tests of code that
// runs commands on hypervisors.
package testing

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/kstats/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
	Delay    time.Duration // wait before answering; cancellable
	Block    bool          // never answer until ctx is cancelled
}

// MockClient simulates an SSH connection for testing.
type MockClient struct {
	mu       sync.Mutex
	host     string
	closed   bool
	commands map[string]CommandResponse // pattern -> response
	history  []string
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// ErrClosed is returned by Output after Close.
var ErrClosed = errors.New("connection closed")

// NewMockClient creates a new mock SSH client with no canned responses.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		commands: make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
	return m
}

// Output answers cmd from the registered responses. Unknown commands exit
// with 127 like a shell would.
func (m *MockClient) Output(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, ErrClosed
	}
	m.history = append(m.history, cmd)
	resp, ok := m.lookup(cmd)
	m.mu.Unlock()

	if !ok {
		return nil, []byte("command not found: " + cmd + "\n"), 127, nil
	}

	if resp.Block {
		<-ctx.Done()
		return nil, nil, -1, ctx.Err()
	}
	if resp.Delay > 0 {
		t := time.NewTimer(resp.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, nil, -1, ctx.Err()
		}
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

// lookup prefers exact matches over patterns. Callers hold m.mu.
func (m *MockClient) lookup(cmd string) (CommandResponse, bool) {
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, true
		}
	}
	return CommandResponse{}, false
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// History returns the commands run so far, in order.
func (m *MockClient) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}
