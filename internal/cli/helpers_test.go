package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/stats"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// domstats renders running VMs the way `virsh domstats --raw` prints them.
func domstats(t *testing.T, names ...string) []byte {
	t.Helper()
	var b bytes.Buffer
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Domain: '%s'\n", name)
		b.WriteString("  state.state=1\n")
		b.WriteString("  cpu.time=1000000000\n")
		b.WriteString("  balloon.maximum=2097152\n")
		b.WriteString("  balloon.rss=1048576\n")
		b.WriteString("  vcpu.current=2\n")
	}
	return b.Bytes()
}

// harness runs the root command against a scripted transport.
type harness struct {
	t      *testing.T
	env    *env
	stdout bytes.Buffer
	stderr bytes.Buffer

	mu      sync.Mutex
	configs []*config.Config
	fetched []stats.Host

	tty           bool
	confirmAnswer bool
	confirmCalls  int
	releases      int
}

type fetchFunc func(ctx context.Context, host stats.Host) ([]byte, error)

func newHarness(t *testing.T, fetch fetchFunc) *harness {
	t.Helper()
	isolate(t)

	h := &harness{t: t}
	h.env = &env{
		stdout: &h.stdout,
		stderr: &h.stderr,
		newTransport: func(cfg *config.Config, _ logger.Logger) (stats.Transport, error) {
			h.mu.Lock()
			h.configs = append(h.configs, cfg)
			h.mu.Unlock()
			return stats.TransportFunc(func(ctx context.Context, host stats.Host) ([]byte, error) {
				h.mu.Lock()
				h.fetched = append(h.fetched, host)
				h.mu.Unlock()
				return fetch(ctx, host)
			}), nil
		},
		confirm: func(string, string) (bool, error) {
			h.confirmCalls++
			return h.confirmAnswer, nil
		},
		stdinTTY:  func() bool { return h.tty },
		stderrTTY: func() bool { return false },
		release:   func() { h.releases++ },
		log:       logger.Noop(),
	}
	return h
}

func (h *harness) run(args ...string) int {
	return h.runContext(context.Background(), args...)
}

func (h *harness) runContext(ctx context.Context, args ...string) int {
	h.t.Helper()
	err := execute(ctx, h.env, args)
	if err == nil {
		return 0
	}
	code, ok := errors.GetExitCode(err)
	require.True(h.t, ok, "execute should only return exit errors, got %v", err)
	return code
}

func (h *harness) config() *config.Config {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(h.t, h.configs, 1)
	return h.configs[0]
}

func (h *harness) fetchedHosts() []stats.Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]stats.Host, len(h.fetched))
	copy(out, h.fetched)
	return out
}

// clusterFetch answers with two VMs per host and fails the listed hosts.
func clusterFetch(t *testing.T, unreachable ...string) fetchFunc {
	down := make(map[stats.Host]bool)
	for _, h := range unreachable {
		down[stats.Host(h)] = true
	}
	return func(_ context.Context, host stats.Host) ([]byte, error) {
		if down[host] {
			return nil, fmt.Errorf("dial tcp %s:22: connection refused", host)
		}
		return domstats(t, string(host)+"-vm1", string(host)+"-vm2"), nil
	}
}
