package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/kstats/internal/report"
	"github.com/rileyhilliard/kstats/internal/stats"
)

func TestRun_TableReport(t *testing.T) {
	h := newHarness(t, clusterFetch(t, "node2"))

	code := h.run("node[1-3]")

	assert.Equal(t, 0, code, "host failures don't fail the batch")
	out := h.stdout.String()
	assert.Contains(t, out, "node1-vm1")
	assert.Contains(t, out, "node3-vm2")
	assert.Contains(t, out, "Unreachable")
	assert.Contains(t, out, "3 (2 ok, 1 failed)")
	assert.Contains(t, out, "Failed hosts (1): node2")
	assert.ElementsMatch(t, stats.Hosts("node1", "node2", "node3"), h.fetchedHosts())
	assert.Equal(t, 1, h.releases, "transport resources released after polling")
}

func TestRun_JSONReport(t *testing.T) {
	h := newHarness(t, clusterFetch(t, "node2"))

	code := h.run("node[1-3]", "--format", "json")
	require.Equal(t, 0, code)

	var env struct {
		Success bool            `json:"success"`
		Data    report.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &env))
	assert.True(t, env.Success)
	require.Len(t, env.Data.Hosts, 3)
	assert.Equal(t, "node1", env.Data.Hosts[0].Host)
	assert.Equal(t, report.StatusFailed, env.Data.Hosts[1].Status)
	assert.Equal(t, 4, env.Data.Totals.VMs)
	assert.Equal(t, "node2", env.Data.FailedRange)
	assert.Empty(t, h.stderr.String())
}

func TestRun_YAMLReport(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run("hv[01-02]", "-o", "yaml"))

	var env struct {
		Success bool `yaml:"success"`
		Data    struct {
			Totals struct {
				Hosts int `yaml:"hosts"`
				VMs   int `yaml:"vms"`
			} `yaml:"totals"`
		} `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(h.stdout.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, 2, env.Data.Totals.Hosts)
	assert.Equal(t, 4, env.Data.Totals.VMs)
}

func TestRun_ExcludeFlag(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run("node[1-5]", "-x", "node2", "--exclude", "node[4-5]"))

	assert.ElementsMatch(t, stats.Hosts("node1", "node3"), h.fetchedHosts())
	assert.NotContains(t, h.stdout.String(), "node2")
}

func TestRun_ConfigFileAndFlagPrecedence(t *testing.T) {
	h := newHarness(t, clusterFetch(t))
	dir, err := filepath.Abs(".")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, ".kstats.yaml"), `
concurrency: 4
timeout: 12
transport: exec
exclude:
  - node2
`)

	require.Equal(t, 0, h.run("node[1-3]", "-c", "2"))

	cfg := h.config()
	assert.Equal(t, 2, cfg.Concurrency, "flag wins over file")
	assert.Equal(t, 12*time.Second, cfg.Timeout, "file wins over default")
	assert.Equal(t, "exec", cfg.Transport)
	assert.ElementsMatch(t, stats.Hosts("node1", "node3"), h.fetchedHosts())
}

func TestRun_TransportFlag(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run("node1", "--transport", "libvirt"))
	assert.Equal(t, "libvirt", h.config().Transport)
}

func TestRun_InvalidRange(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	code := h.run("node[3-1]")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, h.stderr.String(), "descending")
	assert.Empty(t, h.stdout.String())
	assert.Empty(t, h.fetchedHosts(), "no host is contacted")
	assert.Zero(t, h.releases)
}

func TestRun_InvalidRange_JSONEnvelope(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	code := h.run("node[1-", "--format", "json")
	require.Equal(t, exitUsage, code)

	var env report.Envelope
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeInvalidRange, env.Error.Code)
	assert.NotEmpty(t, h.stderr.String())
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing range", nil, "Expected one host range"},
		{"two ranges", []string{"a", "b"}, "Expected one host range"},
		{"bad timeout", []string{"node1", "--timeout", "soon"}, "valid timeout"},
		{"zero timeout", []string{"node1", "--timeout", "0"}, "Timeout must be positive"},
		{"zero concurrency", []string{"node1", "-c", "0"}, "Concurrency must be at least 1"},
		{"unknown format", []string{"node1", "--format", "xml"}, "xml"},
		{"unknown transport", []string{"node1", "--transport", "telnet"}, "telnet"},
		{"unknown flag", []string{"node1", "--bogus"}, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, clusterFetch(t))

			code := h.run(tt.args...)

			assert.Equal(t, exitUsage, code)
			assert.Contains(t, h.stderr.String(), tt.want)
			assert.Empty(t, h.fetchedHosts())
		})
	}
}

func TestRun_BareSecondsTimeout(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run("node1", "--timeout", "2.5"))
	assert.Equal(t, 2500*time.Millisecond, h.config().Timeout)
}

func TestRun_HostTimeout(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, host stats.Host) ([]byte, error) {
		if host == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return domstats(t, "vm"), nil
	})

	start := time.Now()
	code := h.run("fast,slow", "--timeout", "50ms")

	assert.Equal(t, 0, code)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, h.stdout.String(), "Timeout")
	assert.Contains(t, h.stdout.String(), "Failed hosts (1): slow")
}

func TestRun_InterruptedBatchStillRenders(t *testing.T) {
	h := newHarness(t, clusterFetch(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := h.runContext(ctx, "node[1-3]")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "Failed hosts (3): node[1-3]")
	assert.Contains(t, h.stdout.String(), "Cancelled")
	assert.Contains(t, h.stderr.String(), "Interrupted")
}

func TestRun_EmptyRange(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run(""))
	assert.Contains(t, h.stdout.String(), "No hosts to poll.")
	assert.Empty(t, h.fetchedHosts())
}

func TestRun_EverythingExcluded(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run("node[1-2]", "-x", "node[1-2]", "-o", "json"))

	var env struct {
		Data report.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &env))
	assert.Empty(t, env.Data.Hosts)
	assert.Equal(t, 0, env.Data.Totals.Hosts)
}

func TestRun_ConfirmDeclined(t *testing.T) {
	h := newHarness(t, clusterFetch(t))
	h.tty = true
	h.confirmAnswer = false

	code := h.run("node[1-300]")

	assert.Equal(t, exitFailure, code)
	assert.Equal(t, 1, h.confirmCalls)
	assert.Empty(t, h.fetchedHosts())
	assert.Contains(t, h.stderr.String(), "Aborted")
	assert.Equal(t, 1, h.releases)
}

func TestRun_ConfirmAccepted(t *testing.T) {
	h := newHarness(t, clusterFetch(t))
	h.tty = true
	h.confirmAnswer = true

	require.Equal(t, 0, h.run("node[1-300]", "-o", "json"))
	assert.Equal(t, 1, h.confirmCalls)
	assert.Len(t, h.fetchedHosts(), 300)
}

func TestRun_ConfirmSkipped(t *testing.T) {
	tests := []struct {
		name string
		tty  bool
		args []string
	}{
		{"--yes", true, []string{"node[1-300]", "--yes", "-o", "json"}},
		{"stdin not a terminal", false, []string{"node[1-300]", "-o", "json"}},
		{"below threshold", true, []string{"node[1-256]", "-o", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, clusterFetch(t))
			h.tty = tt.tty

			require.Equal(t, 0, h.run(tt.args...))
			assert.Zero(t, h.confirmCalls)
		})
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestRun_ReportWriteFailure(t *testing.T) {
	h := newHarness(t, clusterFetch(t))
	h.env.stdout = brokenWriter{}

	code := h.run("node1")

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, h.stderr.String(), "Couldn't write the report")
}

func TestRun_VerboseShowsSnippet(t *testing.T) {
	h := newHarness(t, func(context.Context, stats.Host) ([]byte, error) {
		return []byte("this is not domstats\n"), nil
	})

	require.Equal(t, 0, h.run("node1", "--verbose"))
	assert.Contains(t, h.stdout.String(), "MalformedOutput")
	assert.Contains(t, h.stdout.String(), "this is not domstats")
}

func TestRun_HostsOnly(t *testing.T) {
	h := newHarness(t, clusterFetch(t))

	require.Equal(t, 0, h.run("node[1-2]", "--hosts-only"))
	assert.Contains(t, h.stdout.String(), "✓ 2 VMs")
	assert.NotContains(t, h.stdout.String(), "node1-vm1")
}
