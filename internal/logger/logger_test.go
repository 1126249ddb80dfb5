package logger

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		force     bool
		expectLog bool
	}{
		{name: "logs when KSTATS_DEBUG is set", envValue: "1", expectLog: true},
		{name: "logs when forced by --verbose", force: true, expectLog: true},
		{name: "silent by default", expectLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			t.Setenv(DebugEnv, tt.envValue)
			SetDebug(tt.force)
			defer SetDebug(false)

			l := NewEnvLogger("[test]")
			l.Debug("polling %s", "node01")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "[test] polling node01")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnvLogger_Levels(t *testing.T) {
	buf := captureLog(t)

	l := NewEnvLogger("[dispatch]")
	l.Info("collected %d hosts", 3)
	l.Warn("node02 unreachable")
	l.Error("render failed")

	out := buf.String()
	assert.Contains(t, out, "[dispatch] collected 3 hosts")
	assert.Contains(t, out, "[dispatch] WARN: node02 unreachable")
	assert.Contains(t, out, "[dispatch] ERROR: render failed")
}

func TestNoopLogger(t *testing.T) {
	buf := captureLog(t)

	l := Noop()
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.Empty(t, buf.String(), "noop logger should not produce any output")
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %s", "msg")
	l.Warn("warn %s", "msg")

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, LogMessage{Level: "debug", Message: "debug msg"}, msgs[0])
	assert.True(t, l.HasLevel("warn"))
	assert.False(t, l.HasLevel("error"))

	l.Clear()
	assert.Empty(t, l.Messages())
}

func TestBufferLogger_Concurrent(t *testing.T) {
	l := NewBufferLogger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Info("host %d", i)
		}(i)
	}
	wg.Wait()

	assert.Len(t, l.Messages(), 50)
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("hello")

	assert.True(t, buf.HasLevel("info"))
}
