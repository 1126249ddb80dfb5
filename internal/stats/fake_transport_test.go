package stats

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakeResponse scripts how fakeTransport answers for one host.
type fakeResponse struct {
	output []byte
	err    error
	delay  time.Duration
	block  bool // wait until the context is cancelled
}

// fakeTransport is a scripted Transport that records concurrency and aborts.
type fakeTransport struct {
	mu          sync.Mutex
	responses   map[Host]fakeResponse
	fallback    fakeResponse
	calls       map[Host]int
	inFlight    int
	maxInFlight int
	aborted     int
	started     chan Host
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[Host]fakeResponse),
		calls:     make(map[Host]int),
		fallback:  fakeResponse{output: domStatsFor(2)},
	}
}

func (f *fakeTransport) on(host string, resp fakeResponse) *fakeTransport {
	f.responses[Host(host)] = resp
	return f
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Fetch(ctx context.Context, host Host) ([]byte, error) {
	f.mu.Lock()
	f.calls[host]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	resp, ok := f.responses[host]
	if !ok {
		resp = f.fallback
	}
	started := f.started
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- host
	}

	if resp.block {
		<-ctx.Done()
		f.markAborted()
		return nil, ctx.Err()
	}
	if resp.delay > 0 {
		t := time.NewTimer(resp.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			f.markAborted()
			return nil, ctx.Err()
		}
	}
	return resp.output, resp.err
}

func (f *fakeTransport) markAborted() {
	f.mu.Lock()
	f.aborted++
	f.mu.Unlock()
}

func (f *fakeTransport) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborted
}

func (f *fakeTransport) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *fakeTransport) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// domStatsFor renders n running VMs, each with 1s of CPU and 1 GiB resident.
func domStatsFor(n int) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Domain: 'vm%d'\n", i+1)
		b.WriteString("  state.state=1\n")
		b.WriteString("  cpu.time=1000000000\n")
		b.WriteString("  balloon.current=1048576\n")
		b.WriteString("  balloon.maximum=2097152\n")
		b.WriteString("  balloon.rss=1048576\n")
		b.WriteString("  vcpu.current=2\n")
		b.WriteString("\n")
	}
	return []byte(b.String())
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }
