package stats

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
)

const (
	// DefaultTimeout is the per-host collection timeout when none is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultReleaseGrace is how long Collect waits, after a host's context
	// ends, for the transport call to unwind before abandoning it.
	DefaultReleaseGrace = 250 * time.Millisecond
)

// Transport fetches raw domstats text from one host. Implementations must
// abort the underlying call (close sessions, kill processes, drop
// connections) when ctx is cancelled.
type Transport interface {
	Name() string
	Fetch(ctx context.Context, host Host) ([]byte, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, host Host) ([]byte, error)

func (f TransportFunc) Name() string { return "func" }

func (f TransportFunc) Fetch(ctx context.Context, host Host) ([]byte, error) {
	return f(ctx, host)
}

// Collector polls a single host and turns the outcome into a HostReport.
type Collector struct {
	transport Transport
	timeout   time.Duration
	grace     time.Duration
	now       func() time.Time
	log       logger.Logger
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithClock replaces time.Now for timestamps and durations.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

// WithLogger sets the collector's logger.
func WithLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		c.log = l
	}
}

// WithReleaseGrace overrides DefaultReleaseGrace.
func WithReleaseGrace(d time.Duration) CollectorOption {
	return func(c *Collector) {
		c.grace = d
	}
}

// NewCollector creates a collector that fetches through t and gives each
// host at most timeout to answer.
func NewCollector(t Transport, timeout time.Duration, opts ...CollectorOption) *Collector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Collector{
		transport: t,
		timeout:   timeout,
		grace:     DefaultReleaseGrace,
		now:       time.Now,
		log:       logger.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-host timeout.
func (c *Collector) Timeout() time.Duration {
	return c.timeout
}

// Collect polls host and always returns a report. Once the host's context
// ends it waits up to the release grace for the transport to unwind, so a
// transport that honors cancellation has closed its connection before the
// caller reuses the slot. A transport that ignores cancellation is abandoned.
func (c *Collector) Collect(ctx context.Context, host Host) HostReport {
	start := c.now()

	if ctx.Err() != nil {
		return NewFailedReport(host, ErrorCancelled, "cancelled before collection started", nil)
	}

	hostCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resultCh := make(chan fetchResult, 1)

	go func() {
		out, err := c.transport.Fetch(hostCtx, host)
		resultCh <- fetchResult{out, err}
	}()

	var report HostReport
	select {
	case <-hostCtx.Done():
		report = c.interrupted(ctx, host)
		c.awaitRelease(host, resultCh)
	case r := <-resultCh:
		report = c.classify(ctx, hostCtx, host, r.output, r.err)
	}

	report = report.withDuration(c.now().Sub(start))
	if report.OK() {
		c.log.Debug("%s: %d VMs in %s", host, report.VMCount(), report.Duration())
	} else {
		c.log.Debug("%s: %s: %s", host, report.Kind(), report.Message())
	}
	return report
}

type fetchResult struct {
	output []byte
	err    error
}

// awaitRelease waits for an interrupted Fetch to return, bounded by the
// release grace.
func (c *Collector) awaitRelease(host Host, resultCh <-chan fetchResult) {
	if c.grace <= 0 {
		return
	}
	t := time.NewTimer(c.grace)
	defer t.Stop()
	select {
	case <-resultCh:
	case <-t.C:
		c.log.Warn("%s: %s transport still running after cancellation, abandoning it", host, c.transport.Name())
	}
}

// interrupted builds the report for a host whose context ended first.
func (c *Collector) interrupted(parent context.Context, host Host) HostReport {
	if parent.Err() != nil {
		return NewFailedReport(host, ErrorCancelled, "collection cancelled", nil)
	}
	return NewFailedReport(host, ErrorTimeout, fmt.Sprintf("no response within %s", c.timeout), nil)
}

func (c *Collector) classify(parent, hostCtx context.Context, host Host, output []byte, err error) HostReport {
	if err != nil {
		switch {
		case parent.Err() != nil:
			return NewFailedReport(host, ErrorCancelled, "collection cancelled", nil)
		case stderrors.Is(hostCtx.Err(), context.DeadlineExceeded):
			return NewFailedReport(host, ErrorTimeout, fmt.Sprintf("no response within %s", c.timeout), nil)
		default:
			return NewFailedReport(host, ErrorUnreachable, describe(err), nil)
		}
	}

	vms, perr := ParseDomStats(output)
	if perr != nil {
		return NewFailedReport(host, ErrorMalformedOutput, perr.Error(), output)
	}
	return NewOkReport(host, vms, c.now())
}

// describe flattens an error into a single line for report output.
func describe(err error) string {
	var kErr *errors.Error
	if stderrors.As(err, &kErr) {
		if kErr.Cause != nil {
			return kErr.Message + ": " + kErr.Cause.Error()
		}
		return kErr.Message
	}
	return err.Error()
}
