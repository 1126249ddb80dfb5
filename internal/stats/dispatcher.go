package stats

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/kstats/internal/logger"
)

// DefaultConcurrency is the default cap on simultaneous collections.
const DefaultConcurrency = 16

// DispatchStats summarizes the last batch run by a Dispatcher.
type DispatchStats struct {
	Started      int // Collections that actually called the transport
	Completed    int // Collections that returned a report
	Cancelled    int // Reports with ErrorCancelled, synthetic or not
	PeakInFlight int // Highest number of simultaneous collections observed
}

// Dispatcher runs a Collector across a host set with bounded concurrency.
// A Dispatcher runs one batch at a time.
type Dispatcher struct {
	collector   *Collector
	concurrency int
	progress    func(HostReport)
	log         logger.Logger

	inFlight  atomic.Int64
	peak      atomic.Int64
	started   atomic.Int64
	completed atomic.Int64
	cancelled atomic.Int64
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithProgress registers fn to be called once per host report as reports
// become available. fn is called from worker goroutines and must be safe
// for concurrent use.
func WithProgress(fn func(HostReport)) DispatcherOption {
	return func(d *Dispatcher) {
		d.progress = fn
	}
}

// WithDispatchLogger sets the dispatcher's logger.
func WithDispatchLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// NewDispatcher creates a dispatcher allowing at most concurrency
// collections in flight. Values below 1 are treated as 1.
func NewDispatcher(c *Collector, concurrency int, opts ...DispatcherOption) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	d := &Dispatcher{
		collector:   c,
		concurrency: concurrency,
		log:         logger.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Concurrency returns the in-flight cap.
func (d *Dispatcher) Concurrency() int {
	return d.concurrency
}

// Dispatch collects every host and returns exactly one report per host, in
// the order of hosts. It never fails as a whole: when ctx is cancelled, no
// new collections start, in-flight ones end as Cancelled, and hosts that
// never started get a synthetic Cancelled report.
func (d *Dispatcher) Dispatch(ctx context.Context, hosts []Host) []HostReport {
	d.reset()
	reports := make([]HostReport, len(hosts))
	if len(hosts) == 0 {
		return reports
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	launched := 0
	for i, host := range hosts {
		if ctx.Err() != nil {
			break
		}
		i, host := i, host
		g.Go(func() error {
			// Each slot owns its index; no locking needed.
			reports[i] = d.run(ctx, host)
			return nil
		})
		launched++
	}
	_ = g.Wait()

	for i := launched; i < len(hosts); i++ {
		reports[i] = d.skip(hosts[i])
	}

	st := d.Stats()
	d.log.Debug("dispatched %d hosts: %d started, %d cancelled, peak %d in flight",
		len(hosts), st.Started, st.Cancelled, st.PeakInFlight)
	return reports
}

// Stats returns the counters of the most recent Dispatch.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Started:      int(d.started.Load()),
		Completed:    int(d.completed.Load()),
		Cancelled:    int(d.cancelled.Load()),
		PeakInFlight: int(d.peak.Load()),
	}
}

func (d *Dispatcher) run(ctx context.Context, host Host) HostReport {
	if ctx.Err() != nil {
		return d.skip(host)
	}

	d.started.Add(1)
	d.recordPeak(d.inFlight.Add(1))
	report := d.collector.Collect(ctx, host)
	d.inFlight.Add(-1)
	d.completed.Add(1)

	if !report.OK() {
		if report.Kind() == ErrorCancelled {
			d.cancelled.Add(1)
		} else {
			d.log.Warn("%s: %s: %s", host, report.Kind(), report.Message())
		}
	}
	d.emit(report)
	return report
}

// skip produces the report for a host that was never started.
func (d *Dispatcher) skip(host Host) HostReport {
	report := NewFailedReport(host, ErrorCancelled, "cancelled before collection started", nil)
	d.cancelled.Add(1)
	d.emit(report)
	return report
}

func (d *Dispatcher) emit(r HostReport) {
	if d.progress != nil {
		d.progress(r)
	}
}

func (d *Dispatcher) recordPeak(n int64) {
	for {
		cur := d.peak.Load()
		if n <= cur || d.peak.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (d *Dispatcher) reset() {
	d.inFlight.Store(0)
	d.peak.Store(0)
	d.started.Store(0)
	d.completed.Store(0)
	d.cancelled.Store(0)
}
