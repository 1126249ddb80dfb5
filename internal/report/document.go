package report

import (
	"time"

	"github.com/rileyhilliard/kstats/internal/hostset"
	"github.com/rileyhilliard/kstats/internal/stats"
)

// Host statuses in a Document.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Document is the serializable view of a ClusterReport shared by the
// json and yaml renderers.
type Document struct {
	CollectedAt    *time.Time   `json:"collected_at,omitempty" yaml:"collected_at,omitempty"`
	ElapsedSeconds float64      `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Totals         stats.Totals `json:"totals" yaml:"totals"`
	Hosts          []HostEntry  `json:"hosts" yaml:"hosts"`
	// FailedRange is the compact range expression of every failed host.
	FailedRange string `json:"failed_range,omitempty" yaml:"failed_range,omitempty"`
}

// HostEntry is one host of a Document.
type HostEntry struct {
	Host            string           `json:"host" yaml:"host"`
	Status          string           `json:"status" yaml:"status"`
	CollectedAt     *time.Time       `json:"collected_at,omitempty" yaml:"collected_at,omitempty"`
	DurationSeconds float64          `json:"duration_seconds" yaml:"duration_seconds"`
	VMs             []stats.VMMetric `json:"vms" yaml:"vms"`
	Error           *HostError       `json:"error,omitempty" yaml:"error,omitempty"`
}

// HostError describes why a host produced no metrics.
type HostError struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// NewDocument builds the Document for r, keeping host order.
func NewDocument(r *stats.ClusterReport) Document {
	reports := r.Reports()
	doc := Document{
		ElapsedSeconds: r.Elapsed.Seconds(),
		Totals:         r.Totals(),
		Hosts:          make([]HostEntry, 0, len(reports)),
	}
	if !r.CollectedAt.IsZero() {
		at := r.CollectedAt.UTC()
		doc.CollectedAt = &at
	}

	var failed []stats.Host
	for _, hr := range reports {
		entry := HostEntry{
			Host:            string(hr.Host()),
			DurationSeconds: hr.Duration().Seconds(),
			VMs:             hr.VMs(),
		}
		if hr.OK() {
			entry.Status = StatusOK
			at := hr.CollectedAt().UTC()
			entry.CollectedAt = &at
		} else {
			entry.Status = StatusFailed
			entry.Error = &HostError{
				Kind:    hr.Kind().String(),
				Message: hr.Message(),
				Snippet: hr.Snippet(),
			}
			failed = append(failed, hr.Host())
		}
		doc.Hosts = append(doc.Hosts, entry)
	}
	doc.FailedRange = hostset.Compress(failed)
	return doc
}
