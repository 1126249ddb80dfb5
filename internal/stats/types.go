package stats

import (
	"time"
)

// Host identifies a hypervisor host by hostname or IP address.
type Host string

func (h Host) String() string {
	return string(h)
}

// Hosts converts plain hostnames into Host values.
func Hosts(names ...string) []Host {
	out := make([]Host, len(names))
	for i, n := range names {
		out[i] = Host(n)
	}
	return out
}

// VMState is a libvirt domain state.
type VMState string

const (
	StateNoState     VMState = "nostate"
	StateRunning     VMState = "running"
	StateBlocked     VMState = "blocked"
	StatePaused      VMState = "paused"
	StateShutdown    VMState = "shutdown"
	StateShutoff     VMState = "shutoff"
	StateCrashed     VMState = "crashed"
	StatePMSuspended VMState = "pmsuspended"
	// StateUnknown is used when the host did not report a state or
	// reported a value outside the libvirt range.
	StateUnknown VMState = "unknown"
)

// StateFromCode maps a virDomainState number to a VMState.
func StateFromCode(code uint64) VMState {
	switch code {
	case 0:
		return StateNoState
	case 1:
		return StateRunning
	case 2:
		return StateBlocked
	case 3:
		return StatePaused
	case 4:
		return StateShutdown
	case 5:
		return StateShutoff
	case 6:
		return StateCrashed
	case 7:
		return StatePMSuspended
	default:
		return StateUnknown
	}
}

// Code returns the virDomainState number for s, or -1 for StateUnknown.
func (s VMState) Code() int {
	switch s {
	case StateNoState:
		return 0
	case StateRunning:
		return 1
	case StateBlocked:
		return 2
	case StatePaused:
		return 3
	case StateShutdown:
		return 4
	case StateShutoff:
		return 5
	case StateCrashed:
		return 6
	case StatePMSuspended:
		return 7
	default:
		return -1
	}
}

// VMMetric is one virtual machine's resource snapshot.
// Counters the host did not report are zero; a missing state is StateUnknown.
type VMMetric struct {
	Name           string  `json:"name" yaml:"name"`
	UUID           string  `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	State          VMState `json:"state" yaml:"state"`
	CPUTimeNs      uint64  `json:"cpu_time_ns" yaml:"cpu_time_ns"`
	VCPUs          uint64  `json:"vcpus" yaml:"vcpus"`
	MemoryBytes    uint64  `json:"memory_bytes" yaml:"memory_bytes"`
	MemoryMaxBytes uint64  `json:"memory_max_bytes" yaml:"memory_max_bytes"`
	DiskReadBytes  uint64  `json:"disk_read_bytes" yaml:"disk_read_bytes"`
	DiskWriteBytes uint64  `json:"disk_write_bytes" yaml:"disk_write_bytes"`
	DiskReadReqs   uint64  `json:"disk_read_reqs" yaml:"disk_read_reqs"`
	DiskWriteReqs  uint64  `json:"disk_write_reqs" yaml:"disk_write_reqs"`
	NetRxBytes     uint64  `json:"net_rx_bytes" yaml:"net_rx_bytes"`
	NetTxBytes     uint64  `json:"net_tx_bytes" yaml:"net_tx_bytes"`
}

// ErrorKind categorizes why a host produced no metrics.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorUnreachable
	ErrorTimeout
	ErrorMalformedOutput
	ErrorCancelled
)

// String returns the kind's name as shown in reports.
func (k ErrorKind) String() string {
	switch k {
	case ErrorUnreachable:
		return "Unreachable"
	case ErrorTimeout:
		return "Timeout"
	case ErrorMalformedOutput:
		return "MalformedOutput"
	case ErrorCancelled:
		return "Cancelled"
	default:
		return "None"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// maxSnippet bounds how much raw output a MalformedOutput report keeps.
const maxSnippet = 256

// HostReport is the outcome of collecting one host: either Ok with the
// host's VMs, or Failed with an ErrorKind. It is immutable once built.
type HostReport struct {
	host     Host
	ok       bool
	vms      []VMMetric
	at       time.Time
	kind     ErrorKind
	message  string
	snippet  string
	duration time.Duration
}

// NewOkReport builds a successful report. The VM slice is copied.
func NewOkReport(host Host, vms []VMMetric, at time.Time) HostReport {
	cp := make([]VMMetric, len(vms))
	copy(cp, vms)
	return HostReport{host: host, ok: true, vms: cp, at: at}
}

// NewFailedReport builds a failed report. The snippet is truncated to a
// short prefix of the raw output.
func NewFailedReport(host Host, kind ErrorKind, message string, snippet []byte) HostReport {
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return HostReport{host: host, kind: kind, message: message, snippet: string(snippet)}
}

// withDuration returns a copy of r annotated with how long collection took.
func (r HostReport) withDuration(d time.Duration) HostReport {
	r.duration = d
	return r
}

func (r HostReport) Host() Host { return r.host }

// OK reports whether this is the Ok variant.
func (r HostReport) OK() bool { return r.ok }

// VMs returns a copy of the host's VM metrics. Empty for failed reports.
func (r HostReport) VMs() []VMMetric {
	cp := make([]VMMetric, len(r.vms))
	copy(cp, r.vms)
	return cp
}

// VMCount returns the number of VMs without copying them.
func (r HostReport) VMCount() int { return len(r.vms) }

// CollectedAt is the collection timestamp of an Ok report.
func (r HostReport) CollectedAt() time.Time { return r.at }

func (r HostReport) Kind() ErrorKind { return r.kind }

func (r HostReport) Message() string { return r.message }

// Snippet is the raw-output prefix kept for MalformedOutput diagnostics.
func (r HostReport) Snippet() string { return r.snippet }

func (r HostReport) Duration() time.Duration { return r.duration }

// Totals are the aggregate numbers of a ClusterReport.
type Totals struct {
	Hosts          int             `json:"hosts" yaml:"hosts"`
	OKHosts        int             `json:"ok_hosts" yaml:"ok_hosts"`
	FailedHosts    int             `json:"failed_hosts" yaml:"failed_hosts"`
	VMs            int             `json:"vms" yaml:"vms"`
	RunningVMs     int             `json:"running_vms" yaml:"running_vms"`
	VCPUs          uint64          `json:"vcpus" yaml:"vcpus"`
	CPUTimeNs      uint64          `json:"cpu_time_ns" yaml:"cpu_time_ns"`
	MemoryBytes    uint64          `json:"memory_bytes" yaml:"memory_bytes"`
	MemoryMaxBytes uint64          `json:"memory_max_bytes" yaml:"memory_max_bytes"`
	DiskReadBytes  uint64          `json:"disk_read_bytes" yaml:"disk_read_bytes"`
	DiskWriteBytes uint64          `json:"disk_write_bytes" yaml:"disk_write_bytes"`
	NetRxBytes     uint64          `json:"net_rx_bytes" yaml:"net_rx_bytes"`
	NetTxBytes     uint64          `json:"net_tx_bytes" yaml:"net_tx_bytes"`
	StateCounts    map[VMState]int `json:"state_counts" yaml:"state_counts"`
}

// ClusterReport merges every HostReport of one run. Reports are kept in
// HostSet order. It is read-only once built by Aggregate.
type ClusterReport struct {
	reports []HostReport
	index   map[Host]int
	totals  Totals

	// CollectedAt is the latest timestamp among successful hosts.
	CollectedAt time.Time
	// Elapsed is the wall-clock time of the whole batch, set by the caller.
	Elapsed time.Duration
}

// Reports returns the host reports in HostSet order.
func (c *ClusterReport) Reports() []HostReport {
	cp := make([]HostReport, len(c.reports))
	copy(cp, c.reports)
	return cp
}

// Get returns the report for host.
func (c *ClusterReport) Get(host Host) (HostReport, bool) {
	i, ok := c.index[host]
	if !ok {
		return HostReport{}, false
	}
	return c.reports[i], true
}

// Hosts returns the hosts in report order.
func (c *ClusterReport) Hosts() []Host {
	out := make([]Host, len(c.reports))
	for i, r := range c.reports {
		out[i] = r.host
	}
	return out
}

// Totals returns the aggregate numbers. StateCounts is a copy.
func (c *ClusterReport) Totals() Totals {
	t := c.totals
	t.StateCounts = make(map[VMState]int, len(c.totals.StateCounts))
	for k, v := range c.totals.StateCounts {
		t.StateCounts[k] = v
	}
	return t
}

// Failures returns the failed reports in HostSet order.
func (c *ClusterReport) Failures() []HostReport {
	var out []HostReport
	for _, r := range c.reports {
		if !r.ok {
			out = append(out, r)
		}
	}
	return out
}
