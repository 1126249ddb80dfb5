package stats

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Keys of `virsh domstats --raw` output that feed VMMetric.
// Balloon values are KiB.
const (
	keyState          = "state.state"
	keyCPUTime        = "cpu.time"
	keyBalloonCurrent = "balloon.current"
	keyBalloonMaximum = "balloon.maximum"
	keyBalloonRSS     = "balloon.rss"
	keyVCPUCurrent    = "vcpu.current"
	// keyUUID is not emitted by virsh; the libvirt transport adds it.
	keyUUID = "uuid"

	domainHeader = "Domain:"
)

// ParseError describes why raw transport output is not valid domstats text.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ParseDomStats parses `virsh domstats --raw` output into one VMMetric per
// domain block, in output order. Whitespace-only input means the host runs no
// VMs. Unknown keys are ignored; fields a domain does not report stay zero.
func ParseDomStats(raw []byte) ([]VMMetric, error) {
	vms := []VMMetric{}
	var cur *VMMetric
	var sawState, sawRSS bool

	flush := func() {
		if cur == nil {
			return
		}
		if !sawState {
			cur.State = StateUnknown
		}
		vms = append(vms, *cur)
		cur = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, domainHeader) {
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(line, domainHeader))
			name = strings.Trim(name, "'")
			if name == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: "domain header without a name"}
			}
			cur = &VMMetric{Name: name}
			sawState, sawRSS = false, false
			continue
		}

		if cur == nil {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "data before first domain header"}
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "expected key=value"}
		}

		switch key {
		case keyUUID:
			cur.UUID = value
			continue
		case keyState, keyBalloonRSS, keyBalloonCurrent, keyBalloonMaximum:
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: "non-numeric value"}
			}
			switch key {
			case keyState:
				cur.State = StateFromCode(n)
				sawState = true
			case keyBalloonRSS:
				cur.MemoryBytes = n * 1024
				sawRSS = true
			case keyBalloonCurrent:
				// RSS is the better resident figure; the balloon size is the fallback.
				if !sawRSS {
					cur.MemoryBytes = n * 1024
				}
			case keyBalloonMaximum:
				cur.MemoryMaxBytes = n * 1024
			}
			continue
		}

		counter := counterFor(cur, key)
		if counter == nil {
			continue
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "non-numeric value"}
		}
		*counter += n
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineNo, Reason: err.Error()}
	}
	flush()

	return vms, nil
}

// counterFor returns the counter a domstats key accumulates into, or nil when
// the key is not tracked. Per-device block and net counters are summed.
func counterFor(vm *VMMetric, key string) *uint64 {
	switch key {
	case keyCPUTime:
		return &vm.CPUTimeNs
	case keyVCPUCurrent:
		return &vm.VCPUs
	}

	switch {
	case strings.HasPrefix(key, "block."):
		switch {
		case strings.HasSuffix(key, ".rd.bytes"):
			return &vm.DiskReadBytes
		case strings.HasSuffix(key, ".wr.bytes"):
			return &vm.DiskWriteBytes
		case strings.HasSuffix(key, ".rd.reqs"):
			return &vm.DiskReadReqs
		case strings.HasSuffix(key, ".wr.reqs"):
			return &vm.DiskWriteReqs
		}
	case strings.HasPrefix(key, "net."):
		switch {
		case strings.HasSuffix(key, ".rx.bytes"):
			return &vm.NetRxBytes
		case strings.HasSuffix(key, ".tx.bytes"):
			return &vm.NetTxBytes
		}
	}
	return nil
}
