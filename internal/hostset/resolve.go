package hostset

import (
	"strings"

	"github.com/rileyhilliard/kstats/internal/stats"
)

// HostSet is an ordered set of unique hosts. It is read-only after Resolve.
type HostSet struct {
	hosts []stats.Host
	index map[stats.Host]struct{}
}

// Resolve expands expr, drops duplicates keeping the first occurrence and
// removes every host matched by the exclude expressions. A syntax error in
// any expression is a RANGE error; an empty result is not an error.
func Resolve(expr string, exclude ...string) (HostSet, error) {
	names, err := Expand(expr)
	if err != nil {
		return HostSet{}, err
	}

	skip := make(map[string]struct{})
	for _, ex := range exclude {
		if strings.TrimSpace(ex) == "" {
			continue
		}
		excluded, err := Expand(ex)
		if err != nil {
			return HostSet{}, err
		}
		for _, name := range excluded {
			skip[name] = struct{}{}
		}
	}

	set := HostSet{
		hosts: make([]stats.Host, 0, len(names)),
		index: make(map[stats.Host]struct{}, len(names)),
	}
	for _, name := range names {
		if _, ok := skip[name]; ok {
			continue
		}
		h := stats.Host(name)
		if _, dup := set.index[h]; dup {
			continue
		}
		set.index[h] = struct{}{}
		set.hosts = append(set.hosts, h)
	}
	return set, nil
}

// FromHosts builds a HostSet from an explicit list, deduplicating in order.
func FromHosts(hosts ...stats.Host) HostSet {
	set := HostSet{index: make(map[stats.Host]struct{}, len(hosts))}
	for _, h := range hosts {
		if _, dup := set.index[h]; dup {
			continue
		}
		set.index[h] = struct{}{}
		set.hosts = append(set.hosts, h)
	}
	return set
}

// Hosts returns the hosts in order. The slice is a copy.
func (s HostSet) Hosts() []stats.Host {
	out := make([]stats.Host, len(s.hosts))
	copy(out, s.hosts)
	return out
}

// Len returns the number of hosts.
func (s HostSet) Len() int { return len(s.hosts) }

// Contains reports whether host is in the set.
func (s HostSet) Contains(host stats.Host) bool {
	_, ok := s.index[host]
	return ok
}

// String renders the set in compact range notation.
func (s HostSet) String() string {
	return Compress(s.hosts)
}
