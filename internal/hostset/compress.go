package hostset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rileyhilliard/kstats/internal/stats"
)

// numbered is a hostname split around its last run of digits.
type numbered struct {
	digits string
	value  uint64
}

type group struct {
	prefix, suffix string
	members        []numbered
}

// Compress folds hosts into range notation, the inverse of Expand:
//
//	node01 node02 node03 node07 gpu1  ->  node[01-03,07],gpu1
//
// Hosts sharing a prefix and suffix around their last number are grouped in
// order of first appearance; numbers inside a group are sorted. Duplicates
// collapse. Expanding the result yields the same set of names.
func Compress(hosts []stats.Host) string {
	var groups []*group
	byKey := make(map[string]*group)
	seen := make(map[stats.Host]struct{}, len(hosts))

	for _, h := range hosts {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}

		prefix, digits, suffix := splitNumber(string(h))
		key := prefix + "\x00" + suffix
		if digits == "" {
			key = "\x01" + string(h)
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{prefix: prefix, suffix: suffix}
			byKey[key] = g
			groups = append(groups, g)
		}
		if digits != "" {
			v, _ := strconv.ParseUint(digits, 10, 64)
			g.members = append(g.members, numbered{digits: digits, value: v})
		}
	}

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, g.render())
	}
	return strings.Join(parts, ",")
}

func (g *group) render() string {
	if len(g.members) == 0 {
		return g.prefix
	}
	if len(g.members) == 1 {
		return g.prefix + g.members[0].digits + g.suffix
	}

	sort.Slice(g.members, func(i, j int) bool {
		a, b := g.members[i], g.members[j]
		if a.value != b.value {
			return a.value < b.value
		}
		return a.digits < b.digits
	})

	var runs []string
	for i := 0; i < len(g.members); {
		first := g.members[i]
		width := len(first.digits)
		j := i + 1
		for j < len(g.members) {
			m := g.members[j]
			if m.value != g.members[j-1].value+1 || fmt.Sprintf("%0*d", width, m.value) != m.digits {
				break
			}
			j++
		}
		last := g.members[j-1]
		if j-1 == i {
			runs = append(runs, first.digits)
		} else {
			runs = append(runs, first.digits+"-"+last.digits)
		}
		i = j
	}
	return g.prefix + "[" + strings.Join(runs, ",") + "]" + g.suffix
}

// splitNumber splits name around its last run of ASCII digits.
func splitNumber(name string) (prefix, digits, suffix string) {
	end := -1
	for i := len(name) - 1; i >= 0; i-- {
		if isDigit(name[i]) {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return name, "", ""
	}
	start := end - 1
	for start > 0 && isDigit(name[start-1]) {
		start--
	}
	// Cap the run so the value fits in a uint64.
	if end-start > 19 {
		start = end - 19
	}
	return name[:start], name[start:end], name[end:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
