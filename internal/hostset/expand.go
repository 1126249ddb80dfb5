// Package hostset turns host-range expressions such as "node[01-20]" into
// ordered, de-duplicated host lists.
package hostset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/kstats/internal/errors"
)

// MaxHosts caps how many hostnames a single expression may expand to.
const MaxHosts = 100000

const rangeSuggestion = "Use comma-separated names and bracket ranges, e.g. node[01-20],gpu[1,3-5]"

// Expand expands a range expression into hostnames in expression order.
//
// The expression is a comma-separated list of terms. Each term may contain
// any number of bracket groups holding numbers and inclusive ranges:
//
//	node[1-3]          node1 node2 node3
//	rack[1-2]-hv[01-02] rack1-hv01 rack1-hv02 rack2-hv01 rack2-hv02
//	gpu[1,4-5].lab     gpu1.lab gpu4.lab gpu5.lab
//
// Range output is zero-padded to the width of the low bound. An empty or
// blank expression yields no hosts. Duplicates are kept; see Resolve.
func Expand(expr string) ([]string, error) {
	terms, err := splitTerms(expr)
	if err != nil {
		return nil, err
	}

	hosts := []string{}
	for _, term := range terms {
		n, err := countTerm(term)
		if err != nil {
			return nil, err
		}
		if n > MaxHosts-len(hosts) {
			return nil, errors.New(errors.ErrRange,
				fmt.Sprintf("range %q expands to more than %d hosts", expr, MaxHosts),
				"Split the run into smaller ranges")
		}
		hosts = expandTerm(hosts, "", term)
	}
	return hosts, nil
}

// splitTerms splits on commas outside brackets and checks bracket balance.
func splitTerms(expr string) ([]string, error) {
	var terms []string
	depth, start := 0, 0
	flush := func(end int) {
		if t := strings.TrimSpace(expr[start:end]); t != "" {
			terms = append(terms, t)
		}
	}
	for i, r := range expr {
		switch r {
		case '[':
			if depth > 0 {
				return nil, syntaxError(expr, "nested '['")
			}
			depth++
		case ']':
			if depth == 0 {
				return nil, syntaxError(expr, "unmatched ']'")
			}
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, syntaxError(expr, "unclosed '['")
	}
	flush(len(expr))
	return terms, nil
}

// span is one inclusive numeric range inside a bracket group.
type span struct {
	lo, hi uint64
	width  int
}

// size is the span's length, capped at MaxHosts+1 so it cannot wrap.
func (s span) size() uint64 {
	if s.hi-s.lo >= MaxHosts {
		return MaxHosts + 1
	}
	return s.hi - s.lo + 1
}

// parseGroup parses the inside of a bracket group such as "01-03,7".
func parseGroup(term, body string) ([]span, error) {
	if strings.TrimSpace(body) == "" {
		return nil, syntaxError(term, "empty brackets")
	}
	var spans []span
	for _, item := range strings.Split(body, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, syntaxError(term, "empty element in brackets")
		}
		loStr, hiStr, isRange := strings.Cut(item, "-")
		if !isRange {
			hiStr = loStr
		}
		lo, err := parseBound(term, loStr)
		if err != nil {
			return nil, err
		}
		hi, err := parseBound(term, hiStr)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, syntaxError(term, fmt.Sprintf("range %s is descending", item))
		}
		spans = append(spans, span{lo: lo, hi: hi, width: len(loStr)})
	}
	return spans, nil
}

func parseBound(term, s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, syntaxError(term, "missing range bound")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, syntaxError(term, fmt.Sprintf("%q is not a number", s))
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == ^uint64(0) {
		return 0, syntaxError(term, fmt.Sprintf("%q is out of range", s))
	}
	return n, nil
}

// nextGroup returns the literal prefix, the bracket body and the remainder
// of term. ok is false when term holds no more brackets.
func nextGroup(term string) (prefix, body, rest string, ok bool) {
	open := strings.IndexByte(term, '[')
	if open < 0 {
		return term, "", "", false
	}
	end := strings.IndexByte(term[open:], ']') + open
	return term[:open], term[open+1 : end], term[end+1:], true
}

// countTerm validates term and returns how many names it expands to, so an
// oversized expansion is rejected before anything is allocated.
func countTerm(term string) (int, error) {
	total := uint64(1)
	rest := term
	for {
		_, body, next, ok := nextGroup(rest)
		if !ok {
			return int(total), nil
		}
		spans, err := parseGroup(term, body)
		if err != nil {
			return 0, err
		}
		var n uint64
		for _, s := range spans {
			if s.size() > MaxHosts-n {
				return MaxHosts + 1, nil
			}
			n += s.size()
		}
		if n > MaxHosts/total {
			return MaxHosts + 1, nil
		}
		total *= n
		rest = next
	}
}

// expandTerm appends every name of an already validated term to dst.
func expandTerm(dst []string, built, term string) []string {
	prefix, body, rest, ok := nextGroup(term)
	if !ok {
		return append(dst, built+term)
	}
	spans, _ := parseGroup(term, body)
	for _, s := range spans {
		for n := s.lo; n <= s.hi; n++ {
			dst = expandTerm(dst, built+prefix+fmt.Sprintf("%0*d", s.width, n), rest)
		}
	}
	return dst
}

func syntaxError(expr, reason string) *errors.Error {
	return errors.New(errors.ErrRange,
		fmt.Sprintf("invalid host range %q: %s", expr, reason),
		rangeSuggestion)
}
