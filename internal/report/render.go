// Package report renders a ClusterReport as a human-readable table or as a
// json or yaml document for scripts.
package report

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/stats"
)

// Options tune the table renderer. The machine formats ignore them.
type Options struct {
	// Snippets prints the raw output prefix kept for hosts whose output
	// could not be parsed.
	Snippets bool
	// HostsOnly skips the per-VM tables and prints one status line per host.
	HostsOnly bool
}

// Render writes r to w in the given format. A nil report renders as an
// empty cluster.
func Render(w io.Writer, r *stats.ClusterReport, format Format, opts Options) error {
	if r == nil {
		r = stats.Aggregate(nil, nil)
	}

	var err error
	switch format {
	case Table, "":
		_, err = io.WriteString(w, renderTable(r, opts))
	case JSON, YAML:
		err = WriteEnvelope(w, format, Envelope{Success: true, Data: NewDocument(r)})
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output format '%s'", format),
			"Use one of: table, json, yaml")
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrOutput,
			"Couldn't write the report",
			"Check that the output destination is writable")
	}
	return nil
}
