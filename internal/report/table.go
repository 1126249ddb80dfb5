package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/kstats/internal/hostset"
	"github.com/rileyhilliard/kstats/internal/stats"
	"github.com/rileyhilliard/kstats/internal/ui"
)

var vmColumns = []string{"VM", "STATE", "VCPUS", "CPU TIME", "MEMORY", "DISK R/W", "NET RX/TX"}

type tableStyles struct {
	host    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func newTableStyles() tableStyles {
	return tableStyles{
		host:    lipgloss.NewStyle().Bold(true).Foreground(ui.ColorInfo),
		success: lipgloss.NewStyle().Foreground(ui.ColorSuccess),
		failure: lipgloss.NewStyle().Foreground(ui.ColorError),
		warning: lipgloss.NewStyle().Foreground(ui.ColorWarning),
		muted:   lipgloss.NewStyle().Foreground(ui.ColorMuted),
		heading: lipgloss.NewStyle().Bold(true).Foreground(ui.ColorPrimary),
	}
}

func renderTable(r *stats.ClusterReport, opts Options) string {
	s := newTableStyles()
	reports := r.Reports()

	var sb strings.Builder
	if len(reports) == 0 {
		sb.WriteString(s.muted.Render("No hosts to poll."))
		sb.WriteString("\n\n")
	}

	for _, hr := range reports {
		sb.WriteString(s.host.Render(string(hr.Host())))
		sb.WriteString("  ")
		sb.WriteString(s.statusLine(hr))
		sb.WriteString("\n")

		if hr.OK() && hr.VMCount() > 0 && !opts.HostsOnly {
			sb.WriteString(indent(ui.RenderSimpleTable(ui.FitColumns(vmColumns, vmRows(hr.VMs())), vmRows(hr.VMs())), "  "))
			sb.WriteString("\n")
		}
		if !hr.OK() && opts.Snippets && hr.Snippet() != "" {
			sb.WriteString(indent(s.muted.Render(strings.TrimRight(hr.Snippet(), "\n")), "    "))
			sb.WriteString("\n")
		}
		if !opts.HostsOnly {
			sb.WriteString("\n")
		}
	}
	if opts.HostsOnly && len(reports) > 0 {
		sb.WriteString("\n")
	}

	s.writeTotals(&sb, r)
	s.writeFailures(&sb, r.Failures())
	return sb.String()
}

func (s tableStyles) statusLine(hr stats.HostReport) string {
	timing := ""
	if d := hr.Duration(); d > 0 {
		timing = " " + s.muted.Render("("+formatElapsed(d)+")")
	}

	if hr.OK() {
		text := ui.SymbolSuccess + " " + plural(hr.VMCount(), "VM", "VMs")
		if hr.VMCount() == 0 {
			text = ui.SymbolSuccess + " no VMs"
		}
		return s.success.Render(text) + timing
	}

	text := fmt.Sprintf("%s: %s", hr.Kind(), firstLine(hr.Message()))
	if hr.Kind() == stats.ErrorCancelled {
		return s.warning.Render(ui.SymbolSkipped+" "+text) + timing
	}
	return s.failure.Render(ui.SymbolFail+" "+text) + timing
}

func (s tableStyles) writeTotals(sb *strings.Builder, r *stats.ClusterReport) {
	t := r.Totals()

	hosts := humanize.Comma(int64(t.Hosts))
	if t.Hosts > 0 {
		hosts += fmt.Sprintf(" (%d ok, %d failed)", t.OKHosts, t.FailedHosts)
	}
	vms := humanize.Comma(int64(t.VMs))
	if states := stateSummary(t.StateCounts); states != "" {
		vms += " (" + states + ")"
	}

	rows := [][2]string{
		{"Hosts", hosts},
		{"VMs", vms},
		{"vCPUs", humanize.Comma(int64(t.VCPUs))},
		{"CPU time", formatCPUTime(t.CPUTimeNs)},
		{"Memory", humanize.IBytes(t.MemoryBytes) + " / " + humanize.IBytes(t.MemoryMaxBytes)},
		{"Disk", "r " + humanize.IBytes(t.DiskReadBytes) + " / w " + humanize.IBytes(t.DiskWriteBytes)},
		{"Network", "rx " + humanize.IBytes(t.NetRxBytes) + " / tx " + humanize.IBytes(t.NetTxBytes)},
	}
	if r.Elapsed > 0 {
		rows = append(rows, [2]string{"Elapsed", formatElapsed(r.Elapsed)})
	}

	sb.WriteString(s.heading.Render("Totals"))
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %-9s %s\n", row[0], row[1]))
	}
}

func (s tableStyles) writeFailures(sb *strings.Builder, failures []stats.HostReport) {
	if len(failures) == 0 {
		return
	}

	hosts := make([]stats.Host, len(failures))
	width := 0
	for i, f := range failures {
		hosts[i] = f.Host()
		if w := lipgloss.Width(string(f.Host())); w > width {
			width = w
		}
	}

	sb.WriteString("\n")
	sb.WriteString(s.failure.Render(fmt.Sprintf("Failed hosts (%d): %s", len(failures), hostset.Compress(hosts))))
	sb.WriteString("\n")
	for _, f := range failures {
		symbol := s.failure.Render(ui.SymbolFail)
		if f.Kind() == stats.ErrorCancelled {
			symbol = s.warning.Render(ui.SymbolSkipped)
		}
		sb.WriteString(fmt.Sprintf("  %s %-*s  %-15s %s\n",
			symbol, width, f.Host(), f.Kind(), s.muted.Render(firstLine(f.Message()))))
	}
}

func vmRows(vms []stats.VMMetric) [][]string {
	rows := make([][]string, len(vms))
	for i, vm := range vms {
		rows[i] = []string{
			vm.Name,
			string(vm.State),
			humanize.Comma(int64(vm.VCPUs)),
			formatCPUTime(vm.CPUTimeNs),
			humanize.IBytes(vm.MemoryBytes) + " / " + humanize.IBytes(vm.MemoryMaxBytes),
			humanize.IBytes(vm.DiskReadBytes) + " / " + humanize.IBytes(vm.DiskWriteBytes),
			humanize.IBytes(vm.NetRxBytes) + " / " + humanize.IBytes(vm.NetTxBytes),
		}
	}
	return rows
}

// stateSummary lists state counts in libvirt state order, unknown last.
func stateSummary(counts map[stats.VMState]int) string {
	states := make([]stats.VMState, 0, len(counts))
	for st, n := range counts {
		if n > 0 {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool {
		ci, cj := states[i].Code(), states[j].Code()
		if ci < 0 {
			ci = 1 << 30
		}
		if cj < 0 {
			cj = 1 << 30
		}
		return ci < cj
	})

	parts := make([]string, len(states))
	for i, st := range states {
		parts[i] = fmt.Sprintf("%d %s", counts[st], st)
	}
	return strings.Join(parts, ", ")
}

// formatCPUTime renders accumulated CPU nanoseconds as a duration.
func formatCPUTime(ns uint64) string {
	d := time.Duration(ns)
	switch {
	case ns == 0:
		return "0s"
	case d >= time.Minute:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func formatElapsed(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
