package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/hostset"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/report"
	"github.com/rileyhilliard/kstats/internal/stats"
	"github.com/rileyhilliard/kstats/internal/ui"
)

// runStats polls every host of expr and renders the cluster report.
func runStats(cmd *cobra.Command, e *env, f *rootFlags, expr string) error {
	if f.verbose {
		logger.SetDebug(true)
		defer logger.SetDebug(false)
	}

	cfg, err := loadConfig(cmd, e.log, f)
	format := outputFormat(cfg, f)
	if err != nil {
		return usageError(e, format, err)
	}
	ui.ConfigureColor(cfg.Color)

	hosts, err := hostset.Resolve(expr, cfg.Exclude...)
	if err != nil {
		return usageError(e, format, err)
	}
	e.log.Debug("%s expands to %d hosts", expr, hosts.Len())

	tr, err := e.newTransport(cfg, e.log)
	if err != nil {
		return usageError(e, format, err)
	}
	if e.release != nil {
		defer e.release()
	}

	if !confirmBatch(e, cfg, f, expr, hosts.Len()) {
		fmt.Fprintln(e.stderr, "Aborted, no hosts were polled.")
		return errors.NewExitError(exitFailure)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatchOpts := []stats.DispatcherOption{stats.WithDispatchLogger(e.log)}

	var progress *ui.Progress
	if format == report.Table && !f.noProgress && hosts.Len() > 0 && e.stderrTTY() {
		progress = ui.NewProgress(e.stderr, "Polling", hosts.Len())
		dispatchOpts = append(dispatchOpts, stats.WithProgress(func(r stats.HostReport) {
			progress.Advance(string(r.Host()), !r.OK())
		}))
		progress.Start()
	}

	collector := stats.NewCollector(tr, cfg.Timeout, stats.WithLogger(e.log))
	dispatcher := stats.NewDispatcher(collector, cfg.Concurrency, dispatchOpts...)

	start := time.Now()
	reports := dispatcher.Dispatch(ctx, hosts.Hosts())
	if progress != nil {
		progress.Stop()
	}

	cluster := stats.Aggregate(hosts.Hosts(), reports)
	cluster.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		st := dispatcher.Stats()
		warn := lipgloss.NewStyle().Foreground(ui.ColorWarning)
		fmt.Fprintln(e.stderr, warn.Render(fmt.Sprintf("%s Interrupted: %d of %d hosts cancelled",
			ui.SymbolSkipped, st.Cancelled, hosts.Len())))
	}

	return report.Render(e.stdout, cluster, format, report.Options{Snippets: f.verbose, HostsOnly: f.hostsOnly})
}

// loadConfig merges the config file and environment with the flags the
// user actually set, then validates the result.
func loadConfig(cmd *cobra.Command, log logger.Logger, f *rootFlags) (*config.Config, error) {
	cfg, path, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Debug("using config %s", path)
	}

	fl := cmd.Flags()
	if fl.Changed("timeout") {
		d, err := config.ParseTimeout(f.timeout)
		if err != nil {
			return cfg, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid timeout", f.timeout),
				"Try something like 30s, 2m, or a number of seconds.")
		}
		cfg.Timeout = d
	}
	if fl.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if fl.Changed("format") {
		cfg.Format = f.format
	}
	if fl.Changed("transport") {
		cfg.Transport = f.transport
	}
	if fl.Changed("color") {
		cfg.Color = f.color
	}
	cfg.Exclude = append(cfg.Exclude, f.exclude...)

	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// outputFormat picks the format used for the report and for error
// envelopes. An invalid format falls back to table.
func outputFormat(cfg *config.Config, f *rootFlags) report.Format {
	name := f.format
	if cfg != nil && name == "" {
		name = cfg.Format
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return report.Table
	}
	return format
}

// confirmBatch asks before polling more than confirm_threshold hosts.
// Non-interactive runs and --yes never ask.
func confirmBatch(e *env, cfg *config.Config, f *rootFlags, expr string, n int) bool {
	if f.yes || cfg.ConfirmThreshold == 0 || n <= cfg.ConfirmThreshold || !e.stdinTTY() {
		return true
	}

	ok, err := e.confirm(
		fmt.Sprintf("Poll %s hosts?", humanize.Comma(int64(n))),
		fmt.Sprintf("'%s' expands to more than %s hosts (confirm_threshold).", expr, humanize.Comma(int64(cfg.ConfirmThreshold))),
	)
	if err != nil {
		e.log.Debug("confirmation prompt failed: %v", err)
		return false
	}
	return ok
}

// usageError reports a configuration or range error. Machine formats also
// get an error envelope on stdout.
func usageError(e *env, format report.Format, err error) error {
	if format.Machine() {
		if werr := WriteErrorEnvelope(e.stdout, format, err); werr != nil {
			e.log.Debug("writing error envelope: %v", werr)
		}
	}
	return err
}
