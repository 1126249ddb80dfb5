package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/stats"
	"github.com/rileyhilliard/kstats/internal/transport"
	"github.com/rileyhilliard/kstats/internal/ui"
	"github.com/rileyhilliard/kstats/pkg/sshutil"
)

// Exit codes returned through errors.ExitError.
const (
	exitFailure = 1
	exitUsage   = 2
)

// rootFlags holds the values of the root command's flags.
type rootFlags struct {
	config      string
	exclude     []string
	timeout     string
	concurrency int
	format      string
	transport   string
	color       string
	yes         bool
	verbose     bool
	noProgress  bool
	hostsOnly   bool
}

// env carries the process-level collaborators of one invocation.
type env struct {
	stdout io.Writer
	stderr io.Writer

	newTransport func(*config.Config, logger.Logger) (stats.Transport, error)
	confirm      func(title, description string) (bool, error)
	stdinTTY     func() bool
	stderrTTY    func() bool
	// release frees process-wide transport resources after polling.
	release func()
	log     logger.Logger
}

func defaultEnv() *env {
	return &env{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		newTransport: transport.New,
		confirm:      ui.Confirm,
		stdinTTY:     func() bool { return ui.IsTerminal(os.Stdin) },
		stderrTTY:    func() bool { return ui.IsTerminal(os.Stderr) },
		release:      sshutil.CloseAgent,
		log:          logger.NewEnvLogger("[kstats]"),
	}
}

func newRootCmd(e *env) *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "kstats <host-range>",
		Short: "Collect VM statistics from a range of KVM hosts",
		Long: `Poll every hypervisor in a host range for its virtual machines and print
one aggregated cluster report.

Hosts that can't be reached, time out, or return unreadable output are
listed as failed; the rest of the cluster is still reported.

Examples:
  kstats 'node[01-12]'
  kstats 'rack[1-4]-kvm[01-20]' --exclude 'rack3-kvm[05-07]'
  kstats 'gpu[1-8]' --format json --timeout 10s
  kstats 'node[1-3]' --transport libvirt`,
		Args:              rangeArg,
		ValidArgsFunction: completeHosts,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, e, f, args[0])
		},
	}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid command line",
			"Run 'kstats --help' for usage")
	})

	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "config file (default ./.kstats.yaml, then ~/.config/kstats/config.yaml)")
	fl.StringArrayVarP(&f.exclude, "exclude", "x", nil, "host range to skip (repeatable)")
	fl.StringVarP(&f.timeout, "timeout", "t", "", "per-host timeout, e.g. 30s or 30 (default 30s)")
	fl.IntVarP(&f.concurrency, "concurrency", "c", 0, "hosts polled at once (default 16)")
	fl.StringVarP(&f.format, "format", "o", "", "output format: table, json, yaml")
	fl.StringVar(&f.transport, "transport", "", "how hosts are reached: ssh, libvirt, exec")
	fl.StringVar(&f.color, "color", "", "color output: auto, always, never")
	fl.BoolVarP(&f.yes, "yes", "y", false, "don't ask before polling a large range")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging and raw output of unreadable hosts")
	fl.BoolVar(&f.noProgress, "no-progress", false, "hide the live progress display")
	fl.BoolVar(&f.hostsOnly, "hosts-only", false, "table output: one line per host, no VM tables")

	registerFlagCompletions(cmd)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCompletionCmd())
	return cmd
}

func rangeArg(_ *cobra.Command, args []string) error {
	if len(args) == 1 {
		return nil
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Expected one host range, got %d arguments", len(args)),
		"Quote the range so the shell leaves the brackets alone: kstats 'node[01-10]'")
}

// Execute runs the root command with the process arguments. The returned
// error carries the exit code (see errors.GetExitCode) and has already
// been reported to the user.
func Execute() error {
	return execute(context.Background(), defaultEnv(), os.Args[1:])
}

func execute(ctx context.Context, e *env, args []string) error {
	cmd := newRootCmd(e)
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if _, ok := errors.GetExitCode(err); ok {
		return err
	}

	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(e.stderr, msg)

	if errors.IsUsage(err) {
		return errors.NewExitError(exitUsage)
	}
	return errors.NewExitError(exitFailure)
}
