package cli

import (
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/pkg/sshutil"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion scripts for kstats.

Host ranges complete from the aliases in ~/.ssh/config.

Examples:
  # Bash
  kstats completion bash > /etc/bash_completion.d/kstats

  # Zsh
  kstats completion zsh > "${fpath[1]}/_kstats"

  # Fish
  kstats completion fish > ~/.config/fish/completions/kstats.fish`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletion(out)
			default:
				return errors.New(errors.ErrConfig,
					"Unknown shell: "+args[0],
					"Supported shells: bash, zsh, fish, powershell")
			}
		},
	}
}

// completeHosts offers ~/.ssh/config aliases for the host-range argument
// and for --exclude.
func completeHosts(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	hosts, err := sshutil.ParseSSHConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	for _, h := range sshutil.AliasesWithPrefix(hosts, toComplete) {
		out = append(out, h.Alias+"\t"+h.Description())
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func registerFlagCompletions(cmd *cobra.Command) {
	fixed := map[string][]string{
		"format":    {config.FormatTable, config.FormatJSON, config.FormatYAML},
		"transport": {config.TransportSSH, config.TransportLibvirt, config.TransportExec},
		"color":     {config.ColorAuto, config.ColorAlways, config.ColorNever},
	}
	for name, values := range fixed {
		_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
	}
	_ = cmd.RegisterFlagCompletionFunc("exclude", func(c *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeHosts(c, nil, toComplete)
	})
}
