package commands

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for dittosh.

To load completions:

Bash:
  # Linux:
  $ dittosh completion bash > /etc/bash_completion.d/dittosh
  # macOS:
  $ dittosh completion bash > $(brew --prefix)/etc/bash_completion.d/dittosh

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  # Linux:
  $ dittosh completion zsh > "${fpath[1]}/_dittosh"
  # macOS:
  $ dittosh completion zsh > $(brew --prefix)/share/zsh/site-functions/_dittosh

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ dittosh completion fish > ~/.config/fish/completions/dittosh.fish

PowerShell:
  PS> dittosh completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> dittosh completion powershell > dittosh.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}
