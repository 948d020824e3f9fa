package config

import (
	"github.com/marmos91/dittosh/internal/cli/output"
	"github.com/marmos91/dittosh/pkg/config"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and DITTOSH_* environment
overrides are applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  dittosh config show

  # Show as JSON
  dittosh config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}

	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(cfg)
}
