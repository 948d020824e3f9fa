package config

import (
	"fmt"

	"github.com/marmos91/dittosh/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a configuration file holding every default value.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittosh/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dittosh config init

  # Initialize with custom path
  dittosh config init --config /etc/dittosh/config.yaml

  # Force overwrite existing config
  dittosh config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: dittosh start")
	_, _ = fmt.Fprintln(out, "\nSecurity note:")
	_, _ = fmt.Fprintln(out, "  The server generates a self-signed certificate at every start.")
	_, _ = fmt.Fprintln(out, "  For production set server.tls.cert_file and server.tls.key_file.")
	return nil
}
