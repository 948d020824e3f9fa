package config

import (
	"fmt"
	"strconv"

	"github.com/marmos91/dittosh/internal/cli/output"
	"github.com/marmos91/dittosh/pkg/config"
	"github.com/marmos91/dittosh/pkg/credentials/persist"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dittosh configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  dittosh config validate

  # Validate specific config file
  dittosh config validate --config /etc/dittosh/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	printer := output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, false)
	printer.Printf("Configuration file: %s\n", path)
	printer.Println("Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		printer.Println("\nWarnings:")
		for _, w := range warnings {
			printer.Printf("  - %s\n", w)
		}
	}

	printer.Println("\nConfiguration summary:")
	return output.KeyValueTable(printer.Writer(), [][2]string{
		{"Listen", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)},
		{"TLS", tlsSummary(cfg)},
		{"Credentials", fmt.Sprintf("%s (%s)", cfg.Credentials.Type, cfg.Credentials.Location())},
		{"Max attempts", strconv.Itoa(cfg.Auth.MaxAttempts)},
		{"Auto register", strconv.FormatBool(cfg.Auth.AutoRegister)},
		{"Log level", cfg.Logging.Level},
	})
}

// configWarnings flags settings that load fine but are unsafe or surprising.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.Server.TLS.CertFile == "" && cfg.Server.TLS.SelfSigned {
		warnings = append(warnings, "TLS uses a self-signed certificate; clients need --insecure or the generated CA")
	}
	if cfg.Auth.AllowCertificateStub {
		warnings = append(warnings, "auth.allow_certificate_stub accepts certificate logins without verification")
	}
	if cfg.Credentials.Type == persist.TypeMemory {
		warnings = append(warnings, "credentials.type is memory; registered users are lost on restart")
	}
	if cfg.Server.MaxConnections == 0 {
		warnings = append(warnings, "server.max_connections is unlimited")
	}
	return warnings
}

func tlsSummary(cfg *config.Config) string {
	switch {
	case cfg.Server.TLS.CertFile != "":
		return cfg.Server.TLS.CertFile
	case cfg.Server.TLS.SelfSigned:
		return "self-signed"
	}
	return "not configured"
}
