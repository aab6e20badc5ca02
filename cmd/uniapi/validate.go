package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raikyou/uniapi/pkg/cli"
	"github.com/raikyou/uniapi/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the gateway.

Checks the document parses, that every field satisfies its validation rules
(required fields, positive durations, well-formed URLs, provider uniqueness),
and exits non-zero with the offending fields on failure.

Examples:
  # Validate the default config
  uniapi validate

  # Validate a specific file
  uniapi validate --config /etc/uniapi/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, verr.Error())
			os.Exit(1)
		}
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	fmt.Printf("configuration valid: %s\n", cfgFile)
	fmt.Printf("providers configured: %d\n", len(cfg.Providers))
	return nil
}
