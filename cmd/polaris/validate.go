package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polaris-gw/polaris/pkg/config"
	"github.com/polaris-gw/polaris/pkg/keypool"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the server.

Checks YAML syntax, field values, and the operator key spec, and prints
a summary of the effective configuration.

Examples:
  polaris validate --config polaris.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec, err := config.ReadOperatorSpec(cfg)
	if err != nil {
		return err
	}
	pool := keypool.New(spec, keypool.DefaultConfig())

	fmt.Println("configuration valid")
	fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  upstream:       %s (%s)\n", cfg.Upstream.BaseURL, cfg.Upstream.APIVersion)
	fmt.Printf("  operator keys:  %d\n", pool.Size())
	fmt.Printf("  cache:          %v\n", cfg.Cache.Enabled)
	fmt.Printf("  usage:          %v\n", cfg.Usage.Enabled)
	fmt.Printf("  metrics:        %v\n", cfg.Telemetry.Metrics.Enabled)

	if cfg.Keys.OperatorSecret == "" {
		fmt.Println("  warning: no operator secret set; operator pool and admin endpoints are unreachable")
	}
	if pool.Size() == 0 {
		fmt.Println("  warning: operator pool is empty")
	}
	return nil
}
