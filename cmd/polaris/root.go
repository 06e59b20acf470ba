package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polaris-gw/polaris/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "polaris",
	Short: "Polaris - credential-pooling edge gateway for generative APIs",
	Long: `Polaris is an edge gateway that fronts a generative-language API with
a weighted pool of operator credentials.

It provides:
  - Smooth weighted scheduling across API keys with health tracking
  - Automatic degradation and recovery of failing keys
  - Native passthrough and OpenAI-compatible wire dialects
  - Streaming relay with lifecycle tracking and sweeping
  - Response caching and usage accounting`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig resolves the effective configuration: the file named by
// --config when given, otherwise defaults plus environment.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadConfigWithEnvOverrides(cfgFile)
	}
	return config.Default()
}
