package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/polaris-gw/polaris/pkg/config"
	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/verify"
)

var keysFlags struct {
	spec    string
	timeout time.Duration
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage and verify operator credentials",
	Long: `Inspect and verify the operator key pool.

Subcommands:
  verify - exercise each key against the upstream
  list   - print the parsed pool with masked credentials

Examples:
  # Verify the configured pool
  polaris keys verify

  # Verify an explicit spec
  polaris keys verify --keys "key-one:2,key-two"`,
}

var keysVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify credentials against the upstream",
	Long: `Send a lightweight probe request with each credential and report
whether the upstream accepts it. Transient upstream failures are retried;
auth rejections are not.`,
	RunE: verifyKeys,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the parsed operator pool",
	RunE:  listKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysVerifyCmd, keysListCmd)

	keysCmd.PersistentFlags().StringVar(&keysFlags.spec, "keys", "", "key spec override (key:weight,...)")
	keysVerifyCmd.Flags().DurationVar(&keysFlags.timeout, "timeout", 15*time.Second, "per-key probe timeout")
}

// resolveSpec picks the key spec: the --keys flag, else the configured
// pool.
func resolveSpec() (string, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}
	if keysFlags.spec != "" {
		return keysFlags.spec, cfg, nil
	}
	spec, err := config.ReadOperatorSpec(cfg)
	return spec, cfg, err
}

func verifyKeys(cmd *cobra.Command, args []string) error {
	spec, cfg, err := resolveSpec()
	if err != nil {
		return err
	}
	pool := keypool.New(spec, keypool.DefaultConfig())
	credentials := pool.Credentials()
	if len(credentials) == 0 {
		return fmt.Errorf("no keys to verify")
	}

	verifier := verify.New(verify.Config{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		ProbePath:       cfg.Upstream.ProbePath,
		Timeout:         keysFlags.timeout,
	}, nil)

	fmt.Printf("verifying %d keys against %s\n\n", len(credentials), cfg.Upstream.BaseURL)

	var invalid int
	for _, res := range verifier.VerifyAll(context.Background(), credentials) {
		if res.Valid {
			fmt.Printf("  %s  ok\n", res.Credential)
			continue
		}
		invalid++
		if res.Error != "" {
			fmt.Printf("  %s  FAILED (%s)\n", res.Credential, res.Error)
		} else {
			fmt.Printf("  %s  FAILED (status %d)\n", res.Credential, res.StatusCode)
		}
	}

	fmt.Println()
	if invalid > 0 {
		return fmt.Errorf("%d of %d keys failed verification", invalid, len(credentials))
	}
	fmt.Println("all keys valid")
	return nil
}

func listKeys(cmd *cobra.Command, args []string) error {
	spec, _, err := resolveSpec()
	if err != nil {
		return err
	}
	pool := keypool.New(spec, keypool.DefaultConfig())
	stats := pool.Stats()
	if stats.Total == 0 {
		fmt.Println("pool is empty")
		return nil
	}
	for _, rec := range stats.Records {
		fmt.Printf("  %s  weight=%g\n", rec.Credential, rec.OriginalWeight)
	}
	return nil
}
