/*
Package cli implements the listing-ranker command tree.

Every command resolves configuration the same way: --config if given, else
the first default config file, then LISTING_RANKER_* environment overrides.
*/
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/listing-ranker/internal/config"
	"github.com/khanglvm/listing-ranker/internal/engine"
	"github.com/khanglvm/listing-ranker/internal/logging"
	"github.com/khanglvm/listing-ranker/internal/version"
)

// NewRootCmd creates the listing-ranker root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "listing-ranker",
		Short: "Adaptive search ranking for commercial property listings",
		Long: `listing-ranker scores candidate listings against free-text queries
(Russian-language property search: type, size, price, features) and learns
from clicks and ratings which factors matter.

It never stores the catalog: callers pass a snapshot of items per search.
Learned state lives in a local SQLite or Badger database.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./listing-ranker.yaml or ~/.listing-ranker/config.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewSearchCmd())
	rootCmd.AddCommand(NewClickCmd())
	rootCmd.AddCommand(NewFeedbackCmd())
	rootCmd.AddCommand(NewStatsCmd())
	rootCmd.AddCommand(NewLearningCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configPath returns the --config value, or "" when the flag is absent.
func configPath(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return ""
	}
	return path
}

// loadConfig resolves configuration and applies its logging settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := configPath(cmd); path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, nil
}

// openEngine loads configuration and starts an engine the caller must close.
func openEngine(cmd *cobra.Command) (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	e, err := engine.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}
