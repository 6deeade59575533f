package cli

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/listing-ranker/internal/learning"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Manage learned ranking state",
		Long: `Learned state (pattern frequencies, feature weights, user preferences,
contextual query mappings and the last interactions) is stored per scope in
the configured database. Queries in search history are stored as SHA256
hashes.

Commands:
  export  Export learned state as JSON
  clear   Delete learned state for the scope
  prefer  Adjust a user preference
  cleanup Drop search history older than storage.retention`,
	}

	cmd.AddCommand(newLearningExportCmd())
	cmd.AddCommand(newLearningClearCmd())
	cmd.AddCommand(newLearningPreferCmd())
	cmd.AddCommand(newLearningCleanupCmd())

	return cmd
}

// newLearningExportCmd exports learned state as JSON.
func newLearningExportCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export learned state as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			blob, err := e.Export()
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, blob, "", "  "); err != nil {
				return fmt.Errorf("failed to format export: %w", err)
			}
			out.WriteByte('\n')

			if outputFile != "" {
				if err := os.WriteFile(outputFile, out.Bytes(), 0644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported learned state to %s\n", outputFile)
				return nil
			}

			_, err = cmd.OutOrStdout().Write(out.Bytes())
			return err
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write to file instead of stdout")

	return cmd
}

// newLearningClearCmd deletes learned state.
func newLearningClearCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete learned state for the configured scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to clear learned state without --yes")
			}

			e, cfg, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Learned state cleared (scope %s)\n", cfg.Storage.Scope)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "confirm deletion")

	return cmd
}

// newLearningPreferCmd adjusts a user preference.
func newLearningPreferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefer <key> <delta>",
		Short: "Adjust a user preference",
		Long: `Add delta to a user preference. Keys:
  price_<word>     дешево, недорого, дорого, премиум (price word strength)
  feature_<name>   parking, storage, center, metro, first_floor (multiplier, default 1)
  type_<category>  e.g. type_офис (ranking bonus, preference/5 up to 20)`,
		Example: `  listing-ranker learning prefer feature_parking 1
  listing-ranker learning prefer type_офис 50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}

			e, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.AdjustPreference(args[0], delta); err != nil {
				return err
			}
			key := learning.Normalize(args[0])
			v, _ := e.Snapshot().Preference(key)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %g\n", key, v)
			return nil
		},
	}
}

// newLearningCleanupCmd drops old search history.
func newLearningCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop search history older than storage.retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Cleanup(); err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Search history older than %s removed\n", cfg.Storage.Retention)
			return nil
		},
	}
}
