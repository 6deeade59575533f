package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/khanglvm/listing-ranker/internal/learning"
)

// NewStatsCmd creates the 'stats' command.
func NewStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			stats := e.Stats()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), stats, cfg.Storage.Backend, cfg.Storage.Scope)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func printStats(w io.Writer, stats learning.Stats, backend, scope string) {
	fmt.Fprintln(w, "Learning Statistics")
	fmt.Fprintln(w, "===================")
	fmt.Fprintf(w, "Storage:          %s (scope %s)\n", backend, scope)
	fmt.Fprintf(w, "Total queries:    %d\n", stats.TotalQueries)
	fmt.Fprintf(w, "Unique patterns:  %d\n", stats.UniquePatternCount)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Feature weights:")
	for _, f := range learning.WeightedFactors {
		fmt.Fprintf(w, "  %-15s %6.1f\n", f, stats.CurrentFeatureWeights[f])
	}

	if len(stats.TopPatterns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Top patterns:")
		for _, p := range stats.TopPatterns {
			fmt.Fprintf(w, "  %-20s %d\n", p.Pattern, p.Count)
		}
	}
}
