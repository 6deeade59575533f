package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/khanglvm/listing-ranker/internal/catalog"
	"github.com/khanglvm/listing-ranker/internal/engine"
)

// NewSearchCmd creates the 'search' command for one-shot ranking.
func NewSearchCmd() *cobra.Command {
	var (
		itemsPath string
		asJSON    bool
		explain   bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank a catalog snapshot for a query",
		Long: `Rank the items of a JSON catalog against a free-text query using the
learned weights, and print the results best first.

The catalog is a JSON array of objects with id, title, description, area,
price, location, type, floor, has_parking and has_storage.`,
		Example: `  listing-ranker search "небольшой магазин в центре с парковкой" --items listings.json
  listing-ranker search "офис 80 у метро" --items - --explain < listings.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := catalog.Load(itemsPath)
			if err != nil {
				return err
			}

			e, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := e.Search(context.Background(), strings.Join(args, " "), items)
			if err != nil {
				return err
			}
			if limit > 0 && len(resp.Results) > limit {
				resp.Results = resp.Results[:limit]
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			printResults(cmd.OutOrStdout(), resp, explain)
			return nil
		},
	}

	cmd.Flags().StringVar(&itemsPath, "items", "", "JSON catalog file (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "show each factor's contribution")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many results (0 = all)")
	_ = cmd.MarkFlagRequired("items")

	return cmd
}

func printResults(w io.Writer, resp *engine.SearchResponse, explain bool) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", resp.Query)
		return
	}

	fmt.Fprintf(w, "Results for %q (%d):\n\n", resp.Query, resp.Total)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%2d. %-10s %7.2f  %s\n", i+1, r.Item.ID, r.Score, r.Item.Title)
		if !explain {
			continue
		}

		factors := make([]string, 0, len(r.Detail))
		for f := range r.Detail {
			factors = append(factors, f)
		}
		sort.Strings(factors)
		for _, f := range factors {
			fmt.Fprintf(w, "      %-17s +%.2f\n", f, r.Detail[f])
		}
	}
	fmt.Fprintf(w, "\nsearch %s, session %s\n", resp.SearchID, resp.SessionID)
}

// writeJSON pretty-prints v.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
