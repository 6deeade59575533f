package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewClickCmd creates the 'click' command.
func NewClickCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "click <item-id>",
		Short: "Record a click on a result",
		Long: `Record that item-id was opened from the results of --query. Later searches
for similar queries rank the item higher.`,
		Example: `  listing-ranker click 42 --query "офис у метро"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			e.SetQuery(query)
			if err := e.Click(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Click on %s recorded for %q\n", args[0], query)
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "query the click belongs to")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

// NewFeedbackCmd creates the 'feedback' command.
func NewFeedbackCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "feedback <rating>",
		Short: "Rate the results of a query (1-5)",
		Long: `Rate how good the results of --query were. Ratings above 3 raise every
factor weight, ratings below 3 lower them (bounded to 5..150).`,
		Example: `  listing-ranker feedback 5 --query "склад 400"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[0])
			if err != nil || rating < 1 || rating > 5 {
				return fmt.Errorf("rating must be an integer from 1 to 5, got %q", args[0])
			}

			e, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			e.SetQuery(query)
			if err := e.Feedback(rating); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Rating %d recorded for %q\n", rating, query)
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "query the rating belongs to")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}
