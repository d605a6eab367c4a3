package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

func init() {
	rootCmd.AddCommand(newTopCmd())
}

func newTopCmd() *cobra.Command {
	var (
		category       string
		minAssignments int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show best-performing variants across experiments",
		Long: `Rank variants by response rate across all experiments. Variants with
fewer assignments than --min are excluded.

Example:
  splitpick top --category email_subject --min 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
				best, err := eng.TopPerforming(ctx, category, minAssignments)
				if err != nil {
					return fmt.Errorf("failed to rank variants: %w", err)
				}

				if len(best) == 0 {
					fmt.Println("No variants with enough assignments yet.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "EXPERIMENT\tVARIANT\tRATE\tSAMPLE\tCONTENT")
				for _, t := range best {
					fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%d\t%s\n",
						t.ExperimentName, t.VariantName, t.ResponseRate, t.SampleSize, t.Content)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only experiments with this category tag")
	cmd.Flags().IntVarP(&minAssignments, "min", "m", 10, "minimum assignments per variant")

	return cmd
}
