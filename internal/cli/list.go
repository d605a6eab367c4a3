package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

func init() {
	rootCmd.AddCommand(newListCmd())
}

func newListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Long:  `List active experiments; --all includes completed ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
				var (
					summaries []engine.Summary
					err       error
				)
				if all {
					summaries, err = eng.ListAll(ctx)
				} else {
					summaries, err = eng.ListActive(ctx)
				}
				if err != nil {
					return fmt.Errorf("failed to list experiments: %w", err)
				}

				if len(summaries) == 0 {
					fmt.Println("No experiments yet.")
					fmt.Println()
					fmt.Println("Create one with:")
					fmt.Println("  splitpick create \"Subject Line Test\" --variant \"A=...\" --variant \"B=...\"")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTATUS\tVARIANTS\tASSIGNMENTS\tWINNER\tCREATED")
				for _, s := range summaries {
					winner := s.Winner
					if winner == "" {
						winner = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
						s.ID,
						s.Name,
						s.Category,
						strings.ToUpper(string(s.Status)),
						s.VariantCount,
						s.TotalAssignments,
						winner,
						s.CreatedAt.Format("2006-01-02"),
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed experiments")

	return cmd
}
