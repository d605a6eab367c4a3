package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/stats"
	"github.com/splitpick/splitpick/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Show detailed results for an experiment",
	Long:  `Show per-variant counters, response rates, confidence intervals, and the winner if one is locked.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	experimentID := args[0]

	return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
		st, err := eng.Stats(ctx, experimentID)
		if errors.Is(err, engine.ErrNotFound) {
			return fmt.Errorf("experiment '%s' not found", experimentID)
		}
		if err != nil {
			return err
		}

		// Header
		fmt.Printf("EXPERIMENT: %s (%s)\n", st.Name, st.ID)
		if st.Category != "" {
			fmt.Printf("CATEGORY: %s\n", st.Category)
		}
		fmt.Printf("STATUS: %s\n", strings.ToUpper(string(st.Status)))
		fmt.Printf("CREATED: %s\n", st.CreatedAt.Format("2006-01-02"))
		fmt.Printf("ASSIGNMENTS: %d\n", st.TotalAssignments)
		fmt.Println()

		fmt.Println("VARIANT           ASSIGNED  RESPONSES  RATE     95% CI            INTERVIEWS  OFFERS")
		fmt.Println(strings.Repeat("─", 88))

		for _, v := range st.Variants {
			indicator := ""
			if v.IsWinner {
				indicator = " ← WINNER"
			}

			ciStr := "N/A"
			if v.Assignments > 0 {
				lower, upper := stats.WilsonInterval(v.Responses, v.Assignments, 0.95)
				ciStr = fmt.Sprintf("[%.1f%%, %.1f%%]", lower*100, upper*100)
			}

			name := v.Name
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %-8d  %-9d  %-6.1f%%  %-16s  %-10d  %-6d%s\n",
				name, v.Assignments, v.Responses, v.ResponseRatePct, ciStr,
				v.Interviews, v.Offers, indicator)
		}

		fmt.Println()
		printSignificance(st)
		return nil
	})
}

func printSignificance(st *engine.Stats) {
	if st.Status == store.StatusCompleted {
		if st.Winner != "" {
			fmt.Printf("Winner: %s with %.1f%% response rate", st.Winner, st.WinningRatePct)
			if st.Confidence > 0 {
				fmt.Printf(" (%.0f%% confidence)", st.Confidence*100)
			}
			fmt.Println()
		} else {
			fmt.Println("Experiment completed without a winner.")
		}
		return
	}

	// Leading variant vs runner-up by response rate, ties broken by
	// creation order.
	best, second := -1, -1
	for i, v := range st.Variants {
		if v.Assignments == 0 {
			continue
		}
		switch {
		case best == -1 || v.ResponseRatePct > st.Variants[best].ResponseRatePct:
			second = best
			best = i
		case second == -1 || v.ResponseRatePct > st.Variants[second].ResponseRatePct:
			second = i
		}
	}
	if best == -1 || second == -1 {
		fmt.Println("Statistical significance: not enough data yet")
		return
	}

	confidence := stats.ConfidenceLevel(
		st.Variants[best].Responses, st.Variants[best].Assignments,
		st.Variants[second].Responses, st.Variants[second].Assignments,
	)
	fmt.Printf("Statistical significance: %.1f%% confident \"%s\" beats \"%s\" (not yet locked)\n",
		confidence*100, st.Variants[best].Name, st.Variants[second].Name)
}
