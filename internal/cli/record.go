package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

func init() {
	rootCmd.AddCommand(newRecordCmd())
}

func newRecordCmd() *cobra.Command {
	var detail string

	cmd := &cobra.Command{
		Use:   "record <experiment-id> <variant-id> <kind>",
		Short: "Record an outcome event",
		Long: `Record an outcome for a variant. Kinds: sent, response, interview,
offer, rejection. Response, interview, and offer update the variant's
counters; every kind lands in the append-only audit log.

Recording an outcome re-runs the significance test, so a winner may be
locked as a result.

Example:
  splitpick record 3f2a91bc v1 response --detail "ACME Corp replied"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID, variantID, kind := args[0], args[1], args[2]

			return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
				err := eng.RecordOutcome(ctx, experimentID, variantID, kind, detail)
				if errors.Is(err, engine.ErrNotFound) {
					return fmt.Errorf("unknown experiment or variant: %s/%s", experimentID, variantID)
				}
				if err != nil {
					return err
				}

				fmt.Printf("Recorded '%s' for %s/%s\n", kind, experimentID, variantID)

				st, err := eng.Stats(ctx, experimentID)
				if err != nil {
					return err
				}
				if st.Status == store.StatusCompleted && st.Winner != "" {
					fmt.Printf("Winner locked: %s (%.1f%% response rate, %.0f%% confidence)\n",
						st.Winner, st.WinningRatePct, st.Confidence*100)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&detail, "detail", "d", "", "free-form detail for the audit log")

	return cmd
}
