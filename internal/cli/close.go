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
	rootCmd.AddCommand(newCloseCmd())
}

func newCloseCmd() *cobra.Command {
	var variantID string

	cmd := &cobra.Command{
		Use:   "close <experiment-id>",
		Short: "Close an experiment with a declared winner",
		Long: `Complete an experiment by declaring a winning variant manually,
without waiting for statistical significance. After closing, every
assignment returns the winner.

Example:
  splitpick close 3f2a91bc --variant v2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID := args[0]

			return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
				exp, err := eng.Close(ctx, experimentID, variantID)
				if errors.Is(err, engine.ErrNotFound) {
					return fmt.Errorf("unknown experiment or variant: %s/%s", experimentID, variantID)
				}
				if errors.Is(err, engine.ErrNotActive) {
					return fmt.Errorf("experiment '%s' is already completed", experimentID)
				}
				if err != nil {
					return err
				}

				winner := exp.Variant(exp.Winner)
				fmt.Printf("Closed experiment '%s': winner %s (\"%s\")\n", exp.Name, winner.ID, winner.Name)
				fmt.Println("All future assignments will return the winner.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantID, "variant", "v", "", "winning variant id (required)")
	cmd.MarkFlagRequired("variant")

	return cmd
}
