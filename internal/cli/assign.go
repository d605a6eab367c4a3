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
	rootCmd.AddCommand(newAssignCmd())
}

func newAssignCmd() *cobra.Command {
	var subjectID string

	cmd := &cobra.Command{
		Use:   "assign <experiment-id>",
		Short: "Assign a subject to a variant",
		Long: `Resolve a variant for a subject. With --subject the assignment is
deterministic: the same subject always gets the same variant for the life
of the experiment. Without it a random draw is used.

Once a winner is locked, every assignment returns the winner.

Example:
  splitpick assign 3f2a91bc --subject candidate-42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID := args[0]

			return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
				variant, err := eng.Assign(ctx, experimentID, subjectID)
				if errors.Is(err, engine.ErrNotFound) {
					return fmt.Errorf("experiment '%s' not found", experimentID)
				}
				if err != nil {
					return err
				}

				fmt.Printf("%s: %s\n", variant.ID, variant.Name)
				if variant.Content != "" {
					fmt.Println(variant.Content)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&subjectID, "subject", "s", "", "subject id for deterministic assignment")

	return cmd
}
