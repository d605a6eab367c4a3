package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		category string
		variants []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a new experiment with the given variants. Traffic is split
equally across variants. Each --variant takes "name=content"; a bare value
is used as both.

Without --variant flags the command prompts for variants interactively.

Examples:
  splitpick create "Subject Line Test" --category email_subject \
    --variant "Direct=Application for {job_title}" \
    --variant "Referral=Referred candidate for {job_title}"
  splitpick create "Resume Test" --variant resume_v1.pdf --variant resume_v2.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			defs, err := parseVariantFlags(variants)
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				defs, err = promptVariants()
				if err != nil {
					return err
				}
			}
			if len(defs) < 2 {
				return fmt.Errorf("need at least 2 variants to run a test")
			}

			return withEngine(func(ctx context.Context, eng *engine.Engine, _ *store.SQLiteStore) error {
				exp, err := eng.Create(ctx, name, category, defs)
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				fmt.Printf("Created experiment '%s' (%s) with %d variants:\n", exp.Name, exp.ID, len(exp.Variants))
				for _, v := range exp.Variants {
					fmt.Printf("  %s: %s (%.1f%% traffic)\n", v.ID, v.Name, v.TrafficPct)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category tag, e.g. email_subject or resume")
	cmd.Flags().StringArrayVarP(&variants, "variant", "v", nil, "variant as name=content (repeatable)")

	return cmd
}

func parseVariantFlags(values []string) ([]engine.VariantDef, error) {
	var defs []engine.VariantDef
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, fmt.Errorf("empty --variant value")
		}
		name, content, found := strings.Cut(raw, "=")
		if !found {
			content = raw
		}
		defs = append(defs, engine.VariantDef{Name: strings.TrimSpace(name), Content: content})
	}
	return defs, nil
}

func promptVariants() ([]engine.VariantDef, error) {
	var defs []engine.VariantDef
	for {
		namePrompt := promptui.Prompt{
			Label: fmt.Sprintf("Variant %d name", len(defs)+1),
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			},
		}
		name, err := namePrompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				os.Exit(0)
			}
			return nil, err
		}

		contentPrompt := promptui.Prompt{Label: "Content payload"}
		content, err := contentPrompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				os.Exit(0)
			}
			return nil, err
		}

		defs = append(defs, engine.VariantDef{Name: name, Content: content})

		if len(defs) < 2 {
			continue
		}
		more := promptui.Select{
			Label: "Add another variant?",
			Items: []string{"Done", "Add another"},
		}
		idx, _, err := more.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				os.Exit(0)
			}
			return nil, err
		}
		if idx == 0 {
			return defs, nil
		}
	}
}
