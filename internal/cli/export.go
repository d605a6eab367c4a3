package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <experiment-id>",
	Short: "Export the outcome audit log",
	Long: `Export an experiment's outcome events in CSV or JSON format.

Examples:
  splitpick export 3f2a91bc --format csv > outcomes.csv
  splitpick export 3f2a91bc --format json > outcomes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	experimentID := args[0]

	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withEngine(func(ctx context.Context, eng *engine.Engine, s *store.SQLiteStore) error {
		// Verify the experiment exists so a typo doesn't export nothing.
		if _, err := eng.Stats(ctx, experimentID); err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				return fmt.Errorf("experiment '%s' not found", experimentID)
			}
			return err
		}

		events, err := s.GetOutcomes(ctx, experimentID)
		if err != nil {
			return fmt.Errorf("failed to get outcomes: %w", err)
		}

		if exportFormat == "csv" {
			return exportCSV(events)
		}
		return exportJSON(events)
	})
}

func exportCSV(events []*store.OutcomeEvent) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "variant_id", "kind", "detail"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.CreatedAt.Unix(), 10),
			e.VariantID,
			e.Kind,
			e.Detail,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonExport struct {
	Events []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Timestamp int64  `json:"timestamp"`
	VariantID string `json:"variant_id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
}

func exportJSON(events []*store.OutcomeEvent) error {
	export := jsonExport{
		Events: make([]jsonEvent, len(events)),
	}

	for i, e := range events {
		export.Events[i] = jsonEvent{
			Timestamp: e.CreatedAt.Unix(),
			VariantID: e.VariantID,
			Kind:      e.Kind,
			Detail:    e.Detail,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
