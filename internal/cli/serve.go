package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/server"
	"github.com/splitpick/splitpick/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the splitpick HTTP server.

Endpoints:
  POST /api/experiments              create an experiment (token required)
  GET  /api/experiments              list active experiments
  POST /api/experiments/{id}/assign  assign a subject to a variant
  POST /api/experiments/{id}/outcomes record an outcome event
  GET  /api/experiments/{id}/stats   full stats projection
  GET  /health                       health check

Example:
  splitpick serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	eng := engine.New(s, cfg)
	return server.New(eng, s, cfg).Start()
}
