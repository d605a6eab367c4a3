package cli

import (
	"context"
	"fmt"

	"github.com/splitpick/splitpick/internal/config"
	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// withEngine loads the config, opens the database, runs fn, and handles
// cleanup.
func withEngine(fn func(ctx context.Context, eng *engine.Engine, s *store.SQLiteStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(context.Background(), engine.New(s, cfg), s)
}
