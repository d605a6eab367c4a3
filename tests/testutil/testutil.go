package testutil

import (
	"math/rand"
	"testing"

	"github.com/splitpick/splitpick/internal/config"
	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
)

// SetupTestStore creates a test database and returns the store. Uses
// t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := t.TempDir() + "/test.db"

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// SetupTestEngine returns an engine over a fresh store, with a seeded random
// source so anonymous assignment is reproducible.
func SetupTestEngine(t *testing.T) (*engine.Engine, *store.SQLiteStore) {
	t.Helper()

	s := SetupTestStore(t)
	eng := engine.New(s, config.Default())
	eng.SetRandomSource(rand.New(rand.NewSource(1)))
	return eng, s
}
