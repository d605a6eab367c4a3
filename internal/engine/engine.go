// Package engine implements experiment creation, deterministic variant
// assignment, outcome aggregation, and automatic winner lock-in.
package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/splitpick/splitpick/internal/config"
	"github.com/splitpick/splitpick/internal/stats"
	"github.com/splitpick/splitpick/internal/store"
)

var (
	// ErrNotFound means the experiment or variant does not exist. Callers
	// should treat it as "feature disabled" and fall back to a default
	// payload rather than fail their workflow.
	ErrNotFound = errors.New("experiment not found")

	// ErrNotActive means the experiment is completed but carries no locked
	// winner, so assignment has nothing to return. A completed experiment
	// with a winner is not an error: Assign returns the winner.
	ErrNotActive = errors.New("experiment not active")

	// ErrInvalidDefinition means the create request was malformed.
	ErrInvalidDefinition = errors.New("invalid experiment definition")
)

// VariantDef describes one variant at creation time.
type VariantDef struct {
	Name    string
	Content string
}

// Engine coordinates the store, the assignment algorithm, and the
// significance evaluator. Safe for concurrent use: counter mutations are
// serialized per experiment.
type Engine struct {
	store  store.Store
	rand   RandomSource
	logger *slog.Logger

	minSampleSize int
	confidence    float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an engine backed by the given store, using the configured
// significance thresholds.
func New(s store.Store, cfg config.Config) *Engine {
	minSample := cfg.MinSampleSize
	if minSample <= 0 {
		minSample = stats.DefaultMinSampleSize
	}
	confidence := cfg.Confidence
	if confidence <= 0 || confidence >= 1 {
		confidence = stats.DefaultConfidence
	}

	return &Engine{
		store:         s,
		rand:          defaultRandomSource(),
		logger:        slog.Default(),
		minSampleSize: minSample,
		confidence:    confidence,
		locks:         make(map[string]*sync.Mutex),
	}
}

// SetRandomSource replaces the source used for anonymous assignment. Tests
// substitute a seeded source for reproducibility.
func (e *Engine) SetRandomSource(r RandomSource) {
	e.rand = r
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	e.logger = l
}

// Create creates an experiment with equal traffic split across variants.
// At least one variant is required; each needs a name or content.
func (e *Engine) Create(ctx context.Context, name, category string, defs []VariantDef) (*store.Experiment, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if len(defs) < 1 {
		return nil, fmt.Errorf("%w: need at least one variant", ErrInvalidDefinition)
	}

	now := time.Now()
	id, err := e.newID(ctx, name, now)
	if err != nil {
		return nil, err
	}

	// Simple float split. Shares may not sum to exactly 100 for counts that
	// don't divide evenly; the assignment walk uses the last variant as a
	// catch-all for the shortfall.
	share := 100.0 / float64(len(defs))

	exp := &store.Experiment{
		ID:        id,
		Name:      name,
		Category:  category,
		Status:    store.StatusActive,
		CreatedAt: now,
	}
	for i, def := range defs {
		variantName := def.Name
		if variantName == "" {
			variantName = fmt.Sprintf("Variant %d", i+1)
		}
		exp.Variants = append(exp.Variants, &store.Variant{
			ID:         fmt.Sprintf("v%d", i+1),
			Name:       variantName,
			Content:    def.Content,
			TrafficPct: share,
		})
	}

	if err := e.store.CreateExperiment(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to persist experiment: %w", err)
	}

	e.logger.Info("experiment created",
		"experiment", exp.ID, "name", exp.Name, "variants", len(exp.Variants))
	return exp, nil
}

// newID derives a short collision-resistant identifier from the experiment
// name and creation time. On the (unlikely) collision it retries with added
// entropy from the nanosecond clock.
func (e *Engine) newID(ctx context.Context, name string, now time.Time) (string, error) {
	seed := name + now.Format(time.RFC3339Nano)
	for attempt := 0; attempt < 5; attempt++ {
		sum := md5.Sum([]byte(seed))
		id := hex.EncodeToString(sum[:])[:8]

		_, err := e.store.GetExperiment(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check id: %w", err)
		}
		seed = fmt.Sprintf("%s%s%d", name, now.Format(time.RFC3339Nano), time.Now().UnixNano())
	}
	return "", fmt.Errorf("could not generate a unique experiment id for %q", name)
}

// Close completes an experiment with an explicitly declared winner. This is
// the manual alternative to automatic lock-in; it is refused once the
// experiment is already completed.
func (e *Engine) Close(ctx context.Context, experimentID, variantID string) (*store.Experiment, error) {
	lock := e.experimentLock(experimentID)
	lock.Lock()
	defer lock.Unlock()

	exp, err := e.getExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Completed() {
		return nil, fmt.Errorf("%w: already completed", ErrNotActive)
	}

	v := exp.Variant(variantID)
	if v == nil {
		return nil, fmt.Errorf("%w: variant %s", ErrNotFound, variantID)
	}

	now := time.Now()
	exp.Status = store.StatusCompleted
	exp.Winner = v.ID
	exp.CompletedAt = &now
	if v.Assignments > 0 {
		exp.WinningRate = round1(float64(v.Responses) / float64(v.Assignments) * 100)
	}

	if err := e.store.UpdateExperiment(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to persist closure: %w", err)
	}

	e.logger.Info("experiment closed manually",
		"experiment", exp.ID, "winner", v.ID)
	return exp, nil
}

// Summary is a brief projection of an experiment for listings.
type Summary struct {
	ID               string
	Name             string
	Category         string
	Status           store.ExperimentStatus
	TotalAssignments int
	VariantCount     int
	Winner           string
	CreatedAt        time.Time
}

// ListActive returns summaries of all active experiments.
func (e *Engine) ListActive(ctx context.Context) ([]Summary, error) {
	exps, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return summarize(exps), nil
}

// ListAll returns summaries of every experiment, completed ones included.
func (e *Engine) ListAll(ctx context.Context) ([]Summary, error) {
	exps, err := e.store.ListExperiments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return summarize(exps), nil
}

func summarize(exps []*store.Experiment) []Summary {
	summaries := make([]Summary, 0, len(exps))
	for _, exp := range exps {
		summaries = append(summaries, Summary{
			ID:               exp.ID,
			Name:             exp.Name,
			Category:         exp.Category,
			Status:           exp.Status,
			TotalAssignments: exp.TotalAssignments,
			VariantCount:     len(exp.Variants),
			Winner:           exp.Winner,
			CreatedAt:        exp.CreatedAt,
		})
	}
	return summaries
}

// TopVariant is one entry of the cross-experiment leaderboard.
type TopVariant struct {
	ExperimentID   string
	ExperimentName string
	VariantName    string
	Content        string
	ResponseRate   float64 // percent, one decimal
	SampleSize     int
}

// TopPerforming returns the best variants across experiments, optionally
// filtered by category. Variants below minAssignments are excluded so a
// lucky 1-for-1 doesn't top the board.
func (e *Engine) TopPerforming(ctx context.Context, category string, minAssignments int) ([]TopVariant, error) {
	if minAssignments < 1 {
		minAssignments = 10
	}

	exps, err := e.store.ListExperiments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	var best []TopVariant
	for _, exp := range exps {
		if category != "" && exp.Category != category {
			continue
		}
		for _, v := range exp.Variants {
			if v.Assignments < minAssignments {
				continue
			}
			best = append(best, TopVariant{
				ExperimentID:   exp.ID,
				ExperimentName: exp.Name,
				VariantName:    v.Name,
				Content:        truncate(v.Content, 100),
				ResponseRate:   round1(float64(v.Responses) / float64(v.Assignments) * 100),
				SampleSize:     v.Assignments,
			})
		}
	}

	sort.SliceStable(best, func(i, j int) bool {
		return best[i].ResponseRate > best[j].ResponseRate
	})
	if len(best) > 10 {
		best = best[:10]
	}
	return best, nil
}

// experimentLock returns the mutex serializing counter mutations for one
// experiment.
func (e *Engine) experimentLock(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

func (e *Engine) getExperiment(ctx context.Context, id string) (*store.Experiment, error) {
	exp, err := e.store.GetExperiment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}
	return exp, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
