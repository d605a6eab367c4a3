package store

import "context"

// Store defines the interface for experiment storage operations
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, exp *Experiment) error
	GetExperiment(ctx context.Context, id string) (*Experiment, error)
	ListExperiments(ctx context.Context) ([]*Experiment, error)
	ListActive(ctx context.Context) ([]*Experiment, error)
	UpdateExperiment(ctx context.Context, exp *Experiment) error

	// Outcome event operations (append-only audit log)
	AppendOutcome(ctx context.Context, event *OutcomeEvent) error
	GetOutcomes(ctx context.Context, experimentID string) ([]*OutcomeEvent, error)

	// Lifecycle
	Close() error
}
