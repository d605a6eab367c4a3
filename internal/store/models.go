package store

import "time"

type ExperimentStatus string

const (
	StatusActive    ExperimentStatus = "active"
	StatusCompleted ExperimentStatus = "completed"
)

// Experiment is one named test comparing variants for a single objective.
// Counters are mutated by the engine and written back as a whole via
// UpdateExperiment.
type Experiment struct {
	ID               string
	Name             string
	Category         string // free-form tag, e.g. "email_subject" or "resume"
	Status           ExperimentStatus
	Variants         []*Variant // creation order
	TotalAssignments int
	Winner           string // variant id, empty until locked
	WinningRate      float64
	Confidence       float64
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// Variant is one treatment arm. Content is an opaque payload owned by the
// caller; the engine stores and returns it without interpretation.
type Variant struct {
	ID          string // "v1", "v2", ... in creation order
	Name        string
	Content     string
	TrafficPct  float64
	Assignments int
	Responses   int
	Interviews  int
	Offers      int
}

// OutcomeEvent is one row of the append-only audit log. Events are never
// mutated or deleted; counters can be rebuilt from them.
type OutcomeEvent struct {
	ID           int64
	ExperimentID string
	VariantID    string
	Kind         string
	Detail       string
	CreatedAt    time.Time
}

// Variant returns the variant with the given id, or nil.
func (e *Experiment) Variant(id string) *Variant {
	for _, v := range e.Variants {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Completed reports whether the experiment has finished, either by winner
// lock-in or explicit closure.
func (e *Experiment) Completed() bool {
	return e.Status == StatusCompleted
}
