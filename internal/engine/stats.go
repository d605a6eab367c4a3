package engine

import (
	"context"
	"math"
	"time"

	"github.com/splitpick/splitpick/internal/store"
)

// Stats is the read-only projection of an experiment's current state.
type Stats struct {
	ID               string
	Name             string
	Category         string
	Status           store.ExperimentStatus
	TotalAssignments int
	Winner           string // variant id, empty while undecided
	WinningRatePct   float64
	Confidence       float64
	CreatedAt        time.Time
	CompletedAt      *time.Time
	Variants         []VariantStats
}

// VariantStats carries per-variant counters and display rates. Rates are
// rounded to one decimal for presentation; the evaluator never uses them.
type VariantStats struct {
	ID               string
	Name             string
	Content          string
	Assignments      int
	Responses        int
	Interviews       int
	Offers           int
	ResponseRatePct  float64
	InterviewRatePct float64
	IsWinner         bool
}

// Stats computes the projection on demand from current counters. Pure read.
func (e *Engine) Stats(ctx context.Context, experimentID string) (*Stats, error) {
	exp, err := e.getExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	s := &Stats{
		ID:               exp.ID,
		Name:             exp.Name,
		Category:         exp.Category,
		Status:           exp.Status,
		TotalAssignments: exp.TotalAssignments,
		Winner:           exp.Winner,
		WinningRatePct:   exp.WinningRate,
		Confidence:       exp.Confidence,
		CreatedAt:        exp.CreatedAt,
		CompletedAt:      exp.CompletedAt,
	}

	for _, v := range exp.Variants {
		vs := VariantStats{
			ID:          v.ID,
			Name:        v.Name,
			Content:     v.Content,
			Assignments: v.Assignments,
			Responses:   v.Responses,
			Interviews:  v.Interviews,
			Offers:      v.Offers,
			IsWinner:    v.ID == exp.Winner && exp.Winner != "",
		}
		if v.Assignments > 0 {
			vs.ResponseRatePct = round1(float64(v.Responses) / float64(v.Assignments) * 100)
			vs.InterviewRatePct = round1(float64(v.Interviews) / float64(v.Assignments) * 100)
		}
		s.Variants = append(s.Variants, vs)
	}

	return s, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
