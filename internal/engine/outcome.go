package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/splitpick/splitpick/internal/stats"
	"github.com/splitpick/splitpick/internal/store"
)

// Outcome kinds. Response, interview, and offer bump the matching variant
// counter; sent and rejection are audit-log only.
const (
	OutcomeSent      = "sent"
	OutcomeResponse  = "response"
	OutcomeInterview = "interview"
	OutcomeOffer     = "offer"
	OutcomeRejection = "rejection"
)

// RecordOutcome appends an event to the audit log, updates the matching
// variant counter, and re-evaluates significance. A winner is therefore
// never more than one outcome stale. Outcomes recorded after lock-in still
// land in the log and the counters, but cannot change the winner.
func (e *Engine) RecordOutcome(ctx context.Context, experimentID, variantID, kind, detail string) error {
	lock := e.experimentLock(experimentID)
	lock.Lock()
	defer lock.Unlock()

	exp, err := e.getExperiment(ctx, experimentID)
	if err != nil {
		return err
	}

	v := exp.Variant(variantID)
	if v == nil {
		return fmt.Errorf("%w: variant %s in experiment %s", ErrNotFound, variantID, experimentID)
	}

	event := &store.OutcomeEvent{
		ExperimentID: experimentID,
		VariantID:    variantID,
		Kind:         kind,
		Detail:       detail,
		CreatedAt:    time.Now(),
	}
	if err := e.store.AppendOutcome(ctx, event); err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}

	switch kind {
	case OutcomeResponse:
		v.Responses++
	case OutcomeInterview:
		v.Interviews++
	case OutcomeOffer:
		v.Offers++
	}

	e.maybeLockWinner(exp)

	if err := e.store.UpdateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("failed to persist outcome: %w", err)
	}
	return nil
}

// maybeLockWinner runs the significance evaluator and applies a winner
// decision to the experiment in memory. No-op once completed; the caller
// persists the result.
func (e *Engine) maybeLockWinner(exp *store.Experiment) {
	if exp.Completed() {
		return
	}

	decision := stats.Evaluate(exp, e.minSampleSize, e.confidence)
	if !decision.Locked {
		return
	}

	now := time.Now()
	exp.Status = store.StatusCompleted
	exp.Winner = decision.VariantID
	exp.WinningRate = decision.RatePct
	exp.Confidence = decision.Confidence
	exp.CompletedAt = &now

	e.logger.Info("winner locked",
		"experiment", exp.ID,
		"variant", decision.VariantID,
		"rate_pct", decision.RatePct,
		"confidence", decision.Confidence,
		"z", decision.Z)
}
