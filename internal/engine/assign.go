package engine

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/splitpick/splitpick/internal/store"
)

// Assign resolves a variant for a subject.
//
// A completed experiment with a locked winner returns the winner
// unconditionally, with no hashing and no counter increment: once a decision
// is made, every subject gets the winning treatment.
//
// With a subject id the draw is a stable hash of experiment id + subject id,
// so the same subject always lands on the same variant for the life of the
// experiment. Without one, a uniform random draw is used instead.
func (e *Engine) Assign(ctx context.Context, experimentID, subjectID string) (*store.Variant, error) {
	lock := e.experimentLock(experimentID)
	lock.Lock()
	defer lock.Unlock()

	exp, err := e.getExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	if exp.Completed() {
		if winner := exp.Variant(exp.Winner); winner != nil {
			return winner, nil
		}
		return nil, fmt.Errorf("%w: completed without a winner", ErrNotActive)
	}

	var draw int
	if subjectID != "" {
		draw = bucket(experimentID, subjectID)
	} else {
		draw = e.rand.Intn(100) + 1
	}

	chosen := pickVariant(exp.Variants, draw)

	chosen.Assignments++
	exp.TotalAssignments++
	if err := e.store.UpdateExperiment(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to persist assignment: %w", err)
	}

	e.logger.Debug("assigned variant",
		"experiment", exp.ID, "variant", chosen.ID, "deterministic", subjectID != "")
	return chosen, nil
}

// bucket maps (experiment, subject) to a value in [1, 100] by interpreting
// the 128-bit digest of the concatenated ids as an integer mod 100.
func bucket(experimentID, subjectID string) int {
	sum := md5.Sum([]byte(experimentID + subjectID))
	val := 0
	for _, b := range sum {
		val = (val*256 + int(b)) % 100
	}
	return val + 1
}

// pickVariant walks variants in creation order, accumulating traffic shares,
// and returns the first whose cumulative upper bound reaches the draw. The
// last variant absorbs any rounding shortfall in the shares.
func pickVariant(variants []*store.Variant, draw int) *store.Variant {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.TrafficPct
		if float64(draw) <= cumulative {
			return v
		}
	}
	return variants[len(variants)-1]
}
