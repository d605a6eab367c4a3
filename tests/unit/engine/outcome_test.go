package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
	"github.com/splitpick/splitpick/tests/testutil"
)

// fill assigns enough distinct subjects to give each of two variants
// roughly n assignments. Returns per-variant assignment counts.
func fill(t *testing.T, eng *engine.Engine, expID string, n int) map[string]int {
	t.Helper()
	ctx := context.Background()

	counts := make(map[string]int)
	i := 0
	for smallest(counts) < n {
		v, err := eng.Assign(ctx, expID, fmt.Sprintf("subject-%d", i))
		if err != nil {
			t.Fatalf("failed to assign: %v", err)
		}
		counts[v.ID]++
		i++
		if i > n*100 {
			t.Fatalf("bucketing never filled both variants: %v", counts)
		}
	}
	return counts
}

func smallest(counts map[string]int) int {
	if len(counts) < 2 {
		return 0
	}
	min := -1
	for _, c := range counts {
		if min == -1 || c < min {
			min = c
		}
	}
	return min
}

func TestRecordOutcome_UpdatesCounters(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	outcomes := []string{"sent", "response", "interview", "offer", "rejection"}
	for _, kind := range outcomes {
		if err := eng.RecordOutcome(ctx, exp.ID, "v1", kind, ""); err != nil {
			t.Fatalf("failed to record %s: %v", kind, err)
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}

	v1 := st.Variants[0]
	if v1.Responses != 1 {
		t.Errorf("got %d responses, want 1", v1.Responses)
	}
	if v1.Interviews != 1 {
		t.Errorf("got %d interviews, want 1", v1.Interviews)
	}
	if v1.Offers != 1 {
		t.Errorf("got %d offers, want 1", v1.Offers)
	}
}

func TestRecordOutcome_AppendsAuditLog(t *testing.T) {
	eng, s := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	if err := eng.RecordOutcome(ctx, exp.ID, "v1", "response", "ACME replied"); err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	if err := eng.RecordOutcome(ctx, exp.ID, "v2", "rejection", ""); err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	events, err := s.GetOutcomes(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get outcomes: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != "response" || events[0].Detail != "ACME replied" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].VariantID != "v2" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestRecordOutcome_UnknownVariant(t *testing.T) {
	eng, s := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	err := eng.RecordOutcome(ctx, exp.ID, "v9", "response", "")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Log and counters unchanged.
	events, err := s.GetOutcomes(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get outcomes: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty audit log, got %d events", len(events))
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	for _, v := range st.Variants {
		if v.Responses != 0 {
			t.Errorf("variant %s responses = %d, want 0", v.ID, v.Responses)
		}
	}
}

func TestRecordOutcome_UnknownExperiment(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)

	err := eng.RecordOutcome(context.Background(), "deadbeef", "v1", "response", "")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordOutcome_BelowMinimumSampleStaysActive(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)
	counts := fill(t, eng, exp.ID, 10)

	// 3 vs 2 responses on ~10 assignments each: far below 30 per variant.
	for i := 0; i < 3; i++ {
		if err := eng.RecordOutcome(ctx, exp.ID, "v1", "response", ""); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := eng.RecordOutcome(ctx, exp.ID, "v2", "response", ""); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if st.Status != store.StatusActive {
		t.Errorf("expected experiment to stay active with counts %v, got %s", counts, st.Status)
	}
	if st.Winner != "" {
		t.Errorf("expected no winner, got %s", st.Winner)
	}
}

func TestRecordOutcome_LocksWinner(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)
	fill(t, eng, exp.ID, 40)

	// Balance the first responses so no premature lock, then pile
	// responses onto v1 until the z-test clears 1.96.
	for i := 0; i < 5; i++ {
		if err := eng.RecordOutcome(ctx, exp.ID, "v1", "response", ""); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		if err := eng.RecordOutcome(ctx, exp.ID, "v2", "response", ""); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
	}
	for i := 0; i < 25; i++ {
		if err := eng.RecordOutcome(ctx, exp.ID, "v1", "response", ""); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		st, err := eng.Stats(ctx, exp.ID)
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if st.Status == store.StatusCompleted {
			break
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if st.Status != store.StatusCompleted {
		t.Fatalf("expected winner locked, still active: %+v", st)
	}
	if st.Winner != "v1" {
		t.Errorf("expected winner v1, got %s", st.Winner)
	}
	if st.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", st.Confidence)
	}
	if st.WinningRatePct <= 0 {
		t.Errorf("expected positive winning rate, got %v", st.WinningRatePct)
	}

	// Winner stability: all future assignments return the winner.
	for i := 0; i < 10; i++ {
		v, err := eng.Assign(ctx, exp.ID, fmt.Sprintf("late-%d", i))
		if err != nil {
			t.Fatalf("failed to assign after lock: %v", err)
		}
		if v.ID != "v1" {
			t.Fatalf("expected locked winner v1, got %s", v.ID)
		}
	}
}

func TestRecordOutcome_AfterLockStillCountsButWinnerStable(t *testing.T) {
	eng, s := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)
	fill(t, eng, exp.ID, 40)

	if _, err := eng.Close(ctx, exp.ID, "v1"); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	eventsBefore, err := s.GetOutcomes(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get outcomes: %v", err)
	}

	// A flood of responses for the loser must not flip the winner.
	for i := 0; i < 30; i++ {
		if err := eng.RecordOutcome(ctx, exp.ID, "v2", "response", ""); err != nil {
			t.Fatalf("failed to record after lock: %v", err)
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if st.Winner != "v1" {
		t.Errorf("winner changed after lock: %s", st.Winner)
	}
	if st.Variants[1].Responses != 30 {
		t.Errorf("counters must still update after lock, got %d responses", st.Variants[1].Responses)
	}

	eventsAfter, err := s.GetOutcomes(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get outcomes: %v", err)
	}
	if len(eventsAfter) != len(eventsBefore)+30 {
		t.Errorf("audit log must keep growing after lock: %d -> %d", len(eventsBefore), len(eventsAfter))
	}
}

func TestTopPerforming(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)
	counts := fill(t, eng, exp.ID, 12)

	// Half of v2's assignments respond, a single v1 does: v2 leads.
	responsesFor := map[string]int{"v1": 1, "v2": counts["v2"] / 2}
	for id, n := range responsesFor {
		for i := 0; i < n; i++ {
			if err := eng.RecordOutcome(ctx, exp.ID, id, "response", ""); err != nil {
				t.Fatalf("failed to record: %v", err)
			}
		}
	}

	best, err := eng.TopPerforming(ctx, "email_subject", 10)
	if err != nil {
		t.Fatalf("failed to rank: %v", err)
	}
	if len(best) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(best))
	}
	if best[0].VariantName != "Referral" {
		t.Errorf("expected Referral on top, got %s", best[0].VariantName)
	}

	// Category filter excludes everything else.
	none, err := eng.TopPerforming(ctx, "resume", 10)
	if err != nil {
		t.Fatalf("failed to rank: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no entries for other category, got %d", len(none))
	}
}

func TestClose_AlreadyCompleted(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)
	if _, err := eng.Close(ctx, exp.ID, "v1"); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	_, err := eng.Close(ctx, exp.ID, "v2")
	if !errors.Is(err, engine.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}
