package engine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/splitpick/splitpick/internal/engine"
	"github.com/splitpick/splitpick/internal/store"
	"github.com/splitpick/splitpick/tests/testutil"
)

func createExperiment(t *testing.T, eng *engine.Engine, defs ...engine.VariantDef) *store.Experiment {
	t.Helper()
	exp, err := eng.Create(context.Background(), "Subject Line Test", "email_subject", defs)
	if err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}
	return exp
}

func twoVariants() []engine.VariantDef {
	return []engine.VariantDef{
		{Name: "Direct", Content: "Application for {job_title}"},
		{Name: "Referral", Content: "Referred candidate for {job_title}"},
	}
}

func TestAssign_SameSubjectSameVariant(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	first, err := eng.Assign(ctx, exp.ID, "candidate-42")
	if err != nil {
		t.Fatalf("failed to assign: %v", err)
	}

	for i := 0; i < 49; i++ {
		v, err := eng.Assign(ctx, exp.ID, "candidate-42")
		if err != nil {
			t.Fatalf("assign %d failed: %v", i, err)
		}
		if v.ID != first.ID {
			t.Fatalf("assign %d returned %s, first returned %s", i, v.ID, first.ID)
		}
	}
}

func TestAssign_DeterministicAcrossInterleaving(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	// Record the first assignment of each subject, then replay every subject
	// interleaved with the others and expect the same variant back.
	firstSeen := make(map[string]string)
	for i := 0; i < 20; i++ {
		subject := fmt.Sprintf("subject-%d", i)
		v, err := eng.Assign(ctx, exp.ID, subject)
		if err != nil {
			t.Fatalf("failed to assign %s: %v", subject, err)
		}
		firstSeen[subject] = v.ID
	}

	for round := 0; round < 3; round++ {
		for i := 0; i < 20; i++ {
			subject := fmt.Sprintf("subject-%d", i)
			v, err := eng.Assign(ctx, exp.ID, subject)
			if err != nil {
				t.Fatalf("failed to assign %s: %v", subject, err)
			}
			if v.ID != firstSeen[subject] {
				t.Fatalf("subject %s moved from %s to %s", subject, firstSeen[subject], v.ID)
			}
		}
	}
}

func TestAssign_CountsAssignments(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	for i := 0; i < 10; i++ {
		if _, err := eng.Assign(ctx, exp.ID, fmt.Sprintf("s%d", i)); err != nil {
			t.Fatalf("failed to assign: %v", err)
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if st.TotalAssignments != 10 {
		t.Errorf("got %d total assignments, want 10", st.TotalAssignments)
	}

	sum := 0
	for _, v := range st.Variants {
		sum += v.Assignments
	}
	if sum != 10 {
		t.Errorf("variant assignments sum to %d, want 10", sum)
	}
}

func TestAssign_AnonymousDrawResolves(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng,
		engine.VariantDef{Name: "A"},
		engine.VariantDef{Name: "B"},
		engine.VariantDef{Name: "C"},
	)

	// Seeded source: every random draw must land on exactly one variant,
	// including draws at the top of the range where float shares fall
	// short of 100.
	for i := 0; i < 300; i++ {
		if _, err := eng.Assign(ctx, exp.ID, ""); err != nil {
			t.Fatalf("anonymous assign %d failed: %v", i, err)
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if st.TotalAssignments != 300 {
		t.Errorf("got %d assignments, want 300", st.TotalAssignments)
	}
}

func TestCreate_TrafficSharesNearlySum(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)

	exp := createExperiment(t, eng,
		engine.VariantDef{Name: "A"},
		engine.VariantDef{Name: "B"},
		engine.VariantDef{Name: "C"},
	)

	sum := 0.0
	for _, v := range exp.Variants {
		sum += v.TrafficPct
	}
	if math.Abs(sum-100) >= float64(len(exp.Variants)) {
		t.Errorf("traffic shares sum to %v, want within %d of 100", sum, len(exp.Variants))
	}
}

func TestAssign_UnknownExperiment(t *testing.T) {
	eng, s := testutil.SetupTestEngine(t)
	ctx := context.Background()

	_, err := eng.Assign(ctx, "deadbeef", "candidate-1")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// No partial mutation anywhere.
	exps, err := s.ListExperiments(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(exps) != 0 {
		t.Errorf("expected no experiments, got %d", len(exps))
	}
}

func TestAssign_WinnerShortCircuit(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	if _, err := eng.Close(ctx, exp.ID, "v2"); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	before, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}

	// Every subject gets the winner, counters untouched.
	for i := 0; i < 25; i++ {
		v, err := eng.Assign(ctx, exp.ID, fmt.Sprintf("late-%d", i))
		if err != nil {
			t.Fatalf("failed to assign after close: %v", err)
		}
		if v.ID != "v2" {
			t.Fatalf("expected winner v2, got %s", v.ID)
		}
	}

	after, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if after.TotalAssignments != before.TotalAssignments {
		t.Errorf("winner assignments must not increment counters: %d -> %d",
			before.TotalAssignments, after.TotalAssignments)
	}
}

func TestCreate_RequiresVariants(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)

	_, err := eng.Create(context.Background(), "Empty", "", nil)
	if !errors.Is(err, engine.ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestCreate_GeneratesShortIDs(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		exp, err := eng.Create(ctx, fmt.Sprintf("Test %d", i), "", twoVariants())
		if err != nil {
			t.Fatalf("failed to create: %v", err)
		}
		if len(exp.ID) != 8 {
			t.Errorf("expected 8-char id, got %q", exp.ID)
		}
		if seen[exp.ID] {
			t.Errorf("duplicate id %s", exp.ID)
		}
		seen[exp.ID] = true
	}
}
