package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/splitpick/splitpick/tests/testutil"
)

func TestAssign_ConcurrentSubjectsConverge(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	results := make([][]string, workers)
	errs := make([]error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v, err := eng.Assign(ctx, exp.ID, "shared-subject")
				if err != nil {
					errs[w] = err
					return
				}
				results[w] = append(results[w], v.ID)
			}
		}(w)
	}
	wg.Wait()

	for w, err := range errs {
		if err != nil {
			t.Fatalf("worker %d failed: %v", w, err)
		}
	}

	want := results[0][0]
	for w := range results {
		for i, got := range results[w] {
			if got != want {
				t.Fatalf("worker %d assign %d got %s, want %s", w, i, got, want)
			}
		}
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if st.TotalAssignments != workers*perWorker {
		t.Errorf("lost increments: got %d, want %d", st.TotalAssignments, workers*perWorker)
	}
}

func TestRecordOutcome_ConcurrentIncrementsNotLost(t *testing.T) {
	eng, _ := testutil.SetupTestEngine(t)
	ctx := context.Background()

	exp := createExperiment(t, eng, twoVariants()...)
	fill(t, eng, exp.ID, 40)

	const workers = 6
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			variant := "v1"
			if w%2 == 1 {
				variant = "v2"
			}
			for i := 0; i < 5; i++ {
				if err := eng.RecordOutcome(ctx, exp.ID, variant, "interview", fmt.Sprintf("w%d", w)); err != nil {
					errCh <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent record failed: %v", err)
	}

	st, err := eng.Stats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	total := st.Variants[0].Interviews + st.Variants[1].Interviews
	if total != workers*5 {
		t.Errorf("lost outcome increments: got %d, want %d", total, workers*5)
	}
}
