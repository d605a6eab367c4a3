package stats_test

import (
	"math"
	"testing"

	"github.com/splitpick/splitpick/internal/stats"
)

func TestCriticalValue_CommonLevels(t *testing.T) {
	cases := []struct {
		confidence float64
		want       float64
	}{
		{0.90, 1.645},
		{0.95, 1.96},
		{0.99, 2.576},
	}

	for _, tc := range cases {
		got := stats.CriticalValue(tc.confidence)
		if got != tc.want {
			t.Errorf("CriticalValue(%v) = %v, want %v", tc.confidence, got, tc.want)
		}
	}
}

func TestCriticalValue_Approximated(t *testing.T) {
	// 80% confidence one-tailed z is about 1.28.
	got := stats.CriticalValue(0.80)
	if math.Abs(got-1.28) > 0.01 {
		t.Errorf("CriticalValue(0.80) = %v, want ~1.28", got)
	}
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0, 0.95)
	if lower != 0 || upper != 0 {
		t.Errorf("expected [0, 0] for zero trials, got [%v, %v]", lower, upper)
	}
}

func TestWilsonInterval_ContainsObservedRate(t *testing.T) {
	lower, upper := stats.WilsonInterval(10, 100, 0.95)

	if lower >= 0.10 {
		t.Errorf("lower bound %v should be below observed rate 0.10", lower)
	}
	if upper <= 0.10 {
		t.Errorf("upper bound %v should be above observed rate 0.10", upper)
	}
	if lower < 0 || upper > 1 {
		t.Errorf("interval [%v, %v] out of bounds", lower, upper)
	}
}

func TestWilsonInterval_NarrowsWithSampleSize(t *testing.T) {
	smallLower, smallUpper := stats.WilsonInterval(10, 100, 0.95)
	largeLower, largeUpper := stats.WilsonInterval(100, 1000, 0.95)

	if (largeUpper - largeLower) >= (smallUpper - smallLower) {
		t.Errorf("interval should narrow with more trials: small [%v, %v], large [%v, %v]",
			smallLower, smallUpper, largeLower, largeUpper)
	}
}

func TestWilsonInterval_ClampedAtExtremes(t *testing.T) {
	lower, _ := stats.WilsonInterval(0, 10, 0.95)
	if lower != 0 {
		t.Errorf("expected lower bound 0 for zero successes, got %v", lower)
	}

	_, upper := stats.WilsonInterval(10, 10, 0.95)
	if upper != 1 {
		t.Errorf("expected upper bound 1 for all successes, got %v", upper)
	}
}
