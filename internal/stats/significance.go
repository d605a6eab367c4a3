package stats

import (
	"math"
	"sort"

	"github.com/splitpick/splitpick/internal/store"
)

const (
	// DefaultMinSampleSize is the minimum number of assignments each variant
	// needs on average before a winner can be declared.
	DefaultMinSampleSize = 30

	// DefaultConfidence is the confidence level used when none is configured.
	DefaultConfidence = 0.95
)

// Decision is the outcome of a significance evaluation.
type Decision struct {
	Locked     bool
	VariantID  string
	RatePct    float64 // winning response rate as a percentage, one decimal
	Confidence float64 // confidence level the test was run at (0-1)
	Z          float64
}

type ranked struct {
	id          string
	rate        float64
	assignments int
}

// Evaluate runs a two-proportion z-test between the best and second-best
// variants by response rate. It returns a locked decision only when the
// experiment has enough samples and the z-score clears the critical value
// for the requested confidence level.
//
// Ties in response rate are broken by creation order: the earlier-created
// variant ranks first.
func Evaluate(exp *store.Experiment, minSampleSize int, confidence float64) Decision {
	none := Decision{Confidence: confidence}

	if len(exp.Variants) < 2 {
		return none
	}
	if exp.TotalAssignments < minSampleSize*len(exp.Variants) {
		return none
	}

	var rates []ranked
	for _, v := range exp.Variants {
		if v.Assignments > 0 {
			rates = append(rates, ranked{
				id:          v.ID,
				rate:        float64(v.Responses) / float64(v.Assignments),
				assignments: v.Assignments,
			})
		}
	}
	if len(rates) < 2 {
		return none
	}

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].rate > rates[j].rate
	})
	best, second := rates[0], rates[1]

	p1, n1 := best.rate, float64(best.assignments)
	p2, n2 := second.rate, float64(second.assignments)

	pooled := (p1*n1 + p2*n2) / (n1 + n2)
	if pooled == 0 || pooled == 1 {
		// Degenerate: no variance under the null hypothesis.
		return none
	}

	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return none
	}

	z := (p1 - p2) / se
	if z <= CriticalValue(confidence) {
		return Decision{Confidence: confidence, Z: z}
	}

	return Decision{
		Locked:     true,
		VariantID:  best.id,
		RatePct:    math.Round(p1*1000) / 10, // display rounding only
		Confidence: confidence,
		Z:          z,
	}
}

// ConfidenceLevel returns the probability (0-1) that variant A's true rate
// exceeds variant B's, from a pooled two-proportion z-test. Used for
// reporting; winner lock-in goes through Evaluate instead.
func ConfidenceLevel(aResp, aAssign, bResp, bAssign int) float64 {
	if aAssign == 0 || bAssign == 0 {
		return 0.5
	}

	pA := float64(aResp) / float64(aAssign)
	pB := float64(bResp) / float64(bAssign)
	pooled := float64(aResp+bResp) / float64(aAssign+bAssign)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(aAssign) + 1/float64(bAssign)))
	if se == 0 {
		switch {
		case pA > pB:
			return 1.0
		case pA < pB:
			return 0.0
		default:
			return 0.5
		}
	}

	return normalCDF((pA - pB) / se)
}

// normalCDF approximates the standard normal cumulative distribution
// function (Abramowitz and Stegun 7.1.26).
func normalCDF(x float64) float64 {
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
