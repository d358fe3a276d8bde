package align

import (
	"math"
	"testing"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// rep builds a MelodyRep from interval symbols, deriving contour from the
// symbol signs and using a constant IOI.
func rep(intervals []int, ioi float64) models.MelodyRep {
	contour := make([]int, len(intervals))
	iois := make([]float64, len(intervals))
	for i, v := range intervals {
		switch {
		case v > 0:
			contour[i] = 1
		case v < 0:
			contour[i] = -1
		}
		iois[i] = ioi
	}
	return models.MelodyRep{Intervals: intervals, Contour: contour, IOI: iois}
}

func TestAlignEmptyIsIncomparable(t *testing.T) {
	w := DefaultWeights()
	full := rep([]int{1, -1, 2}, 0.5)
	empty := models.MelodyRep{Pitches: []int{60}}

	for _, pair := range [][2]models.MelodyRep{
		{empty, full},
		{full, empty},
		{empty, empty},
	} {
		res := Align(pair[0], pair[1], w)
		if !math.IsInf(res.Cost, 1) {
			t.Errorf("expected +Inf cost, got %f", res.Cost)
		}
		if res.EndJ != -1 {
			t.Errorf("expected EndJ -1, got %d", res.EndJ)
		}
	}
}

func TestAlignIdenticalIsZero(t *testing.T) {
	w := DefaultWeights()
	w.Timing = 0

	q := rep([]int{1, 1, 1, -1, -1}, 0.5)
	res := Align(q, q, w)

	if res.Cost != 0.0 {
		t.Errorf("self-alignment cost = %f, expected 0", res.Cost)
	}
	if res.EndJ != len(q.Intervals)-1 {
		t.Errorf("EndJ = %d, expected %d", res.EndJ, len(q.Intervals)-1)
	}
}

func TestAlignIdenticalEqualIOIsZeroWithTiming(t *testing.T) {
	// Equal IOIs mean every consecutive tempo ratio is 1 on both sides, so
	// the timing term contributes nothing even when enabled.
	q := rep([]int{2, -1, 3, 0}, 0.4)
	res := Align(q, q, DefaultWeights())

	if res.Cost != 0.0 {
		t.Errorf("cost = %f, expected 0", res.Cost)
	}
}

func TestAlignFreeStartAndEnd(t *testing.T) {
	// The query matches intervals 2..6 of the candidate exactly; the free
	// start/end must find that segment at zero cost.
	song := rep([]int{3, -3, 1, 1, 1, -1, -1, 2, -2}, 0.5)
	q := rep([]int{1, 1, 1, -1, -1}, 0.5)

	res := Align(q, song, DefaultWeights())
	if res.Cost != 0.0 {
		t.Errorf("cost = %f, expected 0 for embedded exact match", res.Cost)
	}
	if res.EndJ != 6 {
		t.Errorf("EndJ = %d, expected 6", res.EndJ)
	}
}

func TestAlignCandidateMergeConsidered(t *testing.T) {
	// Query [2] against candidate [1,1]: the candidate-side merge path
	// costs exactly MergePenalty (clamp(1+1)=2 matches, contours match),
	// while a plain substitution against either candidate interval costs
	// |2-1|/8 = 0.125. The DP must pick the cheaper substitution.
	q := rep([]int{2}, 0.5)
	song := rep([]int{1, 1}, 0.5)

	res := Align(q, song, DefaultWeights())
	if math.Abs(res.Cost-0.125) > 1e-12 {
		t.Errorf("cost = %f, expected 0.125", res.Cost)
	}
	if res.Cost >= MergePenalty {
		t.Errorf("substitution path (%f) should beat merge path (%f)", res.Cost, MergePenalty)
	}
}

func TestAlignQueryMergeWins(t *testing.T) {
	// Query [1,1] against candidate [2]: substitute-then-insert costs
	// 0.125 + 0.8, while merging the two query intervals into clamp(2)=2
	// costs only the fixed penalty. The DP must take the merge.
	q := rep([]int{1, 1}, 0.5)
	song := rep([]int{2}, 0.5)

	res := Align(q, song, DefaultWeights())
	if math.Abs(res.Cost-MergePenalty) > 1e-12 {
		t.Errorf("cost = %f, expected %f via query-side merge", res.Cost, MergePenalty)
	}
}

func TestAlignTimingRatioCost(t *testing.T) {
	w := DefaultWeights()

	q := rep([]int{1, 1}, 0)
	q.IOI = []float64{0.5, 0.5}

	// Uniformly twice as slow: ratios match, no timing cost.
	scaled := rep([]int{1, 1}, 0)
	scaled.IOI = []float64{1.0, 1.0}
	if res := Align(q, scaled, w); res.Cost != 0.0 {
		t.Errorf("uniform tempo scaling cost = %f, expected 0", res.Cost)
	}

	// Second IOI doubled: ratio 2 vs 1, cost w.Timing * ln 2.
	warped := rep([]int{1, 1}, 0)
	warped.IOI = []float64{0.5, 1.0}
	res := Align(q, warped, w)
	want := w.Timing * math.Log(2)
	if math.Abs(res.Cost-want) > 1e-12 {
		t.Errorf("warped tempo cost = %f, expected %f", res.Cost, want)
	}
}

func TestAlignAbsolutePitchTieBreaker(t *testing.T) {
	w := DefaultWeights()

	q := rep([]int{1, -1}, 0.5)
	q.Pitches = []int{60, 62, 60}

	octaveUp := rep([]int{1, -1}, 0.5)
	octaveUp.Pitches = []int{72, 74, 72}

	res := Align(q, octaveUp, w)
	want := w.AbsPitch // one octave of mean-pitch distance
	if math.Abs(res.Cost-want) > 1e-12 {
		t.Errorf("octave tie-breaker cost = %f, expected %f", res.Cost, want)
	}

	// Same register: no penalty at all.
	if res := Align(q, q, w); res.Cost != 0.0 {
		t.Errorf("same-register cost = %f, expected 0", res.Cost)
	}
}

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	if w.Interval != 1.0 || w.Contour != 0.7 || w.Timing != 0.15 ||
		w.AbsPitch != 0.2 || w.Insert != 0.8 || w.Delete != 0.8 {
		t.Errorf("unexpected default weights: %+v", w)
	}
}
