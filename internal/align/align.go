package align

import (
	"math"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// Tunables
const (
	// MergePenalty is the fixed surcharge for treating two consecutive
	// intervals on one side as a single interval on the other. Hummed
	// queries frequently split one sung note into two transcribed ones.
	MergePenalty = 0.6

	// epsRatio floors IOI ratio inputs before taking logs.
	epsRatio = 1e-6
)

// Weights is the six-element cost vector of the alignment. Interval,
// Contour and Timing scale the three local substitution terms, AbsPitch
// scales the mean-pitch tie-breaker, Insert and Delete price unmatched
// intervals on the query and candidate side respectively.
type Weights struct {
	Interval float64
	Contour  float64
	Timing   float64
	AbsPitch float64
	Insert   float64
	Delete   float64
}

// DefaultWeights returns the hand-tuned cost vector. Interval shape
// dominates, contour backs it up, timing and absolute pitch only nudge.
func DefaultWeights() Weights {
	return Weights{
		Interval: 1.0,
		Contour:  0.7,
		Timing:   0.15,
		AbsPitch: 0.2,
		Insert:   0.8,
		Delete:   0.8,
	}
}

// Result is the outcome of one alignment. Cost is +Inf and EndJ is -1 when
// the pair is incomparable (either side has no intervals); callers treat
// that as worst-possible similarity, it is not an error.
type Result struct {
	Cost float64 // non-negative, +Inf for incomparable pairs
	EndJ int     // index into the candidate intervals where the match ends
}

func intervalCost(a, b int) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return float64(d) / 8.0 // symbol range is [-4..+4]
}

func contourCost(a, b int) float64 {
	if a == b {
		return 0.0
	}
	return 1.0
}

// timingCost compares consecutive IOI ratios in log space, so a uniformly
// faster or slower performance costs nothing; only tempo inconsistency does.
func timingCost(qPrev, q, sPrev, s float64) float64 {
	rq := q / math.Max(epsRatio, qPrev)
	rs := s / math.Max(epsRatio, sPrev)
	return math.Abs(math.Log(math.Max(epsRatio, rq)) - math.Log(math.Max(epsRatio, rs)))
}

func clampSymbol(v int) int {
	if v > 4 {
		return 4
	}
	if v < -4 {
		return -4
	}
	return v
}

// Align computes the minimal forgiving subsequence alignment of the query
// representation against a candidate song. The query is fixed; the match
// may start and end anywhere inside the candidate (a hummed excerpt rarely
// lines up with a song's first note). Permitted edits are substitution,
// insertion, deletion, and a merge of two consecutive intervals on either
// side. O(m*n) time and space.
func Align(query, song models.MelodyRep, w Weights) Result {
	qi, qc, qt := query.Intervals, query.Contour, query.IOI
	si, sc, st := song.Intervals, song.Contour, song.IOI

	m := len(qi)
	n := len(si)
	if m == 0 || n == 0 {
		return Result{Cost: math.Inf(1), EndJ: -1}
	}

	inf := math.Inf(1)
	d := make([][]float64, m+1)
	for i := range d {
		d[i] = make([]float64, n+1)
		for j := range d[i] {
			d[i][j] = inf
		}
	}

	// Free start: an empty query prefix aligns anywhere in the song at no
	// cost. D[i][0] for i>0 stays +Inf; a nonempty query cannot align
	// against an empty song prefix.
	for j := 0; j <= n; j++ {
		d[0][j] = 0.0
	}

	local := func(i, j int) float64 {
		c := w.Interval*intervalCost(qi[i-1], si[j-1]) + w.Contour*contourCost(qc[i-1], sc[j-1])
		if i >= 2 && j >= 2 {
			c += w.Timing * timingCost(qt[i-2], qt[i-1], st[j-2], st[j-1])
		}
		return c
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			// match/substitute
			best := d[i-1][j-1] + local(i, j)

			// unmatched query interval
			if v := d[i-1][j] + w.Insert; v < best {
				best = v
			}
			// unmatched song interval
			if v := d[i][j-1] + w.Delete; v < best {
				best = v
			}

			// two query intervals ~ one song interval (spuriously split
			// note in the transcription)
			if i >= 2 {
				merged := clampSymbol(qi[i-2] + qi[i-1])
				cost := w.Interval*intervalCost(merged, si[j-1]) +
					w.Contour*contourCost(qc[i-1], sc[j-1]) +
					MergePenalty
				if v := d[i-2][j-1] + cost; v < best {
					best = v
				}
			}

			// one query interval ~ two song intervals
			if j >= 2 {
				merged := clampSymbol(si[j-2] + si[j-1])
				cost := w.Interval*intervalCost(qi[i-1], merged) +
					w.Contour*contourCost(qc[i-1], sc[j-1]) +
					MergePenalty
				if v := d[i-1][j-2] + cost; v < best {
					best = v
				}
			}

			d[i][j] = best
		}
	}

	// Free end: take the best cost over all end positions in the song.
	bestCost := inf
	bestJ := -1
	for j := 1; j <= n; j++ {
		if d[m][j] < bestCost {
			bestCost = d[m][j]
			bestJ = j - 1
		}
	}

	// Light absolute-pitch tie-breaker. Interval and contour costs are
	// key-invariant, so without this a query hummed an octave off would tie
	// with the true register; one octave of mean-pitch distance costs
	// exactly AbsPitch.
	if len(query.Pitches) > 0 && len(song.Pitches) > 0 {
		bestCost += w.AbsPitch * math.Abs(meanInt(query.Pitches)-meanInt(song.Pitches)) / 12.0
	}

	return Result{Cost: bestCost, EndJ: bestJ}
}

func meanInt(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
