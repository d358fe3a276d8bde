package audio

import (
	"math"
	"sort"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

const (
	// DefaultMinNoteDur drops flickers shorter than a real sung note.
	DefaultMinNoteDur = 0.12

	// DefaultCentsChange starts a new note once the pitch drifts this far
	// from the running reference.
	DefaultCentsChange = 70.0

	// mergeGapSec: consecutive notes at (nearly) the same pitch separated
	// by a gap this small are one note the tracker briefly lost.
	mergeGapSec = 0.05
)

func hzToMIDI(f float64) float64 {
	return 69.0 + 12.0*math.Log2(f/440.0)
}

// SegmentNotes turns a framewise f0 track into note events. Voiced runs
// are split wherever the pitch wanders more than centsChange from an
// exponentially-updated reference; each segment becomes one note at the
// median pitch, provided it lasts at least minNoteDur seconds.
func SegmentNotes(track PitchTrack, minNoteDur, centsChange float64) []models.NoteEvent {
	if minNoteDur <= 0 {
		minNoteDur = DefaultMinNoteDur
	}
	if centsChange <= 0 {
		centsChange = DefaultCentsChange
	}

	n := len(track.Times)
	midi := make([]float64, n)
	for i, f := range track.F0 {
		if f > 0 {
			midi[i] = hzToMIDI(f)
		} else {
			midi[i] = math.NaN()
		}
	}

	var notes []models.NoteEvent
	i := 0
	for i < n {
		if math.IsNaN(midi[i]) {
			i++
			continue
		}

		// Voiced run [start, j).
		start := i
		j := i + 1
		for j < n && !math.IsNaN(midi[j]) {
			j++
		}

		k := start
		for k < j {
			segStart := k
			ref := midi[k]
			k++
			for k < j {
				if math.Abs(midi[k]-ref)*100.0 > centsChange {
					break
				}
				ref = 0.92*ref + 0.08*midi[k]
				k++
			}

			onset := track.Times[segStart]
			dur := math.Max(0, track.Times[k-1]-onset)
			if dur >= minNoteDur {
				notes = append(notes, models.NoteEvent{
					Pitch:    int(math.Round(median(midi[segStart:k]))),
					Onset:    onset,
					Duration: dur,
				})
			}
		}

		i = j
	}

	return mergeAdjacent(notes)
}

// mergeAdjacent glues near-identical consecutive notes separated by tiny
// gaps back together.
func mergeAdjacent(notes []models.NoteEvent) []models.NoteEvent {
	merged := make([]models.NoteEvent, 0, len(notes))
	for _, ev := range notes {
		if len(merged) == 0 {
			merged = append(merged, ev)
			continue
		}
		prev := &merged[len(merged)-1]
		gap := ev.Onset - (prev.Onset + prev.Duration)
		if abs(ev.Pitch-prev.Pitch) <= 1 && gap < mergeGapSec {
			end := math.Max(prev.Onset+prev.Duration, ev.Onset+ev.Duration)
			prev.Duration = end - prev.Onset
		} else {
			merged = append(merged, ev)
		}
	}
	return merged
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
