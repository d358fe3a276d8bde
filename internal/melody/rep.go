package melody

import (
	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// MinIOI is the floor applied to inter-onset intervals. Upstream note
// sources occasionally emit equal or slightly decreasing onsets; flooring
// keeps every IOI strictly positive so ratio costs stay finite.
const MinIOI = 1e-6

// BinInterval maps a raw semitone delta to one of 9 coarse symbols in
// {-4..+4}. The mapping is total and monotonic in the delta: anything a
// fifth or wider collapses into the outermost bins.
//
//	<= -7 -> -4    {-6,-5} -> -3    {-4,-3} -> -2    {-2,-1} -> -1
//	   0 ->  0     { 1, 2} -> +1    { 3, 4} -> +2    { 5, 6} -> +3    >= 7 -> +4
func BinInterval(semi int) int {
	switch {
	case semi <= -7:
		return -4
	case semi <= -5:
		return -3
	case semi <= -3:
		return -2
	case semi <= -1:
		return -1
	case semi == 0:
		return 0
	case semi <= 2:
		return 1
	case semi <= 4:
		return 2
	case semi <= 6:
		return 3
	default:
		return 4
	}
}

// contourOf is the sign of the raw (unbinned) semitone delta.
func contourOf(semi int) int {
	switch {
	case semi > 0:
		return 1
	case semi < 0:
		return -1
	default:
		return 0
	}
}

// NotesToRep derives the symbolic representation from an onset-sorted
// monophonic note sequence. With fewer than two notes there is nothing to
// derive, so only Pitches is populated.
func NotesToRep(notes []models.NoteEvent) models.MelodyRep {
	pitches := make([]int, len(notes))
	for i, n := range notes {
		pitches[i] = n.Pitch
	}

	if len(notes) < 2 {
		return models.MelodyRep{Pitches: pitches}
	}

	intervals := make([]int, len(notes)-1)
	contour := make([]int, len(notes)-1)
	ioi := make([]float64, len(notes)-1)
	for i := 0; i < len(notes)-1; i++ {
		semi := notes[i+1].Pitch - notes[i].Pitch
		intervals[i] = BinInterval(semi)
		contour[i] = contourOf(semi)

		dt := notes[i+1].Onset - notes[i].Onset
		if dt < MinIOI {
			dt = MinIOI
		}
		ioi[i] = dt
	}

	return models.MelodyRep{
		Pitches:   pitches,
		Intervals: intervals,
		Contour:   contour,
		IOI:       ioi,
	}
}
