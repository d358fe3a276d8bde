package melody

import (
	"testing"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

func TestBinInterval(t *testing.T) {
	tests := []struct {
		semi, symbol int
	}{
		{-12, -4},
		{-7, -4},
		{-6, -3},
		{-5, -3},
		{-4, -2},
		{-3, -2},
		{-2, -1},
		{-1, -1},
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{6, 3},
		{7, 4},
		{19, 4},
	}

	for _, tt := range tests {
		if got := BinInterval(tt.semi); got != tt.symbol {
			t.Errorf("BinInterval(%d) = %d, expected %d", tt.semi, got, tt.symbol)
		}
	}
}

func TestBinIntervalMonotonic(t *testing.T) {
	prev := BinInterval(-30)
	for semi := -29; semi <= 30; semi++ {
		cur := BinInterval(semi)
		if cur < prev {
			t.Fatalf("BinInterval not monotonic at %d: %d < %d", semi, cur, prev)
		}
		prev = cur
	}
}

func TestNotesToRepLengths(t *testing.T) {
	tests := []struct {
		name  string
		notes []models.NoteEvent
	}{
		{"empty", nil},
		{"single", []models.NoteEvent{{Pitch: 60, Onset: 0, Duration: 0.5}}},
		{"pair", []models.NoteEvent{
			{Pitch: 60, Onset: 0, Duration: 0.5},
			{Pitch: 62, Onset: 0.5, Duration: 0.5},
		}},
		{"five", []models.NoteEvent{
			{Pitch: 60, Onset: 0.0, Duration: 0.4},
			{Pitch: 64, Onset: 0.5, Duration: 0.4},
			{Pitch: 67, Onset: 1.0, Duration: 0.4},
			{Pitch: 64, Onset: 1.5, Duration: 0.4},
			{Pitch: 60, Onset: 2.0, Duration: 0.4},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := NotesToRep(tt.notes)

			if len(rep.Pitches) != len(tt.notes) {
				t.Errorf("got %d pitches, expected %d", len(rep.Pitches), len(tt.notes))
			}

			wantDerived := 0
			if len(tt.notes) >= 2 {
				wantDerived = len(tt.notes) - 1
			}
			if len(rep.Intervals) != wantDerived {
				t.Errorf("got %d intervals, expected %d", len(rep.Intervals), wantDerived)
			}
			if len(rep.Contour) != wantDerived {
				t.Errorf("got %d contour entries, expected %d", len(rep.Contour), wantDerived)
			}
			if len(rep.IOI) != wantDerived {
				t.Errorf("got %d IOIs, expected %d", len(rep.IOI), wantDerived)
			}
		})
	}
}

func TestNotesToRepContent(t *testing.T) {
	notes := []models.NoteEvent{
		{Pitch: 60, Onset: 0.0, Duration: 0.4},
		{Pitch: 67, Onset: 0.5, Duration: 0.4}, // +7 -> +4, up
		{Pitch: 67, Onset: 1.5, Duration: 0.4}, // 0 -> 0, same
		{Pitch: 64, Onset: 2.0, Duration: 0.4}, // -3 -> -2, down
	}
	rep := NotesToRep(notes)

	wantIntervals := []int{4, 0, -2}
	wantContour := []int{1, 0, -1}
	for i := range wantIntervals {
		if rep.Intervals[i] != wantIntervals[i] {
			t.Errorf("interval %d = %d, expected %d", i, rep.Intervals[i], wantIntervals[i])
		}
		if rep.Contour[i] != wantContour[i] {
			t.Errorf("contour %d = %d, expected %d", i, rep.Contour[i], wantContour[i])
		}
	}

	wantIOI := []float64{0.5, 1.0, 0.5}
	for i := range wantIOI {
		if diff := rep.IOI[i] - wantIOI[i]; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("ioi %d = %f, expected %f", i, rep.IOI[i], wantIOI[i])
		}
	}
}

func TestNotesToRepIOIFloor(t *testing.T) {
	// Same onset twice and a backwards onset: both must floor to MinIOI,
	// never zero or negative.
	notes := []models.NoteEvent{
		{Pitch: 60, Onset: 1.0, Duration: 0.2},
		{Pitch: 62, Onset: 1.0, Duration: 0.2},
		{Pitch: 64, Onset: 0.9, Duration: 0.2},
	}
	rep := NotesToRep(notes)

	for i, v := range rep.IOI {
		if v < MinIOI {
			t.Errorf("ioi %d = %g, expected at least %g", i, v, MinIOI)
		}
	}
}
