package scan

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/aaravkhatri/MeloQuery/internal/align"
	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// repOf builds a representation from interval symbols with contour derived
// from the signs and a constant IOI.
func repOf(intervals []int) models.MelodyRep {
	contour := make([]int, len(intervals))
	ioi := make([]float64, len(intervals))
	for i, v := range intervals {
		switch {
		case v > 0:
			contour[i] = 1
		case v < 0:
			contour[i] = -1
		}
		ioi[i] = 0.5
	}
	return models.MelodyRep{Intervals: intervals, Contour: contour, IOI: ioi}
}

func repeated(symbol, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = symbol
	}
	return out
}

func testParams() Params {
	p := DefaultParams()
	p.Workers = 1
	return p
}

func TestWindowStartsSchedule(t *testing.T) {
	s := NewScanner(testParams(), align.DefaultWeights())

	tests := []struct {
		name     string
		duration float64
		want     int
		first    float64
	}{
		{"one minute", 60, 9, 0},       // 0,5,...,40
		{"shorter than window", 10, 1, 0}, // fallback single window
		{"capped by max", 300, 21, 0},  // 0,5,...,100
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starts := s.windowStarts(tt.duration)
			if len(starts) != tt.want {
				t.Errorf("got %d windows, expected %d", len(starts), tt.want)
			}
			if starts[0] != tt.first {
				t.Errorf("first window starts at %f, expected %f", starts[0], tt.first)
			}
		})
	}
}

func TestScanShortClipSingleWindow(t *testing.T) {
	s := NewScanner(testParams(), align.DefaultWeights())
	corpus := []models.CorpusEntry{
		{SongID: "a", Title: "A", Rep: repOf(repeated(1, 20))},
	}

	var calls int
	source := func(start, dur float64) (models.MelodyRep, error) {
		calls++
		if start != 0 {
			t.Errorf("unexpected window start %f", start)
		}
		return repOf(repeated(1, 14)), nil
	}

	ranked, stats, err := s.Scan(corpus, source, 7.5)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("source called %d times, expected 1", calls)
	}
	if stats.WindowsGenerated != 1 || stats.WindowsUsable != 1 {
		t.Errorf("stats = %+v, expected 1/1", stats)
	}
	if len(ranked) != 1 || ranked[0].SongID != "a" {
		t.Fatalf("unexpected ranking: %+v", ranked)
	}
	if ranked[0].Similarity != 100.0 {
		t.Errorf("similarity = %f, expected 100 for exact match", ranked[0].Similarity)
	}
}

func TestScanSkipsThinWindows(t *testing.T) {
	s := NewScanner(testParams(), align.DefaultWeights())
	corpus := []models.CorpusEntry{
		{SongID: "a", Title: "A", Rep: repOf(repeated(1, 20))},
	}

	// 11 intervals is one short of the gate.
	source := func(start, dur float64) (models.MelodyRep, error) {
		return repOf(repeated(1, 11)), nil
	}

	_, stats, err := s.Scan(corpus, source, 60)
	if !errors.Is(err, ErrNoSignal) {
		t.Fatalf("expected ErrNoSignal, got %v", err)
	}
	if stats.WindowsUsable != 0 {
		t.Errorf("windows usable = %d, expected 0", stats.WindowsUsable)
	}
	if stats.WindowsGenerated == 0 {
		t.Error("windows generated should still be reported")
	}
}

func TestScanKeepsBestWindowPerSong(t *testing.T) {
	s := NewScanner(testParams(), align.DefaultWeights())
	target := repOf(repeated(1, 14))
	corpus := []models.CorpusEntry{
		{SongID: "noise", Title: "Noise", Rep: repOf(repeated(-3, 20))},
		{SongID: "hit", Title: "Hit", Rep: repOf(repeated(1, 20))},
	}

	// Window at 0 is junk for both songs; window at 5 matches "hit" exactly.
	source := func(start, dur float64) (models.MelodyRep, error) {
		if start == 0 {
			return repOf(repeated(4, 14)), nil
		}
		return target, nil
	}

	ranked, stats, err := s.Scan(corpus, source, 25)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if stats.WindowsGenerated != 2 || stats.WindowsUsable != 2 {
		t.Fatalf("stats = %+v, expected 2/2", stats)
	}

	if ranked[0].SongID != "hit" {
		t.Fatalf("best match = %s, expected hit", ranked[0].SongID)
	}
	if ranked[0].Cost != 0.0 {
		t.Errorf("best cost = %f, expected 0", ranked[0].Cost)
	}
	if ranked[0].WindowStart != 5.0 {
		t.Errorf("best window start = %f, expected 5.0", ranked[0].WindowStart)
	}
	if ranked[0].WindowLen != 14 {
		t.Errorf("best window length = %d, expected 14", ranked[0].WindowLen)
	}
}

func TestScanSourceErrorPropagates(t *testing.T) {
	s := NewScanner(testParams(), align.DefaultWeights())
	wantErr := errors.New("decode failed")
	source := func(start, dur float64) (models.MelodyRep, error) {
		return models.MelodyRep{}, wantErr
	}

	_, _, err := s.Scan(nil, source, 60)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestScanParallelMatchesSerial(t *testing.T) {
	corpus := make([]models.CorpusEntry, 0, 8)
	for i := 0; i < 8; i++ {
		corpus = append(corpus, models.CorpusEntry{
			SongID: string(rune('a' + i)),
			Rep:    repOf(repeated(i%5-2, 20)),
		})
	}
	source := func(start, dur float64) (models.MelodyRep, error) {
		return repOf(repeated(1, 14)), nil
	}

	serialParams := testParams()
	parallelParams := testParams()
	parallelParams.Workers = 4

	serial, _, err := NewScanner(serialParams, align.DefaultWeights()).Scan(corpus, source, 60)
	if err != nil {
		t.Fatalf("serial scan failed: %v", err)
	}
	parallel, _, err := NewScanner(parallelParams, align.DefaultWeights()).Scan(corpus, source, 60)
	if err != nil {
		t.Fatalf("parallel scan failed: %v", err)
	}

	if !reflect.DeepEqual(serial, parallel) {
		t.Errorf("parallel result differs from serial:\n%+v\nvs\n%+v", parallel, serial)
	}
}

func TestSimilarityClamping(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0.0, 100.0},
		{2.5, 50.0},
		{5.0, 0.0},
		{9.9, 0.0},
		{math.Inf(1), 0.0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.score); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%f) = %f, expected %f", tt.score, got, tt.want)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	corpus := []models.CorpusEntry{
		{SongID: "first"},
		{SongID: "second"},
		{SongID: "third"},
	}
	best := []windowBest{
		{score: 1.0, cost: 1.0, len: 12, start: 0, found: true},
		{score: 0.5, cost: 0.5, len: 12, start: 5, found: true},
		{score: 1.0, cost: 1.0, len: 12, start: 10, found: true},
	}

	ranked := Rank(corpus, best, 0)
	want := []string{"second", "first", "third"}
	for i, id := range want {
		if ranked[i].SongID != id {
			t.Errorf("rank %d = %s, expected %s", i, ranked[i].SongID, id)
		}
	}

	for _, r := range ranked {
		if r.Similarity < 0 || r.Similarity > 100 {
			t.Errorf("similarity %f outside [0,100]", r.Similarity)
		}
	}
}

func TestRankTopKAndUnmatched(t *testing.T) {
	corpus := []models.CorpusEntry{
		{SongID: "a"}, {SongID: "b"}, {SongID: "c"},
	}
	best := []windowBest{
		{score: 0.2, cost: 0.2, len: 12, found: true},
		{found: false}, // no finite alignment at all
		{score: 0.1, cost: 0.1, len: 12, found: true},
	}

	ranked := Rank(corpus, best, 2)
	if len(ranked) != 2 {
		t.Fatalf("got %d results, expected 2", len(ranked))
	}
	if ranked[0].SongID != "c" || ranked[1].SongID != "a" {
		t.Errorf("unexpected top-2: %s, %s", ranked[0].SongID, ranked[1].SongID)
	}

	full := Rank(corpus, best, 0)
	last := full[len(full)-1]
	if last.SongID != "b" || last.Matched || last.Similarity != 0 {
		t.Errorf("unmatched song should sink to the bottom with 0%%: %+v", last)
	}
	if !math.IsInf(last.Cost, 1) {
		t.Errorf("unmatched cost = %f, expected +Inf", last.Cost)
	}
}
