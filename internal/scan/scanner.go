package scan

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/aaravkhatri/MeloQuery/internal/align"
	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// ErrNoSignal means the recording produced zero usable windows: there was
// nothing to score, which callers must present differently from "every
// song scored poorly".
var ErrNoSignal = errors.New("no usable windows in recording")

// Params controls the window schedule and ranking.
type Params struct {
	WindowSec    float64 // window length in seconds
	HopSec       float64 // step between window starts
	MaxSec       float64 // cap on how much of the recording is scanned
	TopK         int     // results returned by the ranker
	MinIntervals int     // intervals required for a window to be scored
	Workers      int     // parallel alignment workers; <=0 means NumCPU
}

// DefaultParams returns the scan schedule the original tuning was done
// with: 20 s windows every 5 s over at most 2 minutes of audio, scoring
// only windows with at least 12 intervals (13 notes).
func DefaultParams() Params {
	return Params{
		WindowSec:    20.0,
		HopSec:       5.0,
		MaxSec:       120.0,
		TopK:         5,
		MinIntervals: 12,
	}
}

// RepSource supplies the melody representation for one time window of the
// query recording. Implementations are expected to be pure with respect to
// the recording: the scanner may call them in any order.
type RepSource func(startSec, durSec float64) (models.MelodyRep, error)

// windowBest is the per-song running minimum over all usable windows.
type windowBest struct {
	score float64 // cost / sqrt(window interval count)
	cost  float64
	len   int
	start float64
	found bool
}

// better folds one window result into the running minimum. Strict
// less-than keeps the first-seen window on ties; the fold is commutative
// for distinct scores, so windows may be processed in any order as long as
// each song's windows are folded in window order.
func (b *windowBest) better(score, cost float64, length int, start float64) {
	if !b.found || score < b.score {
		b.score = score
		b.cost = cost
		b.len = length
		b.start = start
		b.found = true
	}
}

type window struct {
	start float64
	rep   models.MelodyRep
}

// Scanner slices a query recording into overlapping windows and aligns
// every usable window against every corpus entry.
type Scanner struct {
	params  Params
	weights align.Weights
}

func NewScanner(params Params, weights align.Weights) *Scanner {
	return &Scanner{params: params, weights: weights}
}

// windowStarts generates the window schedule. A clip shorter than one
// window still gets a single window at 0 rather than no windows at all.
func (s *Scanner) windowStarts(duration float64) []float64 {
	limit := math.Min(duration, s.params.MaxSec)

	var starts []float64
	for t := 0.0; t+s.params.WindowSec <= limit; t += s.params.HopSec {
		starts = append(starts, t)
	}
	if len(starts) == 0 {
		starts = []float64{0.0}
	}
	return starts
}

// Scan runs the full window scan and returns the ranked top-K matches
// along with window statistics. The corpus slice is read-only for the
// duration of the scan; its order defines the tie order of the ranking.
// Returns ErrNoSignal when no window clears the usability gate.
func (s *Scanner) Scan(corpus []models.CorpusEntry, source RepSource, duration float64) ([]models.RankedMatch, models.ScanStats, error) {
	starts := s.windowStarts(duration)
	stats := models.ScanStats{WindowsGenerated: len(starts)}

	// Build every usable window representation up front. Extraction is the
	// expensive per-window step and must happen exactly once per window
	// regardless of corpus size.
	windows := make([]window, 0, len(starts))
	for _, start := range starts {
		rep, err := source(start, s.params.WindowSec)
		if err != nil {
			return nil, stats, fmt.Errorf("extracting window at %.1fs: %w", start, err)
		}
		if len(rep.Intervals) < s.params.MinIntervals {
			continue
		}
		windows = append(windows, window{start: start, rep: rep})
	}
	stats.WindowsUsable = len(windows)

	if len(windows) == 0 {
		return nil, stats, ErrNoSignal
	}

	best := s.alignAll(corpus, windows)
	return Rank(corpus, best, s.params.TopK), stats, nil
}

// alignAll distributes songs across workers. Each worker owns its songs'
// accumulators outright and folds that song's windows in order, so the
// per-song minimum needs no locking and ties deterministically keep the
// earliest window.
func (s *Scanner) alignAll(corpus []models.CorpusEntry, windows []window) []windowBest {
	workers := s.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	best := make([]windowBest, len(corpus))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				entry := corpus[idx]
				acc := &best[idx]
				for _, win := range windows {
					res := align.Align(win.rep, entry.Rep, s.weights)
					if math.IsInf(res.Cost, 1) {
						continue
					}
					score := res.Cost / math.Sqrt(float64(len(win.rep.Intervals)))
					acc.better(score, res.Cost, len(win.rep.Intervals), win.start)
				}
			}
		}()
	}

	for idx := range corpus {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return best
}
