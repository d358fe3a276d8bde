package audio

import (
	"math"

	"github.com/aaravkhatri/MeloQuery/internal/melody"
	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// Clip is a decoded query recording held in memory. Windows are sliced on
// demand for the scanner; each window is peak-normalized and transcribed
// independently.
type Clip struct {
	samples  []float64
	rate     int
	pitchCfg PitchConfig

	minNoteDur  float64
	centsChange float64
}

// LoadClip decodes a mono PCM WAV file (use ConvertToMonoWAV first for
// anything else).
func LoadClip(path string) (*Clip, error) {
	samples, rate, err := ReadWavAsFloat64(path)
	if err != nil {
		return nil, err
	}
	return &Clip{
		samples:     samples,
		rate:        rate,
		pitchCfg:    DefaultPitchConfig(),
		minNoteDur:  DefaultMinNoteDur,
		centsChange: DefaultCentsChange,
	}, nil
}

// Duration is the clip length in seconds.
func (c *Clip) Duration() float64 {
	return float64(len(c.samples)) / float64(c.rate)
}

// Notes transcribes one time window of the clip into note events with
// onsets relative to the window start.
func (c *Clip) Notes(startSec, durSec float64) ([]models.NoteEvent, error) {
	lo := int(startSec * float64(c.rate))
	hi := int((startSec + durSec) * float64(c.rate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(c.samples) {
		hi = len(c.samples)
	}
	if lo >= hi {
		return nil, nil
	}

	// Normalize the window in isolation so a quiet passage in a loud
	// recording still gets a usable voicing gate.
	window := make([]float64, hi-lo)
	peak := 1e-9
	for i, v := range c.samples[lo:hi] {
		window[i] = v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	for i := range window {
		window[i] /= peak
	}

	track := EstimateF0(window, c.rate, c.pitchCfg)
	return SegmentNotes(track, c.minNoteDur, c.centsChange), nil
}

// WindowRep builds the melody representation for one window; it satisfies
// the scanner's RepSource signature.
func (c *Clip) WindowRep(startSec, durSec float64) (models.MelodyRep, error) {
	notes, err := c.Notes(startSec, durSec)
	if err != nil {
		return models.MelodyRep{}, err
	}
	return melody.NotesToRep(notes), nil
}
