// Package midi extracts a monophonic melody line from Standard MIDI Files
// for corpus indexing. Track selection is heuristic: melodies tend to be
// mostly monophonic, higher-pitched than accompaniment, and to actually
// move.
package midi

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

const (
	// DefaultMinNoteDur drops grace notes and key-bounce artifacts.
	DefaultMinNoteDur = 0.08

	// percussionChannel is GM channel 10 (0-based 9); never a melody.
	percussionChannel = 9

	// overlapEps tolerates float jitter when checking note overlap.
	overlapEps = 1e-6
)

// ErrNoMelodyTrack means the file parsed fine but no track looked like a
// usable melody (too few notes everywhere, or percussion only).
var ErrNoMelodyTrack = errors.New("no usable melody track in file")

// ExtractMelody reads an SMF file, picks the most melody-like track and
// returns its notes as a clean monophonic, onset-sorted sequence. Notes
// shorter than minNoteDur seconds are dropped before scoring; pass 0 for
// the default.
func ExtractMelody(path string, minNoteDur float64) ([]models.NoteEvent, error) {
	if minNoteDur <= 0 {
		minNoteDur = DefaultMinNoteDur
	}

	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SMF %s: %w", path, err)
	}

	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported SMF time format %v", s.TimeFormat)
	}

	tempi := collectTempoChanges(s)

	best := -1
	bestScore := 0.0
	var bestNotes []models.NoteEvent
	for i, track := range s.Tracks {
		notes := trackNotes(track, mt, tempi)
		notes = dropShortNotes(notes, minNoteDur)
		if len(notes) < 4 {
			continue
		}
		score := melodyScore(notes)
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
			bestNotes = notes
		}
	}
	if best == -1 {
		return nil, ErrNoMelodyTrack
	}

	return monophonicCleanup(bestNotes), nil
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

// collectTempoChanges walks every track for set-tempo meta events and
// returns them sorted by absolute tick, with a 120 BPM default at tick 0.
func collectTempoChanges(s *smf.SMF) []tempoChange {
	tempi := []tempoChange{{tick: 0, bpm: 120}}
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				tempi = append(tempi, tempoChange{tick: abs, bpm: bpm})
			}
		}
	}
	sort.SliceStable(tempi, func(i, j int) bool { return tempi[i].tick < tempi[j].tick })

	// Several changes on one tick (including the implicit default): the
	// last one wins.
	compact := tempi[:0:0]
	for _, tc := range tempi {
		if n := len(compact); n > 0 && compact[n-1].tick == tc.tick {
			compact[n-1] = tc
			continue
		}
		compact = append(compact, tc)
	}
	return compact
}

// tickToSeconds converts an absolute tick to seconds by summing the
// durations of the tempo segments before it.
func tickToSeconds(mt smf.MetricTicks, tempi []tempoChange, tick uint64) float64 {
	var sec float64
	for i, tc := range tempi {
		if tc.tick >= tick {
			break
		}
		end := tick
		if i+1 < len(tempi) && tempi[i+1].tick < tick {
			end = tempi[i+1].tick
		}
		sec += mt.Duration(tc.bpm, uint32(end-tc.tick)).Seconds()
	}
	return sec
}

// trackNotes pairs note-on/note-off events of one track into NoteEvents,
// skipping the percussion channel.
func trackNotes(track smf.Track, mt smf.MetricTicks, tempi []tempoChange) []models.NoteEvent {
	type active struct {
		onTick uint64
		open   bool
	}
	// channel << 8 | key
	pending := make(map[uint16]active)

	var notes []models.NoteEvent
	var abs uint64
	for _, ev := range track {
		abs += uint64(ev.Delta)

		var ch, key, vel uint8
		switch {
		case ev.Message.GetNoteStart(&ch, &key, &vel):
			if ch == percussionChannel {
				continue
			}
			pending[uint16(ch)<<8|uint16(key)] = active{onTick: abs, open: true}
		case ev.Message.GetNoteEnd(&ch, &key):
			if ch == percussionChannel {
				continue
			}
			id := uint16(ch)<<8 | uint16(key)
			a, ok := pending[id]
			if !ok || !a.open {
				continue
			}
			delete(pending, id)

			onset := tickToSeconds(mt, tempi, a.onTick)
			end := tickToSeconds(mt, tempi, abs)
			notes = append(notes, models.NoteEvent{
				Pitch:    int(key),
				Onset:    onset,
				Duration: math.Max(0, end-onset),
			})
		}
	}

	// Start time, then end time, then descending pitch: simultaneous chord
	// notes surface their top voice first so the cleanup keeps it.
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Onset != b.Onset {
			return a.Onset < b.Onset
		}
		ae, be := a.Onset+a.Duration, b.Onset+b.Duration
		if ae != be {
			return ae < be
		}
		return a.Pitch > b.Pitch
	})
	return notes
}

func dropShortNotes(notes []models.NoteEvent, minDur float64) []models.NoteEvent {
	out := notes[:0:0]
	for _, n := range notes {
		if n.Duration >= minDur {
			out = append(out, n)
		}
	}
	return out
}

// isMonophonic reports whether no note overlaps its successor.
func isMonophonic(notes []models.NoteEvent) bool {
	var lastEnd float64
	for i, n := range notes {
		if i > 0 && n.Onset < lastEnd-overlapEps {
			return false
		}
		if end := n.Onset + n.Duration; end > lastEnd {
			lastEnd = end
		}
	}
	return true
}

// melodyScore rates a candidate track. Monophony is worth the most, then
// higher register, then pitch spread (a melody moves; pads and pedal tones
// don't).
func melodyScore(notes []models.NoteEvent) float64 {
	var sum float64
	for _, n := range notes {
		sum += float64(n.Pitch)
	}
	mean := sum / float64(len(notes))

	var variance float64
	for _, n := range notes {
		d := float64(n.Pitch) - mean
		variance += d * d
	}
	variance /= float64(len(notes))

	score := mean/30.0 + math.Sqrt(variance)/10.0
	if isMonophonic(notes) {
		score += 3.0
	}
	return score
}

// monophonicCleanup enforces strict monophony on an already-sorted note
// list: overlapping notes are dropped, which keeps the highest note of a
// chord because of the sort order above.
func monophonicCleanup(notes []models.NoteEvent) []models.NoteEvent {
	out := make([]models.NoteEvent, 0, len(notes))
	lastEnd := -1.0
	for _, n := range notes {
		if n.Onset >= lastEnd-overlapEps {
			out = append(out, n)
			lastEnd = n.Onset + n.Duration
		}
	}
	return out
}
