package models

// NoteEvent is a single monophonic note as delivered by a note source
// (MIDI extraction or audio transcription). Sequences handed to the engine
// must already be sorted by onset with no overlapping notes; the engine
// trusts that contract.
type NoteEvent struct {
	Pitch    int     // MIDI note number
	Onset    float64 // seconds from the start of the song or window
	Duration float64 // seconds
}

// MelodyRep is the symbolic melody representation derived from a note
// sequence: four parallel slices describing the melody's shape independent
// of absolute key (intervals, contour) and absolute tempo (IOI ratios).
// For N notes, Intervals, Contour and IOI each have length N-1; for fewer
// than two notes all three are empty. A MelodyRep is never mutated after
// it is built.
type MelodyRep struct {
	Pitches   []int     // per-note MIDI pitches
	Intervals []int     // coarse interval symbols in [-4..+4]
	Contour   []int     // -1 down, 0 same, +1 up
	IOI       []float64 // inter-onset intervals, seconds, always > 0
}

// CorpusEntry pairs a song with its melody representation. The corpus is
// loaded once and shared read-only across all matching.
type CorpusEntry struct {
	SongID string // database ID (UUID)
	Title  string // song title
	Rep    MelodyRep
}

// RankedMatch is one row of a ranked query result.
type RankedMatch struct {
	SongID      string  // database ID of the matched song
	Title       string  // song title
	Similarity  float64 // percentage in [0, 100]
	Cost        float64 // raw alignment cost of the best window (+Inf if incomparable)
	WindowLen   int     // interval count of the best window
	WindowStart float64 // start offset (seconds) of the best window
	Matched     bool    // false when no window produced a finite cost for this song
}

// ScanStats reports how much of the query recording actually contributed
// signal, so callers can tell "no signal" apart from "scanned but poor".
type ScanStats struct {
	WindowsGenerated int // windows produced by the slicing schedule
	WindowsUsable    int // windows with enough intervals to be scored
}

// Song is the metadata view of an indexed corpus entry.
type Song struct {
	ID         string // database ID (UUID)
	Title      string // song title
	SourcePath string // file the melody was extracted from
	NoteCount  int    // notes in the stored representation
}
