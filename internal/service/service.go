package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaravkhatri/MeloQuery/internal/align"
	"github.com/aaravkhatri/MeloQuery/internal/audio"
	"github.com/aaravkhatri/MeloQuery/internal/melody"
	"github.com/aaravkhatri/MeloQuery/internal/midi"
	"github.com/aaravkhatri/MeloQuery/internal/scan"
	"github.com/aaravkhatri/MeloQuery/internal/storage"
	"github.com/aaravkhatri/MeloQuery/pkg/logger"
	"github.com/aaravkhatri/MeloQuery/pkg/models"
	"github.com/aaravkhatri/MeloQuery/pkg/utils"
)

// midiExtensions are the file types IndexDirectory picks up.
var midiExtensions = []string{".mid", ".midi"}

type Config struct {
	DB         *storage.DBClient
	TempDir    string
	Params     scan.Params
	Weights    align.Weights
	MinNoteDur float64
}

// MatchService ties the corpus store, the MIDI ingester and the window
// scanner together into the indexing and matching pipelines.
type MatchService struct {
	db         *storage.DBClient
	scanner    *scan.Scanner
	log        *logger.Logger
	tempDir    string
	minNoteDur float64
}

// MatchResponse carries the ranked matches plus everything a caller needs
// to explain the result: window statistics and any corpus entries that
// were skipped as unreadable.
type MatchResponse struct {
	Results     []models.RankedMatch `json:"results"`
	Stats       models.ScanStats     `json:"stats"`
	Rejected    []storage.Rejection  `json:"rejected,omitempty"`
	ClipSeconds float64              `json:"clip_seconds"`
}

// SkippedFile records one file IndexDirectory could not ingest.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IndexReport summarizes a directory indexing run.
type IndexReport struct {
	Added   []models.Song `json:"added"`
	Skipped []SkippedFile `json:"skipped,omitempty"`
}

func NewMatchService(cfg Config) (*MatchService, error) {
	db := cfg.DB
	if db == nil {
		var err error
		db, err = storage.NewDBClient()
		if err != nil {
			return nil, err
		}
	}

	params := cfg.Params
	if params.WindowSec == 0 {
		params = scan.DefaultParams()
	}
	weights := cfg.Weights
	if weights == (align.Weights{}) {
		weights = align.DefaultWeights()
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = "/tmp/meloquery"
	}
	minNoteDur := cfg.MinNoteDur
	if minNoteDur <= 0 {
		minNoteDur = midi.DefaultMinNoteDur
	}

	return &MatchService{
		db:         db,
		scanner:    scan.NewScanner(params, weights),
		log:        logger.GetLogger(),
		tempDir:    tempDir,
		minNoteDur: minNoteDur,
	}, nil
}

// IndexSong ingests one MIDI file into the corpus and returns the song ID.
func (s *MatchService) IndexSong(ctx context.Context, midiPath, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if title == "" {
		title = utils.BaseName(midiPath)
	}
	s.log.Infof("Indexing song: %s (%s)", title, midiPath)

	// 1. Pull the melody line out of the MIDI file
	notes, err := midi.ExtractMelody(midiPath, s.minNoteDur)
	if err != nil {
		return "", fmt.Errorf("melody extraction failed: %w", err)
	}

	// 2. Build the four-sequence representation
	rep := melody.NotesToRep(notes)

	// 3. Store it
	songID, err := s.db.RegisterSong(title, midiPath, rep)
	if err != nil {
		return "", fmt.Errorf("failed to register song: %w", err)
	}

	s.log.Infof("Indexed %q: %d notes, id=%s", title, len(rep.Pitches), songID)
	return songID, nil
}

// IndexDirectory ingests every MIDI file directly under dir. Files that
// fail are reported, not fatal; one bad file must not abort a corpus
// build.
func (s *MatchService) IndexDirectory(ctx context.Context, dir string) (IndexReport, error) {
	var report IndexReport

	files, err := utils.ListFiles(dir, midiExtensions...)
	if err != nil {
		return report, err
	}
	s.log.Infof("Indexing %d MIDI files from %s", len(files), dir)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		songID, err := s.IndexSong(ctx, path, "")
		if err != nil {
			s.log.Warnf("Skipping %s: %v", path, err)
			report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: err.Error()})
			continue
		}
		report.Added = append(report.Added, models.Song{
			ID:         songID,
			Title:      utils.BaseName(path),
			SourcePath: path,
		})
	}
	return report, nil
}

// MatchClip matches a hummed or sung recording against the indexed corpus.
// Returns scan.ErrNoSignal (wrapped) when the recording yields no usable
// windows; callers should report that case as "could not hear a melody"
// rather than as an empty ranking.
func (s *MatchService) MatchClip(ctx context.Context, audioPath string) (*MatchResponse, error) {
	s.log.Infof("Matching clip: %s", audioPath)

	// 1. Convert to mono WAV at the pitch tracker's rate
	wavPath, err := audio.ConvertToMonoWAV(ctx, audioPath, s.tempDir, audio.ConvertWAVConfig{
		SampleRate: audio.DefaultSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}

	// 2. Decode the clip
	clip, err := audio.LoadClip(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV file: %w", err)
	}
	duration := clip.Duration()
	s.log.Debugf("Clip duration: %.1fs", duration)

	// 3. Load the corpus
	corpus, rejected, err := s.db.LoadCorpus()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	for _, r := range rejected {
		s.log.Warnf("Corpus entry %s (%s) unusable: %s", r.SongID, r.Title, r.Reason)
	}
	if len(corpus) == 0 {
		return nil, errors.New("corpus is empty, index songs first")
	}

	// 4. Window scan
	results, stats, err := s.scanner.Scan(corpus, clip.WindowRep, duration)
	if err != nil {
		if errors.Is(err, scan.ErrNoSignal) {
			s.log.Infof("No usable melody in clip (%d windows generated)", stats.WindowsGenerated)
		}
		return nil, err
	}

	s.log.Infof("Scanned %d/%d usable windows against %d songs",
		stats.WindowsUsable, stats.WindowsGenerated, len(corpus))
	return &MatchResponse{
		Results:     results,
		Stats:       stats,
		Rejected:    rejected,
		ClipSeconds: duration,
	}, nil
}

// MatchYouTube downloads the audio of a YouTube video and matches it.
func (s *MatchService) MatchYouTube(ctx context.Context, youtubeURL string) (*MatchResponse, error) {
	if !utils.IsYouTubeURL(youtubeURL) {
		return nil, fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}
	audioPath, err := utils.DownloadYouTubeAudio(ctx, youtubeURL, s.tempDir)
	if err != nil {
		return nil, err
	}
	defer utils.DeleteFile(audioPath)
	return s.MatchClip(ctx, audioPath)
}

func (s *MatchService) ListSongs() ([]models.Song, error) {
	return s.db.ListSongs()
}

func (s *MatchService) GetSong(songID string) (*models.Song, error) {
	return s.db.GetSongByID(songID)
}

func (s *MatchService) DeleteSong(songID string) error {
	return s.db.DeleteSongByID(songID)
}

func (s *MatchService) Close() error {
	return s.db.Close()
}
