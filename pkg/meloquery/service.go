// Package meloquery is the embeddable entry point for query-by-humming
// retrieval: index MIDI melodies into a local corpus, then match hummed
// or sung recordings against it.
package meloquery

import (
	"context"
	"fmt"

	"github.com/aaravkhatri/MeloQuery/internal/scan"
	"github.com/aaravkhatri/MeloQuery/internal/service"
	"github.com/aaravkhatri/MeloQuery/internal/storage"
	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// Service is the public surface of the matcher. MatchClip returns results
// ordered best-first; a recording with no audible melody yields an error
// wrapping ErrNoSignal, never an empty ranking.
type Service interface {
	IndexSong(ctx context.Context, midiPath, title string) (string, error)
	IndexDirectory(ctx context.Context, dir string) (service.IndexReport, error)
	MatchClip(ctx context.Context, audioPath string) (*service.MatchResponse, error)
	MatchYouTube(ctx context.Context, youtubeURL string) (*service.MatchResponse, error)
	GetSong(songID string) (*models.Song, error)
	ListSongs() ([]models.Song, error)
	DeleteSong(songID string) error
	Close() error
}

// ErrNoSignal is returned (possibly wrapped) by MatchClip when the
// recording produced no usable melody windows.
var ErrNoSignal = scan.ErrNoSignal

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := storage.NewDBClientWithPath(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	return service.NewMatchService(service.Config{
		DB:         db,
		TempDir:    cfg.TempDir,
		Params:     cfg.Params,
		Weights:    cfg.Weights,
		MinNoteDur: cfg.MinNoteDur,
	})
}
