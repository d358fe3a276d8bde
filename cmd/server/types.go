package main

import (
	"fmt"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// MatchResponseDTO is the response for POST /api/match. NoSignal is set
// when the recording carried no usable melody; in that case Matches is
// empty and the client should prompt the user to hum again, which is a
// different situation from matches with low similarity.
type MatchResponseDTO struct {
	Matches          []MatchResultDTO `json:"matches"`
	Count            int              `json:"count"`
	NoSignal         bool             `json:"no_signal"`
	WindowsGenerated int              `json:"windows_generated"`
	WindowsUsable    int              `json:"windows_usable"`
	ClipSeconds      float64          `json:"clip_seconds"`
}

// MatchResultDTO represents a single ranked match
type MatchResultDTO struct {
	SongID      string  `json:"song_id"`
	Title       string  `json:"title"`
	Similarity  float64 `json:"similarity"`
	Cost        float64 `json:"cost,omitempty"`
	WindowStart float64 `json:"window_start"`
	WindowLen   int     `json:"window_len"`
	Matched     bool    `json:"matched"`
}

func toMatchResultDTOs(results []models.RankedMatch) []MatchResultDTO {
	dtos := make([]MatchResultDTO, len(results))
	for i, r := range results {
		dto := MatchResultDTO{
			SongID:      r.SongID,
			Title:       r.Title,
			Similarity:  r.Similarity,
			WindowStart: r.WindowStart,
			WindowLen:   r.WindowLen,
			Matched:     r.Matched,
		}
		if r.Matched {
			dto.Cost = r.Cost
		}
		dtos[i] = dto
	}
	return dtos
}

// MatchYouTubeRequest is the request body for POST /api/match/youtube
type MatchYouTubeRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

func (r *MatchYouTubeRequest) Validate() error {
	if r.YouTubeURL == "" {
		return fmt.Errorf("youtube_url is required")
	}
	return nil
}

// SongDTO represents a song in API responses
type SongDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourcePath string `json:"source_path,omitempty"`
	NoteCount  int    `json:"note_count"`
}

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []SongDTO `json:"songs"`
	Count int       `json:"count"`
}

// AddSongResponse is the response for successful indexing
type AddSongResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Title   string `json:"title"`
}

// DeleteSongResponse is the response for DELETE /api/songs/{id}
type DeleteSongResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and corpus metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	SongCount    int    `json:"song_count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
