package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aaravkhatri/MeloQuery/internal/service"
	"github.com/aaravkhatri/MeloQuery/pkg/logger"
	"github.com/aaravkhatri/MeloQuery/pkg/meloquery"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service meloquery.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(svc meloquery.Service, config *ServerConfig) *Server {
	return &Server{
		service: svc,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "MeloQuery API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"songs":        "GET /api/songs",
			"indexSong":    "POST /api/songs",
			"getSong":      "GET /api/songs/{id}",
			"deleteSong":   "DELETE /api/songs/{id}",
			"matchFile":    "POST /api/match",
			"matchYouTube": "POST /api/match/youtube",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to get song count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		SongCount:    len(songs),
	})
}

// handleSongs dispatches /api/songs by method
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSongs(w, r)
	case http.MethodPost:
		s.handleIndexSong(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSong dispatches /api/songs/{id} by method
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	songID := strings.TrimPrefix(r.URL.Path, "/api/songs/")
	if songID == "" || strings.Contains(songID, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid song ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSong(w, r, songID)
	case http.MethodDelete:
		s.handleDeleteSong(w, r, songID)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}

	songDTOs := make([]SongDTO, len(songs))
	for i, song := range songs {
		songDTOs[i] = SongDTO{
			ID:         song.ID,
			Title:      song.Title,
			SourcePath: song.SourcePath,
			NoteCount:  song.NoteCount,
		}
	}

	s.respondJSON(w, http.StatusOK, ListSongsResponse{
		Songs: songDTOs,
		Count: len(songDTOs),
	})
}

// handleGetSong handles GET /api/songs/{id}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request, songID string) {
	song, err := s.service.GetSong(songID)
	if err != nil {
		s.log.Warnf("Song not found: %s", songID)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song %s not found", songID))
		return
	}

	s.respondJSON(w, http.StatusOK, SongDTO{
		ID:         song.ID,
		Title:      song.Title,
		SourcePath: song.SourcePath,
		NoteCount:  song.NoteCount,
	})
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request, songID string) {
	song, err := s.service.GetSong(songID)
	if err != nil {
		s.log.Warnf("Song not found for deletion: %s", songID)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song %s not found", songID))
		return
	}

	if err := s.service.DeleteSong(songID); err != nil {
		s.log.Errorf("Failed to delete song %s: %v", songID, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}

	s.log.Infof("Deleted song: %s (ID: %s)", song.Title, songID)
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{
		Message: "Song deleted successfully",
		ID:      songID,
	})
}

// saveUpload writes a multipart upload to a temp file and returns its
// path. Callers must remove the file when done.
func (s *Server) saveUpload(r *http.Request, field, prefix string, maxBytes int64) (string, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", fmt.Errorf("failed to parse form data: %w", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("%s file is required: %w", field, err)
	}
	defer file.Close()

	if err := os.MkdirAll(s.config.TempDir, 0o755); err != nil {
		return "", err
	}
	tempFile := filepath.Join(s.config.TempDir,
		fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), filepath.Base(header.Filename)))
	out, err := os.Create(tempFile)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(tempFile)
		return "", err
	}
	return tempFile, nil
}

// handleIndexSong handles POST /api/songs (multipart MIDI upload)
func (s *Server) handleIndexSong(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(r, "midi", "index", 20<<20)
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	title := r.FormValue("title")

	s.log.Infof("Indexing uploaded MIDI: %s", tempFile)
	songID, err := s.service.IndexSong(ctx, tempFile, title)
	if err != nil {
		s.log.Errorf("Failed to index song: %v", err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to index song: %v", err))
		return
	}

	song, err := s.service.GetSong(songID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Indexed but failed to read back song")
		return
	}

	s.respondJSON(w, http.StatusCreated, AddSongResponse{
		Message: "Song indexed successfully",
		ID:      songID,
		Title:   song.Title,
	})
}

// handleMatch handles POST /api/match (multipart audio upload)
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(r, "audio", "query", 50<<20)
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	s.log.Infof("Matching uploaded recording: %s", tempFile)
	resp, err := s.service.MatchClip(ctx, tempFile)
	s.respondMatch(w, resp, err)
}

// handleMatchYouTube handles POST /api/match/youtube
func (s *Server) handleMatchYouTube(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req MatchYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infof("Matching audio from YouTube: %s", req.YouTubeURL)
	resp, err := s.service.MatchYouTube(ctx, req.YouTubeURL)
	s.respondMatch(w, resp, err)
}

// respondMatch turns a match outcome into HTTP. A no-signal scan is a
// successful response with no_signal set, not an error: the client needs
// to tell "nothing audible" apart from "nothing similar".
func (s *Server) respondMatch(w http.ResponseWriter, resp *service.MatchResponse, err error) {
	if err != nil {
		if errors.Is(err, meloquery.ErrNoSignal) {
			s.respondJSON(w, http.StatusOK, MatchResponseDTO{
				Matches:  []MatchResultDTO{},
				NoSignal: true,
			})
			return
		}
		s.log.Errorf("Match failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to match recording: %v", err))
		return
	}

	dtos := toMatchResultDTOs(resp.Results)
	s.log.Infof("Match complete: %d result(s)", len(dtos))
	s.respondJSON(w, http.StatusOK, MatchResponseDTO{
		Matches:          dtos,
		Count:            len(dtos),
		WindowsGenerated: resp.Stats.WindowsGenerated,
		WindowsUsable:    resp.Stats.WindowsUsable,
		ClipSeconds:      resp.ClipSeconds,
	})
}
