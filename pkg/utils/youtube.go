package utils

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

func ExtractYouTubeID(youtubeURL string) (string, error) {
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if strings.Contains(u.Host, "youtu.be") {
		id := strings.TrimPrefix(u.Path, "/")
		if idx := strings.Index(id, "?"); idx != -1 {
			id = id[:idx]
		}
		if id != "" {
			return id, nil
		}
		return "", fmt.Errorf("no video ID found in youtu.be URL")
	}

	if strings.Contains(u.Host, "youtube.com") {
		if strings.HasPrefix(u.Path, "/watch") {
			if videoID := u.Query().Get("v"); videoID != "" {
				return videoID, nil
			}
		}

		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.TrimPrefix(u.Path, prefix); id != "" {
					return id, nil
				}
			}
		}
	}

	return "", fmt.Errorf("unable to extract video ID from URL: %s", youtubeURL)
}

func IsYouTubeURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Host)
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

// DownloadYouTubeAudio fetches the audio track of a YouTube video into
// outputDir as WAV and returns the downloaded file path. The yt-dlp
// binary is installed on first use if it is not already present.
func DownloadYouTubeAudio(ctx context.Context, youtubeURL, outputDir string) (string, error) {
	videoID, err := ExtractYouTubeID(youtubeURL)
	if err != nil {
		return "", err
	}

	if err := MakeDir(outputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return "", fmt.Errorf("failed to install yt-dlp: %w", err)
	}

	outputPath := filepath.Join(outputDir, videoID+".wav")
	dl := ytdlp.New().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("wav").
		Output(outputPath)

	if _, err := dl.Run(ctx, youtubeURL); err != nil {
		return "", fmt.Errorf("yt-dlp download failed: %w", err)
	}
	return outputPath, nil
}
