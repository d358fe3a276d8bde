package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aaravkhatri/MeloQuery/pkg/utils"
)

// DefaultSampleRate is what the pitch tracker is tuned for; 16 kHz keeps
// the hummed fundamental range well below Nyquist while staying cheap.
const DefaultSampleRate = 16000

type ConvertWAVConfig struct {
	SampleRate int
}

// ConvertToMonoWAV converts any audio file ffmpeg can read into mono PCM
// WAV at the configured rate, writing to outputDir under the same name.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(inputPath)
	base = base[:len(base)-len(filepath.Ext(base))] + ".wav"
	outputPath := filepath.Join(outputDir, base)
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}
