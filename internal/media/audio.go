package media

// audio.go extracts the session audio track as compressed MP3. Audio failure
// is non-fatal for the pipeline; the caller marks the run degraded instead.

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// AudioFileName is the per-session audio artifact name.
const AudioFileName = "session_audio.mp3"

// ExtractAudio extracts the audio track from videoPath as MP3 next to the
// video. Returns the output path. An existing non-empty audio file is reused.
func ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	outPath := filepath.Join(filepath.Dir(videoPath), AudioFileName)

	if fi, err := os.Stat(outPath); err == nil && fi.Size() > 0 {
		log.Info().Str("path", outPath).Msg("Audio already extracted, skipping")
		return outPath, nil
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: audio extraction requires ffmpeg: %w", err)
	}

	log.Info().Str("video", filepath.Base(videoPath)).Str("out", outPath).Msg("Extracting audio track")

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		"-y",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg audio extraction: %w", err)
	}

	if fi, err := os.Stat(outPath); err != nil || fi.Size() == 0 {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg produced an empty audio file")
	}

	return outPath, nil
}
