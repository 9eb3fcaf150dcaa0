package media

// probe.go contains the ffprobe-based duration probe. The pipeline only needs
// the container duration; stream-level metadata is ignored.

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type ffprobeOutput struct {
	Format ffprobeFormat `json:"format"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// ProbeDuration returns the duration of the video at path using ffprobe.
//
// Requires ffprobe (part of FFmpeg) to be installed on the system. Callers
// that can tolerate an unknown duration fall back to a fixed one-hour window
// past the session start.
func ProbeDuration(path string) (time.Duration, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.Command(ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}

	d := time.Duration(seconds * float64(time.Second))
	log.Debug().Str("path", path).Dur("duration", d).Msg("Probed video duration")
	return d, nil
}
