package media

// frames.go provides deterministic frame sampling from session recordings
// using parallel ffmpeg seek invocations. Sampling is uniform-stride, never
// random, so repeated runs over the same recording produce the same frames.

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FrameDirName is the per-session directory extracted frames are cached in.
const FrameDirName = "frames"

// ExtractOptions controls frame extraction geometry.
type ExtractOptions struct {
	// Interval between sampled frames.
	Interval time.Duration

	// Width frames are downscaled to; height follows the aspect ratio.
	Width int

	// Quality is the ffmpeg -q:v value (2 is near lossless).
	Quality int

	// TargetCount caps how many frames are kept. When more timestamps fall
	// in the session window, the set is downsampled by uniform stride.
	TargetCount int

	// MinCount is the minimum number of frames required for a usable
	// evidence bundle.
	MinCount int

	// Workers bounds the number of concurrent ffmpeg invocations.
	Workers int
}

// FrameSet is the result of frame extraction for one session.
type FrameSet struct {
	Dir    string
	Paths  []string
	Failed int

	// Cached is true when an existing frame directory satisfied the target
	// count and extraction was skipped entirely.
	Cached bool
}

// SamplePlan computes the candidate frame timestamps: one every interval from
// start up to (but not including) duration. Deterministic for fixed inputs.
func SamplePlan(start, duration time.Duration, interval time.Duration) []time.Duration {
	if interval <= 0 {
		return nil
	}
	var stamps []time.Duration
	for t := start; t < duration; t += interval {
		stamps = append(stamps, t)
	}
	return stamps
}

// UniformStride downsamples paths to at most target entries using a fixed
// stride so coverage stays even across the timeline. Input order is
// preserved; fewer than target entries are returned unchanged.
func UniformStride(paths []string, target int) []string {
	if target <= 0 || len(paths) <= target {
		return paths
	}
	step := len(paths) / target
	selected := make([]string, 0, target)
	for i := 0; i < target; i++ {
		selected = append(selected, paths[i*step])
	}
	return selected
}

// ExtractFrames extracts one still per planned timestamp into a frames
// directory next to the video. Individual extraction failures are logged and
// skipped; the batch only fails when ffmpeg is unavailable or the output
// directory cannot be created.
//
// Extraction is idempotent: an existing frames directory already holding at
// least opts.TargetCount frames is reused without touching ffmpeg. A partial
// directory is discarded and re-extracted.
func ExtractFrames(ctx context.Context, videoPath string, start, duration time.Duration, opts ExtractOptions) (*FrameSet, error) {
	frameDir := filepath.Join(filepath.Dir(videoPath), FrameDirName)

	if existing, ok := cachedFrames(frameDir, opts.TargetCount); ok {
		log.Info().Str("dir", frameDir).Int("count", len(existing)).Msg("Frames already extracted, skipping")
		return &FrameSet{Dir: frameDir, Paths: UniformStride(existing, opts.TargetCount), Cached: true}, nil
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: frame extraction requires ffmpeg: %w", err)
	}

	if err := os.RemoveAll(frameDir); err != nil {
		return nil, fmt.Errorf("clear stale frame directory: %w", err)
	}
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	plan := SamplePlan(start, duration, opts.Interval)
	log.Info().
		Str("video", filepath.Base(videoPath)).
		Dur("start", start).
		Dur("duration", duration).
		Int("planned", len(plan)).
		Int("workers", opts.Workers).
		Msg("Extracting frames")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	sem := make(chan struct{}, opts.Workers)

	for i, ts := range plan {
		wg.Add(1)
		go func(idx int, at time.Duration) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outPath := filepath.Join(frameDir, fmt.Sprintf("frame_%03d.jpg", idx))
			if err := extractFrameAt(ctx, ffmpegPath, videoPath, at, outPath, opts); err != nil {
				log.Warn().Err(err).Dur("at", at).Str("frame", filepath.Base(outPath)).Msg("Frame extraction failed, skipping")
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(i, ts)
	}
	wg.Wait()

	paths, err := listFrames(frameDir)
	if err != nil {
		return nil, err
	}

	result := &FrameSet{
		Dir:    frameDir,
		Paths:  UniformStride(paths, opts.TargetCount),
		Failed: failed,
	}

	log.Info().
		Int("extracted", len(paths)).
		Int("selected", len(result.Paths)).
		Int("failed", failed).
		Msg("Frame extraction complete")

	return result, nil
}

// extractFrameAt runs one ffmpeg seek-and-capture for a single timestamp.
func extractFrameAt(ctx context.Context, ffmpegPath, videoPath string, at time.Duration, outPath string, opts ExtractOptions) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", fmt.Sprintf("%.0f", at.Seconds()),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", fmt.Sprintf("%d", opts.Quality),
		"-vf", fmt.Sprintf("scale=%d:-1", opts.Width),
		"-y",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame capture at %s: %w", at, err)
	}
	if fi, err := os.Stat(outPath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no output at %s", at)
	}
	return nil
}

// cachedFrames reports whether frameDir already holds enough frames to skip
// extraction, returning the sorted frame list when it does.
func cachedFrames(frameDir string, target int) ([]string, bool) {
	paths, err := listFrames(frameDir)
	if err != nil || len(paths) < target {
		return nil, false
	}
	return paths, true
}

// listFrames returns the jpg files in frameDir sorted by name. Frame names
// are zero-padded so lexical order matches timeline order.
func listFrames(frameDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(frameDir, "*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
