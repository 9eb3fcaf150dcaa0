package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ischool-ai/session-auditor/internal/config"
	"github.com/ischool-ai/session-auditor/internal/evidence"
	"github.com/ischool-ai/session-auditor/internal/media"
)

// ErrResource marks an unrecoverable local or remote resource failure
// (unreadable video, no frames, upload processing failure). The run aborts
// and any existing report is left untouched.
var ErrResource = errors.New("resource failure")

// Prepared holds everything extracted from the session recording before any
// model call is made.
type Prepared struct {
	StartTime      string
	Duration       time.Duration
	Frames         *media.FrameSet
	AudioPath      string
	TranscriptPath string
	Bundle         *evidence.Bundle
}

// analysisWindow probes the recording for its duration. An unmeasurable
// recording still gets audited: the sampling window defaults to one hour past
// the session start.
func analysisWindow(videoPath string, start time.Duration) time.Duration {
	duration, err := media.ProbeDuration(videoPath)
	if err != nil || duration <= 0 {
		log.Warn().Err(err).Str("video", videoPath).Msg("Duration probe failed, assuming a one-hour session")
		return start + time.Hour
	}
	return duration
}

// Prepare extracts frames and audio from the recording, normalizes the
// transcript, and assembles the evidence bundle. Audio failure degrades the
// run; frame failure aborts it.
func Prepare(ctx context.Context, cfg *config.Config, videoPath, transcriptPath string) (*Prepared, error) {
	if strings.EqualFold(filepath.Ext(transcriptPath), ".vtt") {
		converted, err := media.ConvertVTT(transcriptPath)
		if err != nil {
			log.Warn().Err(err).Str("path", transcriptPath).Msg("VTT conversion failed, using raw transcript")
		} else {
			transcriptPath = converted
		}
	}

	startClock := media.StartTime(transcriptPath, cfg.Extraction.DefaultStartTime)
	start, err := media.ParseClock(startClock)
	if err != nil {
		return nil, fmt.Errorf("parse session start %q: %w", startClock, err)
	}

	duration := analysisWindow(videoPath, start)

	log.Info().
		Str("video", videoPath).
		Dur("duration", duration).
		Str("session_start", startClock).
		Msg("Session media probed")

	frames, err := media.ExtractFrames(ctx, videoPath, start, duration, media.ExtractOptions{
		Interval:    time.Duration(cfg.Extraction.FrameIntervalSeconds) * time.Second,
		Width:       cfg.Extraction.FrameWidth,
		Quality:     cfg.Extraction.FrameQuality,
		TargetCount: cfg.Extraction.TargetFrameCount,
		MinCount:    cfg.Extraction.MinFrameCount,
		Workers:     cfg.Extraction.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: extract frames: %v", ErrResource, err)
	}

	audioPath, err := media.ExtractAudio(ctx, videoPath)
	if err != nil {
		log.Warn().Err(err).Msg("Audio extraction failed, proceeding with degraded evidence")
		audioPath = ""
	}

	bundle, err := evidence.Build(frames.Paths, audioPath, transcriptPath, cfg.ReferenceDocuments, cfg.Extraction.MinFrameCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}

	docs, transcripts, images, audio := bundle.Counts()
	log.Info().
		Int("documents", docs).
		Int("transcripts", transcripts).
		Int("frames", images).
		Int("audio", audio).
		Bool("degraded", bundle.Degraded).
		Msg("Evidence bundle assembled")

	return &Prepared{
		StartTime:      startClock,
		Duration:       duration,
		Frames:         frames,
		AudioPath:      audioPath,
		TranscriptPath: transcriptPath,
		Bundle:         bundle,
	}, nil
}
