package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/ischool-ai/session-auditor/internal/evidence"
	"github.com/ischool-ai/session-auditor/internal/gemini"
)

// Uploader is the evidence upload stage. Runner uses the Files API
// implementation by default; tests substitute fakes to drive the
// partial-failure policy.
type Uploader interface {
	Upload(ctx context.Context, artifacts []evidence.Artifact) (gemini.UploadResult, error)
	AwaitReady(ctx context.Context, uploads []gemini.UploadedArtifact) error
	Discard(ctx context.Context, uploads []gemini.UploadedArtifact)
}

// geminiUploader backs the Uploader interface with the Gemini Files API.
type geminiUploader struct {
	client *genai.Client
	opts   gemini.UploadOptions
}

func (g *geminiUploader) Upload(ctx context.Context, artifacts []evidence.Artifact) (gemini.UploadResult, error) {
	return gemini.UploadAll(ctx, g.client, artifacts, g.opts)
}

func (g *geminiUploader) AwaitReady(ctx context.Context, uploads []gemini.UploadedArtifact) error {
	return gemini.AwaitReady(ctx, g.client, uploads, g.opts)
}

func (g *geminiUploader) Discard(ctx context.Context, uploads []gemini.UploadedArtifact) {
	gemini.DeleteAll(ctx, g.client, uploads)
}

// uploadEvidence pushes the bundle and applies the minimum-evidence policy.
// Individual upload failures are tolerated as long as enough frames survive;
// a lost transcript or audio track degrades the run rather than aborting it.
// Dropping below the frame minimum discards the partial set and fails.
func uploadEvidence(ctx context.Context, up Uploader, bundle *evidence.Bundle, minFrames int) ([]gemini.UploadedArtifact, error) {
	res, err := up.Upload(ctx, bundle.Artifacts)
	if err != nil {
		return nil, err
	}

	for _, f := range res.Failed {
		log.Warn().
			Err(f.Err).
			Str("path", f.Artifact.Path).
			Str("kind", f.Artifact.Kind.String()).
			Msg("Artifact upload failed, continuing without it")
	}

	frames := 0
	for _, u := range res.Uploaded {
		if u.Artifact.Kind == evidence.KindImage {
			frames++
		}
	}
	if minFrames < 1 {
		minFrames = 1
	}
	if frames < minFrames {
		up.Discard(ctx, res.Uploaded)
		return nil, fmt.Errorf("only %d of %d required frames uploaded", frames, minFrames)
	}

	for _, f := range res.Failed {
		switch f.Artifact.Kind {
		case evidence.KindTranscript:
			bundle.MarkDegraded("transcript upload failed")
		case evidence.KindAudio:
			bundle.MarkDegraded("audio upload failed")
		}
	}

	return res.Uploaded, nil
}
