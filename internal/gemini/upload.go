package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/ischool-ai/session-auditor/internal/evidence"
)

// Sentinel errors for upload readiness failures. Both are unrecoverable for
// the affected run: the remote resource will never become usable.
var (
	// ErrProcessingFailed indicates the Files API rejected an uploaded artifact.
	ErrProcessingFailed = errors.New("uploaded file processing failed")
	// ErrProcessingTimeout indicates an artifact stayed in the processing
	// state past the polling budget.
	ErrProcessingTimeout = errors.New("uploaded file processing timed out")
)

// UploadedArtifact pairs a local evidence artifact with its remote Files API
// handle.
type UploadedArtifact struct {
	Artifact evidence.Artifact
	File     *genai.File
}

// UploadFailure records one artifact that could not be uploaded.
type UploadFailure struct {
	Artifact evidence.Artifact
	Err      error
}

// UploadResult separates the artifacts that made it to the Files API from
// those that did not. The caller decides whether the surviving set is
// sufficient to analyze.
type UploadResult struct {
	Uploaded []UploadedArtifact
	Failed   []UploadFailure
}

// UploadOptions controls upload concurrency and readiness polling.
type UploadOptions struct {
	Workers         int
	PollInterval    time.Duration
	MaxPollAttempts int
}

// UploadAll uploads every artifact in the bundle to the Gemini Files API
// using a bounded worker pool. Results preserve the bundle's artifact order
// regardless of upload completion order, so the model always sees evidence
// in the same sequence.
//
// One artifact's failure does not cancel its siblings. Failures are logged
// and returned alongside the partial success set; whether the surviving
// evidence still meets the minimum thresholds is the caller's call.
func UploadAll(ctx context.Context, client *genai.Client, artifacts []evidence.Artifact, opts UploadOptions) (UploadResult, error) {
	if len(artifacts) == 0 {
		return UploadResult{}, errors.New("no artifacts to upload")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	log.Info().
		Int("artifacts", len(artifacts)).
		Int("workers", workers).
		Msg("Uploading evidence bundle to Gemini Files API")

	uploads := make([]UploadedArtifact, len(artifacts))
	uploadErrs := make([]error, len(artifacts))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	start := time.Now()

	for i, art := range artifacts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, art evidence.Artifact) {
			defer wg.Done()
			defer func() { <-sem }()

			file, err := uploadOne(ctx, client, art)
			if err != nil {
				uploadErrs[i] = err
				return
			}
			uploads[i] = UploadedArtifact{Artifact: art, File: file}
		}(i, art)
	}
	wg.Wait()

	var res UploadResult
	for i, err := range uploadErrs {
		if err != nil {
			log.Error().Err(err).Str("path", artifacts[i].Path).Msg("Artifact upload failed")
			res.Failed = append(res.Failed, UploadFailure{Artifact: artifacts[i], Err: err})
			continue
		}
		res.Uploaded = append(res.Uploaded, uploads[i])
	}

	log.Info().
		Int("uploaded", len(res.Uploaded)).
		Int("failed", len(res.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Evidence bundle uploaded")

	return res, nil
}

// uploadOne streams a single artifact to the Files API.
func uploadOne(ctx context.Context, client *genai.Client, art evidence.Artifact) (*genai.File, error) {
	f, err := os.Open(art.Path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	log.Debug().
		Str("path", art.Path).
		Int64("size_bytes", info.Size()).
		Str("mime_type", art.MIMEType).
		Msg("Uploading artifact")

	file, err := client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType: art.MIMEType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", art.Path, err)
	}

	log.Debug().
		Str("path", art.Path).
		Str("name", file.Name).
		Str("state", string(file.State)).
		Msg("Artifact uploaded")

	return file, nil
}

// AwaitReady polls every uploaded artifact until it leaves the processing
// state. Polling is sequential with a fixed interval; the attempt budget is
// per artifact. A file that ends in the failed state, or exhausts the
// budget, aborts the run with a sentinel error.
func AwaitReady(ctx context.Context, client *genai.Client, uploads []UploadedArtifact, opts UploadOptions) error {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	attempts := opts.MaxPollAttempts
	if attempts <= 0 {
		attempts = 150
	}

	for i := range uploads {
		file := uploads[i].File
		polls := 0

		for file.State == genai.FileStateProcessing {
			if polls >= attempts {
				return fmt.Errorf("%w: %s still processing after %d polls",
					ErrProcessingTimeout, uploads[i].Artifact.Path, polls)
			}
			polls++

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}

			updated, err := client.Files.Get(ctx, file.Name, nil)
			if err != nil {
				return fmt.Errorf("poll file state for %s: %w", uploads[i].Artifact.Path, err)
			}
			file = updated
		}

		if file.State == genai.FileStateFailed {
			return fmt.Errorf("%w: %s", ErrProcessingFailed, uploads[i].Artifact.Path)
		}

		uploads[i].File = file
		if polls > 0 {
			log.Debug().
				Str("path", uploads[i].Artifact.Path).
				Int("polls", polls).
				Msg("Artifact ready for inference")
		}
	}

	log.Info().Int("artifacts", len(uploads)).Msg("All evidence ready for inference")
	return nil
}

// DeleteAll removes uploaded artifacts from the Files API. Failures are
// logged, not returned: remote files expire on their own after 48 hours.
func DeleteAll(ctx context.Context, client *genai.Client, uploads []UploadedArtifact) {
	for _, u := range uploads {
		if u.File == nil {
			continue
		}
		if _, err := client.Files.Delete(ctx, u.File.Name, nil); err != nil {
			log.Warn().Err(err).Str("name", u.File.Name).Msg("Failed to delete uploaded file")
			continue
		}
		log.Debug().Str("name", u.File.Name).Msg("Deleted uploaded file")
	}
}

// ListStoredFiles returns every file currently held by the Files API for
// this key. Used by the storage cleanup tool.
func ListStoredFiles(ctx context.Context, client *genai.Client) ([]*genai.File, error) {
	var files []*genai.File
	for file, err := range client.Files.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list stored files: %w", err)
		}
		files = append(files, file)
	}
	return files, nil
}

// DeleteStoredFile removes one remote file by name.
func DeleteStoredFile(ctx context.Context, client *genai.Client, name string) error {
	if _, err := client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("delete stored file %s: %w", name, err)
	}
	return nil
}
