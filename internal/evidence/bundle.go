// Package evidence assembles the artifact set submitted to the model for one
// analysis pass: sampled frames, the audio track, the transcript, and the
// policy reference documents.
package evidence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind classifies an artifact by content type. Attachment ordering in the
// prompt is by kind group, then by source path within the group.
type Kind int

const (
	KindDocument Kind = iota
	KindTranscript
	KindImage
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindTranscript:
		return "transcript"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	}
	return "unknown"
}

// ErrNoFrames indicates the bundle holds no visual evidence at all. The model
// cannot audit a session it cannot see, so this aborts the run.
var ErrNoFrames = errors.New("evidence bundle contains no frames")

// Artifact is one local file destined for upload.
type Artifact struct {
	Path     string
	MIMEType string
	Kind     Kind
}

// Bundle is the full evidence set for one analysis attempt.
type Bundle struct {
	Artifacts []Artifact

	// Degraded is set when optional evidence (audio) is missing. The run
	// proceeds but the report metadata records the degradation.
	Degraded       bool
	DegradedReason string
}

// MarkDegraded records another reason the evidence set is incomplete.
func (b *Bundle) MarkDegraded(reason string) {
	b.Degraded = true
	if b.DegradedReason == "" {
		b.DegradedReason = reason
		return
	}
	b.DegradedReason += "; " + reason
}

// Build assembles a Bundle from the prepared artifacts. framePaths must hold
// at least minFrames entries; audioPath and transcriptPath may be empty.
// Reference documents that do not exist on disk are skipped with a warning.
func Build(framePaths []string, audioPath, transcriptPath string, documents []string, minFrames int) (*Bundle, error) {
	if len(framePaths) == 0 {
		return nil, ErrNoFrames
	}
	if len(framePaths) < minFrames {
		return nil, fmt.Errorf("only %d frames extracted, need at least %d", len(framePaths), minFrames)
	}

	b := &Bundle{}

	for _, doc := range documents {
		if _, err := os.Stat(doc); err != nil {
			log.Warn().Str("path", doc).Msg("Reference document not found, skipping")
			continue
		}
		b.Artifacts = append(b.Artifacts, Artifact{Path: doc, MIMEType: mimeFor(doc), Kind: KindDocument})
	}

	if transcriptPath != "" {
		if _, err := os.Stat(transcriptPath); err == nil {
			b.Artifacts = append(b.Artifacts, Artifact{Path: transcriptPath, MIMEType: "text/plain", Kind: KindTranscript})
		} else {
			log.Warn().Str("path", transcriptPath).Msg("Transcript not found, proceeding without it")
		}
	}

	for _, frame := range framePaths {
		b.Artifacts = append(b.Artifacts, Artifact{Path: frame, MIMEType: "image/jpeg", Kind: KindImage})
	}

	if audioPath != "" {
		b.Artifacts = append(b.Artifacts, Artifact{Path: audioPath, MIMEType: "audio/mp3", Kind: KindAudio})
	} else {
		b.MarkDegraded("audio track unavailable")
	}

	b.sortArtifacts()
	return b, nil
}

// sortArtifacts orders artifacts by kind group then source path, the stable
// presentation order required for comparable repeated runs.
func (b *Bundle) sortArtifacts() {
	sort.SliceStable(b.Artifacts, func(i, j int) bool {
		if b.Artifacts[i].Kind != b.Artifacts[j].Kind {
			return b.Artifacts[i].Kind < b.Artifacts[j].Kind
		}
		return b.Artifacts[i].Path < b.Artifacts[j].Path
	})
}

// ByKind returns the artifacts of one kind, in bundle order.
func (b *Bundle) ByKind(kind Kind) []Artifact {
	var out []Artifact
	for _, a := range b.Artifacts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Counts returns artifact totals per kind for logging.
func (b *Bundle) Counts() (documents, transcripts, images, audio int) {
	for _, a := range b.Artifacts {
		switch a.Kind {
		case KindDocument:
			documents++
		case KindTranscript:
			transcripts++
		case KindImage:
			images++
		case KindAudio:
			audio++
		}
	}
	return
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp3":
		return "audio/mp3"
	default:
		return "application/octet-stream"
	}
}
