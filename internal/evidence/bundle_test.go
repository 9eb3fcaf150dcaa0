package evidence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildRejectsEmptyFrames(t *testing.T) {
	if _, err := Build(nil, "", "", nil, 1); !errors.Is(err, ErrNoFrames) {
		t.Errorf("Build(nil frames) = %v, want ErrNoFrames", err)
	}
}

func TestBuildEnforcesMinimumFrames(t *testing.T) {
	dir := t.TempDir()
	frames := []string{touch(t, dir, "frame_000.jpg"), touch(t, dir, "frame_001.jpg")}

	if _, err := Build(frames, "", "", nil, 5); err == nil {
		t.Error("Build accepted a bundle below the frame minimum")
	}
	if _, err := Build(frames, "", "", nil, 2); err != nil {
		t.Errorf("Build rejected a sufficient bundle: %v", err)
	}
}

func TestBuildMarksMissingAudioDegraded(t *testing.T) {
	dir := t.TempDir()
	frames := []string{touch(t, dir, "frame_000.jpg")}

	b, err := Build(frames, "", "", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Degraded {
		t.Error("bundle without audio not marked degraded")
	}

	audio := touch(t, dir, "session_audio.mp3")
	b, err = Build(frames, audio, "", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if b.Degraded {
		t.Error("bundle with audio marked degraded")
	}
}

func TestBuildSkipsMissingDocuments(t *testing.T) {
	dir := t.TempDir()
	frames := []string{touch(t, dir, "frame_000.jpg")}
	realDoc := touch(t, dir, "guide.pdf")

	b, err := Build(frames, "", "", []string{realDoc, filepath.Join(dir, "absent.pdf")}, 1)
	if err != nil {
		t.Fatal(err)
	}
	docs := b.ByKind(KindDocument)
	if len(docs) != 1 || docs[0].Path != realDoc {
		t.Errorf("documents = %v, want only %s", docs, realDoc)
	}
	if docs[0].MIMEType != "application/pdf" {
		t.Errorf("document mime = %q", docs[0].MIMEType)
	}
}

func TestBundleOrderingIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	// Deliberately unsorted frame inputs.
	frames := []string{
		touch(t, dir, "frame_002.jpg"),
		touch(t, dir, "frame_000.jpg"),
		touch(t, dir, "frame_001.jpg"),
	}
	audio := touch(t, dir, "session_audio.mp3")
	transcript := touch(t, dir, "session.txt")
	doc := touch(t, dir, "guide.pdf")

	b, err := Build(frames, audio, transcript, []string{doc}, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Kind groups in fixed order, paths sorted within each group.
	wantKinds := []Kind{KindDocument, KindTranscript, KindImage, KindImage, KindImage, KindAudio}
	if len(b.Artifacts) != len(wantKinds) {
		t.Fatalf("artifact count = %d, want %d", len(b.Artifacts), len(wantKinds))
	}
	for i, a := range b.Artifacts {
		if a.Kind != wantKinds[i] {
			t.Errorf("artifact %d kind = %v, want %v", i, a.Kind, wantKinds[i])
		}
	}

	images := b.ByKind(KindImage)
	for i := 1; i < len(images); i++ {
		if images[i-1].Path > images[i].Path {
			t.Errorf("images out of order: %s before %s", images[i-1].Path, images[i].Path)
		}
	}

	d, tr, im, au := b.Counts()
	if d != 1 || tr != 1 || im != 3 || au != 1 {
		t.Errorf("Counts = %d %d %d %d", d, tr, im, au)
	}
}
