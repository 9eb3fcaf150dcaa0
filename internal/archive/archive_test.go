package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(filepath.Join(dir, "report.json"))

	responses := []PassResponse{
		{Pass: "initial", Model: "gemini-3-flash-preview", Attempt: 1, Raw: `{"scoring":{}}`, CapturedAt: time.Now().UTC()},
		{Pass: "self-audit", Model: "gemini-3-flash-preview", Attempt: 1, Raw: strings.Repeat("x", 10_000), CapturedAt: time.Now().UTC()},
	}

	if err := Write(path, responses); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read returned %d responses, want 2", len(got))
	}
	if got[0].Pass != "initial" || got[1].Pass != "self-audit" {
		t.Errorf("pass names = %q, %q", got[0].Pass, got[1].Pass)
	}
	if got[1].Raw != responses[1].Raw {
		t.Error("raw payload did not survive the round trip")
	}
}

func TestWriteCompresses(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(filepath.Join(dir, "report.json"))

	raw := strings.Repeat(`{"rating": 5, "reason": "no issues found"}`, 2_000)
	if err := Write(path, []PassResponse{{Pass: "initial", Raw: raw}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() >= int64(len(raw)) {
		t.Errorf("archive size %d not smaller than raw payload %d", info.Size(), len(raw))
	}
}

func TestPathFor(t *testing.T) {
	if got := PathFor("/tmp/out/report.json"); got != "/tmp/out/report.json.responses.zst" {
		t.Errorf("PathFor = %q", got)
	}
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(filepath.Join(dir, "report.json"))

	if err := Write(path, []PassResponse{{Pass: "initial", Raw: "{}"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only the archive", names)
	}
}
