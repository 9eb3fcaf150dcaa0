// Package archive persists the raw model responses from each analysis pass
// alongside the final report, so disputed scores can be traced back to what
// the model actually returned.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// PassResponse is one raw model response captured during a run.
type PassResponse struct {
	Pass       string    `json:"pass"`
	Model      string    `json:"model"`
	Attempt    int       `json:"attempt"`
	Raw        string    `json:"raw"`
	CapturedAt time.Time `json:"captured_at"`
}

// PathFor returns the archive path for a given report path.
func PathFor(reportPath string) string {
	return reportPath + ".responses.zst"
}

// Write stores the captured responses as zstd-compressed JSON next to the
// report. The file is written to a temp path and renamed so a crash never
// leaves a truncated archive.
func Write(path string, responses []PassResponse) error {
	data, err := json.MarshalIndent(responses, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response archive: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".responses-*.zst")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close archive: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename archive into place: %w", err)
	}

	log.Debug().
		Str("path", path).
		Int("passes", len(responses)).
		Int("uncompressed_bytes", len(data)).
		Msg("Raw response archive written")

	return nil
}

// Read loads a previously written response archive.
func Read(path string) ([]PassResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var responses []PassResponse
	if err := json.NewDecoder(dec).Decode(&responses); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return responses, nil
}
