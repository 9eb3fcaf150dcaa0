package pipeline

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAnalysisWindowFallsBackToOneHour(t *testing.T) {
	// A recording the duration probe cannot measure still gets a sampling
	// window: one hour past the session start.
	start := 12*time.Minute + 3*time.Second
	missing := filepath.Join(t.TempDir(), "T-1.mp4")

	got := analysisWindow(missing, start)
	if want := start + time.Hour; got != want {
		t.Errorf("analysisWindow = %v, want %v", got, want)
	}
}

func TestAnalysisWindowFallbackFromZeroStart(t *testing.T) {
	got := analysisWindow(filepath.Join(t.TempDir(), "absent.mp4"), 0)
	if got != time.Hour {
		t.Errorf("analysisWindow = %v, want 1h", got)
	}
}
