package consistency

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func record(t *testing.T, store *Store, sessionID, runID, model string, finalScore float64) {
	t.Helper()
	run := Run{
		SessionID:     sessionID,
		RunID:         runID,
		Model:         model,
		FinalScore:    finalScore,
		Seed:          42,
		Temperature:   0,
		ThinkingLevel: "high",
	}
	if err := store.Record(context.Background(), run); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestRecordAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	scores := []float64{80.0, 83.5, 79.0}
	for i, v := range scores {
		record(t, store, "session-a", "run-"+string(rune('1'+i)), "gemini-3-flash-preview", v)
	}
	record(t, store, "session-b", "run-x", "gemini-3-flash-preview", 50.0)

	got, err := store.History(ctx, "session-a", "gemini-3-flash-preview")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != len(scores) {
		t.Fatalf("History returned %d scores, want %d", len(got), len(scores))
	}
	for i, v := range scores {
		if got[i] != v {
			t.Errorf("History[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestHistoryIsolatedByModel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record(t, store, "session-a", "run-1", "gemini-3-flash-preview", 80.0)
	record(t, store, "session-a", "run-2", "gemini-3-pro-preview", 90.0)

	got, err := store.History(ctx, "session-a", "gemini-3-flash-preview")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 1 || got[0] != 80.0 {
		t.Fatalf("History = %v, want [80]", got)
	}
}

func TestStatsFor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, v := range []float64{80.0, 83.0, 79.0} {
		record(t, store, "session-a", "run-"+string(rune('1'+i)), "m", v)
	}

	stats, err := store.StatsFor(ctx, "session-a", "m", 5.0)
	if err != nil {
		t.Fatalf("StatsFor: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.Min != 79.0 || stats.Max != 83.0 {
		t.Errorf("Min/Max = %v/%v, want 79/83", stats.Min, stats.Max)
	}
	if stats.Median != 80.0 {
		t.Errorf("Median = %v, want 80", stats.Median)
	}
	if stats.Variance != 4.0 {
		t.Errorf("Variance = %v, want 4", stats.Variance)
	}
	if !stats.Reliable {
		t.Error("Reliable = false, want true at variance 4 with threshold 5")
	}
}

func TestStatsForUnreliableSpread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, v := range []float64{70.0, 82.0} {
		record(t, store, "session-a", "run-"+string(rune('1'+i)), "m", v)
	}

	stats, err := store.StatsFor(ctx, "session-a", "m", 5.0)
	if err != nil {
		t.Fatalf("StatsFor: %v", err)
	}
	if stats.Reliable {
		t.Error("Reliable = true, want false at variance 12 with threshold 5")
	}
	if stats.Variance != 12.0 {
		t.Errorf("Variance = %v, want 12", stats.Variance)
	}
}

func TestStatsForEmptyHistory(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.StatsFor(context.Background(), "missing", "m", 5.0)
	if err != nil {
		t.Fatalf("StatsFor: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
}
