package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartTime(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"bracketed timestamp", "[00:12:03] Hello everyone\n[00:12:10] Let's begin", "00:12:03"},
		{"vtt cue time", "WEBVTT\n\n1\n00:13:17.540 --> 00:13:18.659\nHello", "00:13:17"},
		{"no timestamp", "just some text without times", "00:15:00"},
		{"empty file", "", "00:15:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(strings.ReplaceAll(tt.name, " ", "_")+".txt", tt.content)
			got := StartTime(path, "00:15:00")
			if got != tt.expected {
				t.Errorf("StartTime = %q, want %q", got, tt.expected)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		got := StartTime(filepath.Join(dir, "absent.txt"), "00:15:00")
		if got != "00:15:00" {
			t.Errorf("StartTime = %q, want fallback", got)
		}
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"00:12:03", 12*time.Minute + 3*time.Second, false},
		{"01:00:00", time.Hour, false},
		{"00:00:00", 0, false},
		{"12:03", 0, true},
		{"aa:bb:cc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, clock := range []string{"00:00:00", "00:12:03", "01:30:00"} {
		d, err := ParseClock(clock)
		if err != nil {
			t.Fatal(err)
		}
		if got := FormatClock(d); got != clock {
			t.Errorf("FormatClock(ParseClock(%q)) = %q", clock, got)
		}
	}
}

func TestConvertVTT(t *testing.T) {
	dir := t.TempDir()
	vtt := filepath.Join(dir, "session.vtt")
	content := `WEBVTT

1
00:13:17.540 --> 00:13:18.659
Hello, can you hear me?

2
00:13:22.000 --> 00:13:25.100
Yes, let's start the project.
`
	if err := os.WriteFile(vtt, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	txtPath, err := ConvertVTT(vtt)
	if err != nil {
		t.Fatalf("ConvertVTT returned error: %v", err)
	}
	if txtPath != filepath.Join(dir, "session.txt") {
		t.Errorf("output path = %q", txtPath)
	}

	data, err := os.ReadFile(txtPath)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	want := "[00:13:17] Hello, can you hear me?\n[00:13:22] Yes, let's start the project.\n"
	if got != want {
		t.Errorf("converted transcript:\n%q\nwant:\n%q", got, want)
	}
}
