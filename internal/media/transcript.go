package media

// transcript.go parses session transcripts for the official start time and
// converts WebVTT captions into the timestamped plain-text form the analysis
// prompt expects.

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// clockPattern matches the first HH:MM:SS timestamp in a transcript, covering
// both [HH:MM:SS] prefixes and VTT cue times like 00:13:17.540.
var clockPattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})`)

// vttCuePattern matches a VTT cue line: 00:00:00.000 --> 00:00:05.000.
var vttCuePattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})\.\d{3}\s-->\s.*`)

// StartTime returns the session start time parsed from the transcript's first
// timestamp. If the transcript is missing or contains no timestamp, the
// fallback is returned.
func StartTime(transcriptPath, fallback string) string {
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		log.Warn().Err(err).Str("path", transcriptPath).Msg("Could not read transcript, using default start time")
		return fallback
	}

	if m := clockPattern.FindStringSubmatch(string(data)); m != nil {
		log.Info().Str("start_time", m[1]).Str("path", transcriptPath).Msg("Start time parsed from transcript")
		return m[1]
	}

	log.Warn().Str("path", transcriptPath).Msg("No timestamp found in transcript, using default start time")
	return fallback
}

// ParseClock converts an HH:MM:SS string to a duration from session zero.
func ParseClock(clock string) (time.Duration, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed clock %q, want HH:MM:SS", clock)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("malformed clock %q, want HH:MM:SS", clock)
		}
		vals[i] = v
	}
	return time.Duration(vals[0])*time.Hour +
		time.Duration(vals[1])*time.Minute +
		time.Duration(vals[2])*time.Second, nil
}

// FormatClock renders a duration as HH:MM:SS.
func FormatClock(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// ConvertVTT converts a WebVTT caption file into a plain-text transcript with
// [HH:MM:SS]-prefixed lines, written next to the source with a .txt extension.
// Returns the path of the converted file.
func ConvertVTT(vttPath string) (string, error) {
	in, err := os.Open(vttPath)
	if err != nil {
		return "", fmt.Errorf("open vtt %s: %w", vttPath, err)
	}
	defer in.Close()

	txtPath := strings.TrimSuffix(vttPath, filepath.Ext(vttPath)) + ".txt"

	var out strings.Builder
	var currentTimestamp string

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "WEBVTT" {
			continue
		}
		// Cue sequence numbers carry no content.
		if _, err := strconv.Atoi(line); err == nil {
			continue
		}

		if m := vttCuePattern.FindStringSubmatch(line); m != nil {
			currentTimestamp = m[1]
			continue
		}

		if currentTimestamp != "" {
			fmt.Fprintf(&out, "[%s] %s\n", currentTimestamp, line)
			currentTimestamp = ""
		} else {
			out.WriteString(line + "\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan vtt %s: %w", vttPath, err)
	}

	if err := os.WriteFile(txtPath, []byte(out.String()), 0o644); err != nil {
		return "", fmt.Errorf("write transcript %s: %w", txtPath, err)
	}

	log.Info().Str("vtt", vttPath).Str("txt", txtPath).Msg("Converted VTT transcript")
	return txtPath, nil
}
