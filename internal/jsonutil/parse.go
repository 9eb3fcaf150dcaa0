// Package jsonutil extracts and parses JSON payloads from LLM responses that
// may arrive wrapped in markdown code fences or surrounded by prose.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Unwrap removes ```json ... ``` or ``` ... ``` fencing from text. It handles
// zero, one, or malformed fence markers uniformly: with no opening fence the
// text is returned trimmed; with an opening fence but no closing fence,
// everything after the opening marker is returned.
func Unwrap(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	// Skip the opening fence line (```json or bare ```).
	body := lines[1:]
	end := len(body)
	for i := len(body) - 1; i >= 0; i-- {
		if strings.TrimSpace(body[i]) == "```" {
			end = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(body[:end], "\n"))
}

// ExtractJSON returns the JSON object or array embedded in text that may
// contain surrounding non-JSON content. The first { or [ is matched with the
// last corresponding } or ].
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	if objIdx == -1 && arrIdx == -1 {
		return "", fmt.Errorf("no JSON content found")
	}

	start := objIdx
	closer := "}"
	if objIdx == -1 || (arrIdx != -1 && arrIdx < objIdx) {
		start = arrIdx
		closer = "]"
	}

	text = text[start:]
	end := strings.LastIndex(text, closer)
	if end == -1 {
		return "", fmt.Errorf("no closing %s found", closer)
	}

	return text[:end+1], nil
}

// Parse unwraps code fences from raw LLM response text, extracts the JSON
// payload, and unmarshals it into T. This is the single entry point for
// turning untrusted model output into typed data.
func Parse[T any](raw string) (T, error) {
	var zero T

	jsonStr, err := ExtractJSON(Unwrap(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}
