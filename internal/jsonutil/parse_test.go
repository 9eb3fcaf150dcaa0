package jsonutil

import (
	"testing"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"missing closing fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"leading whitespace", "  \n```json\n{}\n```", `{}`},
		{"fence only", "```", "```"},
		{"multiline body", "```json\n{\n  \"a\": 1\n}\n```", "{\n  \"a\": 1\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Unwrap(tt.input)
			if result != tt.expected {
				t.Errorf("Unwrap(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`, false},
		{"object in prose", `Here is the report: {"a": 1} as requested.`, `{"a": 1}`, false},
		{"plain array", `[1, 2, 3]`, `[1, 2, 3]`, false},
		{"array before object", `[{"a": 1}]`, `[{"a": 1}]`, false},
		{"no json", "no structured data here", "", true},
		{"unterminated object", `{"a": 1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON(%q) expected error, got %q", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParse(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	t.Run("fenced payload", func(t *testing.T) {
		raw := "```json\n{\"name\": \"T-4053\", \"score\": 84.0}\n```"
		got, err := Parse[payload](raw)
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		if got.Name != "T-4053" || got.Score != 84.0 {
			t.Errorf("Parse = %+v, want {T-4053 84}", got)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := Parse[payload](`{"name": `); err == nil {
			t.Error("Parse expected error for truncated JSON")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := Parse[payload](""); err == nil {
			t.Error("Parse expected error for empty input")
		}
	})
}
