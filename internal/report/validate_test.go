package report

import (
	"strings"
	"testing"
)

const validResponse = `{
  "meta": {"tutor_id": "T-4053", "session_date": "2026-01-05", "session_summary": "Flutter basics"},
  "positive_feedback": [],
  "areas_for_improvement": [],
  "flags": [],
  "scoring": {
    "setup": [{"subcategory": "Internet Quality", "rating": 4, "reason": "minor lag"}],
    "attitude": [],
    "preparation": [],
    "curriculum": [],
    "teaching": [],
    "averages": {},
    "final_weighted_score": 0
  },
  "action_plan": []
}`

func TestValidateAcceptsCompleteResponse(t *testing.T) {
	r, verr := Validate(validResponse)
	if verr != nil {
		t.Fatalf("Validate rejected valid response: %v", verr)
	}
	if r.Meta.TutorID != "T-4053" {
		t.Errorf("tutor_id = %q", r.Meta.TutorID)
	}
	if len(r.Scoring.Setup) != 1 || r.Scoring.Setup[0].Rating != 4 {
		t.Errorf("setup ratings = %+v", r.Scoring.Setup)
	}
}

func TestValidateAcceptsFencedResponse(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	if _, verr := Validate(fenced); verr != nil {
		t.Fatalf("Validate rejected fenced response: %v", verr)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantState  State
		wantReason Reason
		wantDetail string
	}{
		{"empty text", "", StateParseFailed, ReasonEmptyResponse, ""},
		{"whitespace only", "   \n  ", StateParseFailed, ReasonEmptyResponse, ""},
		{"malformed json", `{"meta": `, StateParseFailed, ReasonInvalidJSON, ""},
		{"prose without json", "I could not analyze the session.", StateParseFailed, ReasonInvalidJSON, ""},
		{"empty object", `{}`, StateSchemaFailed, ReasonEmptyObject, ""},
		{"missing scoring", `{"meta": {"tutor_id": "T-1"}}`, StateSchemaFailed, ReasonMissingKeys, "scoring"},
		{"missing meta", `{"scoring": {"setup": [{"rating": 4}]}}`, StateSchemaFailed, ReasonMissingKeys, "meta"},
		{"empty scoring", `{"meta": {}, "scoring": {}}`, StateSchemaFailed, ReasonEmptyScoring, ""},
		{
			"no populated categories",
			`{"meta": {}, "scoring": {"setup": [], "attitude": [], "averages": {}}}`,
			StateSchemaFailed, ReasonNoRatings, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verr := Validate(tt.input)
			if verr == nil {
				t.Fatal("Validate accepted invalid response")
			}
			if verr.State != tt.wantState {
				t.Errorf("state = %v, want %v", verr.State, tt.wantState)
			}
			if verr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", verr.Reason, tt.wantReason)
			}
			if tt.wantDetail != "" && !strings.Contains(verr.Detail, tt.wantDetail) {
				t.Errorf("detail %q does not name %q", verr.Detail, tt.wantDetail)
			}
		})
	}
}

func TestNormalizeDropsEvidencelessFindings(t *testing.T) {
	r := &Report{
		PositiveFeedback: []Finding{
			{Category: "A", Text: "warm greeting", Cite: "\"welcome back!\"", Timestamp: "00:15:12"},
			{Category: "T", Text: "vague praise with no evidence"},
		},
		AreasForImprovement: []Finding{
			{Category: "T", Text: "no comprehension checks", Timestamp: "00:40:00"},
			{Category: "P", Text: "unsupported claim"},
		},
		Flags: []Flag{
			{Level: "Yellow", Subcategory: "Dead Air", Reason: "8 min silence", Cite: "transcript 00:31-00:39"},
			{Level: "Red", Subcategory: "No Show", Reason: "no evidence given"},
		},
	}

	dropped := r.Normalize()
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if len(r.PositiveFeedback) != 1 || len(r.AreasForImprovement) != 1 || len(r.Flags) != 1 {
		t.Errorf("kept %d/%d/%d entries, want 1/1/1",
			len(r.PositiveFeedback), len(r.AreasForImprovement), len(r.Flags))
	}
}
