package report

// validate.go checks model responses for syntactic and semantic completeness
// before anything downstream trusts them. Each response moves through
// RECEIVED -> PARSED|PARSE_FAILED -> SCHEMA_OK|SCHEMA_FAILED -> ACCEPTED,
// and every rejection carries a distinct reason.

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ischool-ai/session-auditor/internal/jsonutil"
)

// State is the validation state a response ended in.
type State string

const (
	StateParseFailed  State = "PARSE_FAILED"
	StateSchemaFailed State = "SCHEMA_FAILED"
	StateAccepted     State = "ACCEPTED"
)

// Reason identifies the specific validation failure.
type Reason string

const (
	ReasonEmptyResponse Reason = "empty response"
	ReasonInvalidJSON   Reason = "invalid JSON syntax"
	ReasonEmptyObject   Reason = "empty object"
	ReasonMissingKeys   Reason = "missing required keys"
	ReasonEmptyScoring  Reason = "scoring section is empty"
	ReasonNoRatings     Reason = "no category ratings found in scoring"
)

// ValidationError describes why a model response was rejected.
type ValidationError struct {
	State  State
	Reason Reason
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.State, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate parses raw model output (possibly fence-wrapped) and checks it for
// completeness. The checks run in order and each failure is distinct:
//
//  1. non-empty text
//  2. syntactically valid JSON
//  3. not a vacuously empty object
//  4. required top-level sections present (meta, scoring)
//  5. scoring non-empty with at least one populated rating category
func Validate(raw string) (*Report, *ValidationError) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ValidationError{State: StateParseFailed, Reason: ReasonEmptyResponse}
	}

	tree, err := jsonutil.Parse[map[string]json.RawMessage](raw)
	if err != nil {
		return nil, &ValidationError{State: StateParseFailed, Reason: ReasonInvalidJSON, Err: err}
	}

	if len(tree) == 0 {
		return nil, &ValidationError{State: StateSchemaFailed, Reason: ReasonEmptyObject, Detail: "{}"}
	}

	var missing []string
	for _, key := range []string{"meta", "scoring"} {
		if _, ok := tree[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			State:  StateSchemaFailed,
			Reason: ReasonMissingKeys,
			Detail: strings.Join(missing, ", "),
		}
	}

	var parsed Report
	payload, _ := jsonutil.ExtractJSON(jsonutil.Unwrap(raw))
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, &ValidationError{State: StateParseFailed, Reason: ReasonInvalidJSON, Err: err}
	}

	var scoringTree map[string]json.RawMessage
	if err := json.Unmarshal(tree["scoring"], &scoringTree); err != nil || len(scoringTree) == 0 {
		return nil, &ValidationError{State: StateSchemaFailed, Reason: ReasonEmptyScoring}
	}

	if !parsed.Scoring.HasRatings() {
		return nil, &ValidationError{State: StateSchemaFailed, Reason: ReasonNoRatings}
	}

	return &parsed, nil
}
