// Package report defines the structured audit report produced by the model
// and the validation applied before any response is trusted.
package report

import (
	"encoding/json"
	"fmt"
)

// Category names in scoring order. The weighted formula in internal/score
// iterates these.
var Categories = []string{"setup", "attitude", "preparation", "curriculum", "teaching"}

// Report is one complete analysis candidate: findings, flags, and scoring for
// a single session, as produced by one model call. Only the score reconciler
// mutates it (recomputing averages and the final score).
type Report struct {
	ReasoningTrace      []string  `json:"_reasoning_trace,omitempty"`
	Meta                Meta      `json:"meta"`
	PositiveFeedback    []Finding `json:"positive_feedback"`
	AreasForImprovement []Finding `json:"areas_for_improvement"`
	Flags               []Flag    `json:"flags"`
	Scoring             Scoring   `json:"scoring"`
	ActionPlan          []string  `json:"action_plan"`
}

// Meta holds session identification plus run bookkeeping added locally.
type Meta struct {
	TutorID        string `json:"tutor_id"`
	GroupID        string `json:"group_id,omitempty"`
	SessionDate    string `json:"session_date"`
	SessionSummary string `json:"session_summary"`

	// Fields below are stamped by the pipeline, never by the model.
	RunID    string `json:"run_id,omitempty"`
	Degraded string `json:"degraded,omitempty"`
}

// Finding is a single observation (positive or improvement) with its cited
// evidence. Findings without evidence are dropped during normalization.
type Finding struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Text        string `json:"text"`
	Cite        string `json:"cite,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Flag is a severity-tagged compliance violation.
type Flag struct {
	Level       string `json:"level"`
	Subcategory string `json:"subcategory"`
	Reason      string `json:"reason"`
	Cite        string `json:"cite,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Rating is one sub-category score on the 0-5 scale.
type Rating struct {
	Subcategory string  `json:"subcategory"`
	Rating      float64 `json:"rating"`
	Reason      string  `json:"reason,omitempty"`
}

// Scoring holds per-category ratings and the locally recomputed aggregate.
type Scoring struct {
	Setup       []Rating `json:"setup"`
	Attitude    []Rating `json:"attitude"`
	Preparation []Rating `json:"preparation"`
	Curriculum  []Rating `json:"curriculum"`
	Teaching    []Rating `json:"teaching"`

	Averages           map[string]float64 `json:"averages"`
	FinalWeightedScore float64            `json:"final_weighted_score"`

	Consistency *ConsistencyInfo `json:"_consistency_info,omitempty"`
}

// ConsistencyInfo annotates a report selected from multiple candidate runs.
type ConsistencyInfo struct {
	IndividualScores []float64 `json:"individual_scores"`
	MedianScore      float64   `json:"median_score"`
	ScoreVariance    float64   `json:"score_variance"`
	Runs             int       `json:"runs"`
	Reliable         bool      `json:"reliable"`
}

// Category returns the ratings list for the named category.
func (s *Scoring) Category(name string) []Rating {
	switch name {
	case "setup":
		return s.Setup
	case "attitude":
		return s.Attitude
	case "preparation":
		return s.Preparation
	case "curriculum":
		return s.Curriculum
	case "teaching":
		return s.Teaching
	}
	return nil
}

// HasRatings reports whether at least one category holds a rating entry.
func (s *Scoring) HasRatings() bool {
	for _, cat := range Categories {
		if len(s.Category(cat)) > 0 {
			return true
		}
	}
	return false
}

// Normalize drops findings and flags that carry no evidence (neither a quote
// nor a timestamp reference). Returns the number of entries removed.
// Anti-hallucination rule: a claim the auditor cannot cite does not exist.
func (r *Report) Normalize() int {
	dropped := 0

	keepFindings := func(in []Finding) []Finding {
		out := in[:0]
		for _, f := range in {
			if f.Cite == "" && f.Timestamp == "" {
				dropped++
				continue
			}
			out = append(out, f)
		}
		return out
	}

	r.PositiveFeedback = keepFindings(r.PositiveFeedback)
	r.AreasForImprovement = keepFindings(r.AreasForImprovement)

	flags := r.Flags[:0]
	for _, f := range r.Flags {
		if f.Cite == "" && f.Timestamp == "" {
			dropped++
			continue
		}
		flags = append(flags, f)
	}
	r.Flags = flags

	return dropped
}

// Marshal renders the report as indented JSON.
func (r *Report) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}
