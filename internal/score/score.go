// Package score recomputes report scores deterministically from raw ratings
// and applies the rerun and candidate-selection policy. The model's own
// arithmetic is never trusted: every aggregate is derived locally.
package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/ischool-ai/session-auditor/internal/report"
)

// Weights are the fixed category weights of the final score formula. They sum
// to 1.0.
var Weights = map[string]float64{
	"setup":       0.25,
	"attitude":    0.20,
	"preparation": 0.15,
	"curriculum":  0.15,
	"teaching":    0.25,
}

// Recompute derives category averages and the final weighted score from the
// raw per-item ratings, overwriting whatever the model claimed. A category
// with no rated items averages 0 and contributes 0. Pure in its inputs:
// applying it twice yields the same result as applying it once.
func Recompute(r *report.Report) {
	averages := make(map[string]float64, len(report.Categories))
	total := 0.0

	for _, cat := range report.Categories {
		ratings := r.Scoring.Category(cat)
		avg := 0.0
		if len(ratings) > 0 {
			sum := 0.0
			for _, item := range ratings {
				sum += item.Rating
			}
			avg = sum / float64(len(ratings))
		}
		averages[cat] = round1(avg)
		total += (avg / 5) * 100 * Weights[cat]
	}

	r.Scoring.Averages = averages
	r.Scoring.FinalWeightedScore = round1(total)
}

// ShouldRerun is the quality gate: a recomputed final score below threshold,
// or any sub-category rated exactly zero, marks the analysis incomplete and
// triggers one deliberate rerun. This is not a transport retry.
func ShouldRerun(r *report.Report, threshold float64) (bool, string) {
	if r.Scoring.FinalWeightedScore < threshold {
		return true, fmt.Sprintf("score %.1f is below %.0f threshold", r.Scoring.FinalWeightedScore, threshold)
	}

	for _, cat := range report.Categories {
		for _, item := range r.Scoring.Category(cat) {
			if item.Rating == 0 {
				sub := item.Subcategory
				if sub == "" {
					sub = "Unknown"
				}
				return true, fmt.Sprintf("category %q subcategory %q has rating 0", cat, sub)
			}
		}
	}

	return false, "analysis meets quality threshold"
}

// Selection records which of two candidates was kept and why, for audit.
type Selection struct {
	Chosen        *report.Report
	ChosenScore   float64
	RejectedScore float64
	Rule          string
}

// SelectConservative compares a draft analysis against its correction pass
// and keeps the lower-scoring candidate. Deleting unsupported findings should
// raise a score and finding missed issues should lower it; taking the lower
// of the two never overstates session quality. Ties keep the audited
// candidate b.
func SelectConservative(a, b *report.Report) Selection {
	scoreA := a.Scoring.FinalWeightedScore
	scoreB := b.Scoring.FinalWeightedScore

	if scoreA < scoreB {
		return Selection{
			Chosen:        a,
			ChosenScore:   scoreA,
			RejectedScore: scoreB,
			Rule:          "keep-lower: initial draft scored below its audit",
		}
	}
	return Selection{
		Chosen:        b,
		ChosenScore:   scoreB,
		RejectedScore: scoreA,
		Rule:          "keep-lower: audited candidate scored at or below the draft",
	}
}

// Median returns the median of scores, 0 for an empty slice.
func Median(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Variance is the score spread, max minus min. More robust reporting than
// statistical variance for the small run counts involved here.
func Variance(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return max - min
}

// SelectNearestMedian picks, from multiple independent run candidates, the
// one whose score lies closest to the median, annotating it with the run
// statistics. The reported score becomes the median itself so an outlier run
// cannot dominate. varianceThreshold feeds the reliability flag.
func SelectNearestMedian(candidates []*report.Report, varianceThreshold float64) *report.Report {
	if len(candidates) == 0 {
		return nil
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Scoring.FinalWeightedScore
	}

	median := Median(scores)
	variance := Variance(scores)

	bestIdx := 0
	bestDiff := math.Abs(scores[0] - median)
	for i, s := range scores {
		if diff := math.Abs(s - median); diff < bestDiff {
			bestDiff = diff
			bestIdx = i
		}
	}

	chosen := candidates[bestIdx]
	chosen.Scoring.FinalWeightedScore = round1(median)
	chosen.Scoring.Consistency = &report.ConsistencyInfo{
		IndividualScores: scores,
		MedianScore:      round1(median),
		ScoreVariance:    round1(variance),
		Runs:             len(scores),
		Reliable:         variance <= varianceThreshold,
	}
	return chosen
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
