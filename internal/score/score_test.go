package score

import (
	"math"
	"strings"
	"testing"

	"github.com/ischool-ai/session-auditor/internal/report"
)

// uniform builds a report where every category holds one rating of the given
// value per category name.
func uniform(ratings map[string]float64) *report.Report {
	r := &report.Report{}
	for cat, val := range ratings {
		items := []report.Rating{{Subcategory: cat + " item", Rating: val}}
		switch cat {
		case "setup":
			r.Scoring.Setup = items
		case "attitude":
			r.Scoring.Attitude = items
		case "preparation":
			r.Scoring.Preparation = items
		case "curriculum":
			r.Scoring.Curriculum = items
		case "teaching":
			r.Scoring.Teaching = items
		}
	}
	return r
}

func TestRecomputeWeightedSum(t *testing.T) {
	// (4/5*100*.25)+(5/5*100*.20)+(3/5*100*.15)+(5/5*100*.15)+(4/5*100*.25)
	// = 20+20+9+15+20 = 84.0
	r := uniform(map[string]float64{
		"setup": 4, "attitude": 5, "preparation": 3, "curriculum": 5, "teaching": 4,
	})
	Recompute(r)

	if r.Scoring.FinalWeightedScore != 84.0 {
		t.Errorf("final score = %v, want 84.0", r.Scoring.FinalWeightedScore)
	}
	if r.Scoring.Averages["setup"] != 4.0 || r.Scoring.Averages["preparation"] != 3.0 {
		t.Errorf("averages = %v", r.Scoring.Averages)
	}
}

func TestRecomputeOverridesModelClaim(t *testing.T) {
	r := uniform(map[string]float64{"setup": 5, "attitude": 5, "preparation": 5, "curriculum": 5, "teaching": 5})
	r.Scoring.FinalWeightedScore = 12.3 // model lied
	r.Scoring.Averages = map[string]float64{"setup": 1}

	Recompute(r)
	if r.Scoring.FinalWeightedScore != 100.0 {
		t.Errorf("final score = %v, want 100.0", r.Scoring.FinalWeightedScore)
	}
}

func TestRecomputeEmptyCategoryContributesZero(t *testing.T) {
	r := uniform(map[string]float64{"setup": 5}) // all other categories empty
	Recompute(r)

	if r.Scoring.Averages["teaching"] != 0 {
		t.Errorf("empty category average = %v, want 0", r.Scoring.Averages["teaching"])
	}
	if r.Scoring.FinalWeightedScore != 25.0 {
		t.Errorf("final score = %v, want 25.0", r.Scoring.FinalWeightedScore)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	r := uniform(map[string]float64{"setup": 4, "attitude": 3, "preparation": 2, "curriculum": 5, "teaching": 4})
	Recompute(r)
	first := r.Scoring.FinalWeightedScore
	firstAvgs := map[string]float64{}
	for k, v := range r.Scoring.Averages {
		firstAvgs[k] = v
	}

	Recompute(r)
	if r.Scoring.FinalWeightedScore != first {
		t.Errorf("second recompute changed score: %v -> %v", first, r.Scoring.FinalWeightedScore)
	}
	for k, v := range r.Scoring.Averages {
		if firstAvgs[k] != v {
			t.Errorf("average %q changed: %v -> %v", k, firstAvgs[k], v)
		}
	}
}

func TestWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range Weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("weights sum = %v, want 1.0", sum)
	}
}

func TestShouldRerun(t *testing.T) {
	t.Run("below threshold", func(t *testing.T) {
		r := &report.Report{}
		r.Scoring.FinalWeightedScore = 65
		rerun, reason := ShouldRerun(r, 68)
		if !rerun {
			t.Error("score 65 did not trigger rerun")
		}
		if reason == "" {
			t.Error("empty rerun reason")
		}
	})

	t.Run("zero rating", func(t *testing.T) {
		r := uniform(map[string]float64{"setup": 4, "attitude": 4, "preparation": 4, "curriculum": 4, "teaching": 4})
		r.Scoring.Teaching = append(r.Scoring.Teaching, report.Rating{Subcategory: "Engagement", Rating: 0})
		Recompute(r)
		r.Scoring.FinalWeightedScore = 80 // above threshold, zero rating still triggers
		rerun, reason := ShouldRerun(r, 68)
		if !rerun {
			t.Error("zero rating did not trigger rerun")
		}
		if reason == "" || !strings.Contains(reason, "Engagement") {
			t.Errorf("reason %q does not name the zero subcategory", reason)
		}
	})

	t.Run("healthy report", func(t *testing.T) {
		r := uniform(map[string]float64{"setup": 4, "attitude": 4, "preparation": 4, "curriculum": 4, "teaching": 4})
		Recompute(r) // 80.0
		if rerun, _ := ShouldRerun(r, 68); rerun {
			t.Error("score 80 with no zero ratings triggered rerun")
		}
	})

	t.Run("boundary 72", func(t *testing.T) {
		r := &report.Report{}
		r.Scoring.FinalWeightedScore = 72
		if rerun, _ := ShouldRerun(r, 68); rerun {
			t.Error("score 72 triggered rerun")
		}
	})
}

func TestSelectConservative(t *testing.T) {
	a := &report.Report{}
	a.Scoring.FinalWeightedScore = 80
	b := &report.Report{}
	b.Scoring.FinalWeightedScore = 72

	sel := SelectConservative(a, b)
	if sel.Chosen != b {
		t.Error("keep-lower rule did not select the lower candidate")
	}
	if sel.ChosenScore != 72 || sel.RejectedScore != 80 {
		t.Errorf("recorded scores = %v/%v, want 72/80", sel.ChosenScore, sel.RejectedScore)
	}
	if sel.Rule == "" {
		t.Error("selection rule not recorded")
	}

	// Symmetric case: the draft is lower.
	sel = SelectConservative(b, a)
	if sel.Chosen != b || sel.ChosenScore != 72 {
		t.Errorf("selection = %v/%v, want draft at 72", sel.Chosen, sel.ChosenScore)
	}

	// Tie keeps the audited candidate.
	c := &report.Report{}
	c.Scoring.FinalWeightedScore = 72
	sel = SelectConservative(b, c)
	if sel.Chosen != c {
		t.Error("tie did not keep the audited candidate")
	}
}

func TestMedianAndVariance(t *testing.T) {
	scores := []float64{80, 83, 79}
	if m := Median(scores); m != 80 {
		t.Errorf("median = %v, want 80", m)
	}
	if v := Variance(scores); v != 4 {
		t.Errorf("variance = %v, want 4", v)
	}

	scores = append(scores, 90)
	if v := Variance(scores); v != 11 {
		t.Errorf("variance after outlier = %v, want 11", v)
	}
	if m := Median(scores); m != 81.5 {
		t.Errorf("even-count median = %v, want 81.5", m)
	}

	if Median(nil) != 0 || Variance(nil) != 0 {
		t.Error("empty score list not handled")
	}
	if Variance([]float64{75}) != 0 {
		t.Error("single score variance != 0")
	}
}

func TestSelectNearestMedian(t *testing.T) {
	mk := func(score float64) *report.Report {
		r := &report.Report{}
		r.Scoring.FinalWeightedScore = score
		return r
	}

	candidates := []*report.Report{mk(80), mk(83), mk(79)}
	chosen := SelectNearestMedian(candidates, 5.0)

	if chosen != candidates[0] {
		t.Error("did not choose the candidate closest to median 80")
	}
	info := chosen.Scoring.Consistency
	if info == nil {
		t.Fatal("consistency info not attached")
	}
	if info.MedianScore != 80 || info.ScoreVariance != 4 || !info.Reliable || info.Runs != 3 {
		t.Errorf("consistency info = %+v", info)
	}
	if chosen.Scoring.FinalWeightedScore != 80 {
		t.Errorf("reported score = %v, want median 80", chosen.Scoring.FinalWeightedScore)
	}

	unreliable := SelectNearestMedian([]*report.Report{mk(80), mk(91)}, 5.0)
	if unreliable.Scoring.Consistency.Reliable {
		t.Error("variance 11 marked reliable")
	}

	if SelectNearestMedian(nil, 5.0) != nil {
		t.Error("empty candidate list did not return nil")
	}
}
