package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ischool-ai/session-auditor/internal/archive"
	"github.com/ischool-ai/session-auditor/internal/config"
	"github.com/ischool-ai/session-auditor/internal/gemini"
	"github.com/ischool-ai/session-auditor/internal/prompt"
	"github.com/ischool-ai/session-auditor/internal/report"
	"github.com/ischool-ai/session-auditor/internal/score"
)

// ErrModelResponse marks a run that failed because the model never produced
// a usable report, even after retries.
var ErrModelResponse = errors.New("model response rejected")

// ModelCaller issues one generation call against the already-uploaded
// evidence. The production implementation wraps the Gemini client; tests
// substitute fakes.
type ModelCaller interface {
	Call(ctx context.Context, systemInstruction, userPrompt string) (string, gemini.Usage, error)
}

// AnalysisResult is the outcome of one full analysis (draft, optional strict
// rerun, self-audit, conservative selection).
type AnalysisResult struct {
	Report *report.Report

	Selection      score.Selection
	RerunTriggered bool
	RerunReason    string

	// AuditFellBack is true when the self-audit pass never validated and the
	// draft was kept.
	AuditFellBack bool

	Responses []archive.PassResponse
	Usage     gemini.Usage
}

// analyzer drives the multi-pass analysis for one session.
type analyzer struct {
	caller    ModelCaller
	cfg       *config.Config
	startTime string

	responses []archive.PassResponse
	usage     gemini.Usage
}

// Analyze runs the full multi-pass protocol: initial draft, quality-gated
// strict rerun, self-audit, then conservative selection between draft and
// audited candidate.
func Analyze(ctx context.Context, caller ModelCaller, cfg *config.Config, startTime string) (*AnalysisResult, error) {
	a := &analyzer{caller: caller, cfg: cfg, startTime: startTime}

	draft, err := a.runPass(ctx, "initial", prompt.RenderInitial(startTime))
	if err != nil {
		return nil, err
	}
	a.settle(draft)

	result := &AnalysisResult{}

	if rerun, reason := score.ShouldRerun(draft, cfg.Policy.RerunScoreThreshold); rerun {
		log.Warn().
			Float64("score", draft.Scoring.FinalWeightedScore).
			Str("reason", reason).
			Msg("Quality gate tripped, rerunning with strict prompt")

		result.RerunTriggered = true
		result.RerunReason = reason

		strict, err := a.runPass(ctx, "rerun-strict", prompt.RenderRerunStrict(startTime))
		if err != nil {
			return nil, err
		}
		a.settle(strict)
		draft = strict
	}

	audited, err := a.selfAudit(ctx, draft)
	if err != nil {
		return nil, err
	}

	if audited == nil {
		result.AuditFellBack = true
		result.Report = draft
		result.Selection = score.Selection{
			Chosen:      draft,
			ChosenScore: draft.Scoring.FinalWeightedScore,
			Rule:        "draft kept: self-audit produced no valid report",
		}
	} else {
		a.settle(audited)
		result.Selection = score.SelectConservative(draft, audited)
		result.Report = result.Selection.Chosen
	}

	log.Info().
		Float64("final_score", result.Report.Scoring.FinalWeightedScore).
		Float64("rejected_score", result.Selection.RejectedScore).
		Str("rule", result.Selection.Rule).
		Bool("rerun_triggered", result.RerunTriggered).
		Msg("Analysis complete")

	result.Responses = a.responses
	result.Usage = a.usage
	return result, nil
}

// runPass issues one generation call and validates the response, retrying
// with a reinforced prompt when the response is rejected. The raw text of
// every attempt is captured for the response archive.
func (a *analyzer) runPass(ctx context.Context, pass, userPrompt string) (*report.Report, error) {
	attempts := a.cfg.Policy.MaxResponseRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		p := userPrompt
		if attempt > 1 {
			p += prompt.ReinforcementSuffix
		}

		raw, usage, err := a.caller.Call(ctx, prompt.AuditorSystemInstruction, p)
		a.usage.Add(usage)
		a.responses = append(a.responses, archive.PassResponse{
			Pass:       pass,
			Model:      a.cfg.Model.Name,
			Attempt:    attempt,
			Raw:        raw,
			CapturedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("%s pass: %w", pass, err)
		}

		parsed, valErr := report.Validate(raw)
		if valErr == nil {
			log.Debug().Str("pass", pass).Int("attempt", attempt).Msg("Response accepted")
			return parsed, nil
		}

		lastErr = valErr
		log.Warn().
			Str("pass", pass).
			Int("attempt", attempt).
			Str("state", string(valErr.State)).
			Str("reason", string(valErr.Reason)).
			Msg("Response rejected")
	}

	return nil, fmt.Errorf("%w: %s pass failed after %d attempts: %v", ErrModelResponse, pass, attempts, lastErr)
}

// selfAudit runs the verification pass over the draft. Unlike the other
// passes, a self-audit that never validates is not fatal: the draft stands.
func (a *analyzer) selfAudit(ctx context.Context, draft *report.Report) (*report.Report, error) {
	draftJSON, err := draft.Marshal()
	if err != nil {
		return nil, err
	}

	audited, passErr := a.runPass(ctx, "self-audit", prompt.RenderSelfAudit(a.startTime, string(draftJSON)))
	if passErr != nil {
		if errors.Is(passErr, ErrModelResponse) {
			log.Warn().Err(passErr).Msg("Self-audit never validated, keeping draft")
			return nil, nil
		}
		return nil, passErr
	}
	return audited, nil
}

// settle normalizes a candidate and recomputes its score locally. Model
// arithmetic is never trusted.
func (a *analyzer) settle(r *report.Report) {
	if dropped := r.Normalize(); dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("Removed findings without cited evidence")
	}
	score.Recompute(r)
}
