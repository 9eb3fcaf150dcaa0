// Package pipeline orchestrates a full session audit: media preparation,
// evidence upload, multi-pass analysis, candidate selection, and report
// emission.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/ischool-ai/session-auditor/internal/archive"
	"github.com/ischool-ai/session-auditor/internal/config"
	"github.com/ischool-ai/session-auditor/internal/consistency"
	"github.com/ischool-ai/session-auditor/internal/dashboard"
	"github.com/ischool-ai/session-auditor/internal/gemini"
	"github.com/ischool-ai/session-auditor/internal/report"
	"github.com/ischool-ai/session-auditor/internal/score"
)

// Runner executes audits. Client may be nil only in tests that stop short of
// the upload stage.
type Runner struct {
	Config *config.Config
	Client *genai.Client

	// Uploader overrides the Files API upload stage. Nil means the real one.
	Uploader Uploader

	// Store receives the final score of every run for cross-run consistency
	// tracking. Optional.
	Store *consistency.Store
}

// RunOptions names the inputs and outputs of one audit.
type RunOptions struct {
	VideoPath      string
	TranscriptPath string

	// ReportPath overrides the default <video dir>/<session>_audit.json.
	ReportPath string
}

// RunOutcome summarizes a finished audit for the CLI layer.
type RunOutcome struct {
	SessionID     string
	RunID         string
	Report        *report.Report
	ReportPath    string
	DashboardPath string

	RerunTriggered bool
	AuditFellBack  bool
	SelectionRule  string

	Usage   gemini.Usage
	CostUSD float64

	// History holds the cross-run score statistics after recording this run.
	History consistency.Stats
}

// SessionID derives the stable session identifier from the recording path.
func SessionID(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run performs one complete audit of a session recording.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunOutcome, error) {
	cfg := r.Config
	sessionID := SessionID(opts.VideoPath)
	runID := uuid.NewString()

	log.Info().
		Str("session", sessionID).
		Str("run_id", runID).
		Str("model", cfg.Model.Name).
		Int("consistency_runs", cfg.Policy.ConsistencyRuns).
		Msg("Starting session audit")

	if err := cfg.EnsureStateDir(); err != nil {
		return nil, err
	}

	// One audit per session at a time. Concurrent runs would race on the
	// frame cache and the report file.
	sessionLock := flock.New(filepath.Join(cfg.StateDir, sessionID+".lock"))
	locked, err := sessionLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("session %s is already being audited", sessionID)
	}
	defer sessionLock.Unlock()

	prepared, err := Prepare(ctx, cfg, opts.VideoPath, opts.TranscriptPath)
	if err != nil {
		return nil, err
	}

	up := r.Uploader
	if up == nil {
		up = &geminiUploader{client: r.Client, opts: gemini.UploadOptions{
			Workers:         cfg.Upload.Workers,
			PollInterval:    pollInterval(cfg),
			MaxPollAttempts: cfg.Upload.MaxPollAttempts,
		}}
	}

	uploads, err := uploadEvidence(ctx, up, prepared.Bundle, cfg.Extraction.MinFrameCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	defer up.Discard(ctx, uploads)

	if err := up.AwaitReady(ctx, uploads); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}

	caller := &geminiCaller{client: r.Client, model: cfg.Model, uploads: uploads}
	outcome := &RunOutcome{SessionID: sessionID, RunID: runID}

	runs := cfg.Policy.ConsistencyRuns
	if runs < 1 {
		runs = 1
	}

	candidates := make([]*report.Report, 0, runs)
	var responses []archive.PassResponse
	var lastResult *AnalysisResult

	for i := 1; i <= runs; i++ {
		if runs > 1 {
			log.Info().Int("run", i).Int("of", runs).Msg("Consistency run")
		}
		result, err := Analyze(ctx, caller, cfg, prepared.StartTime)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, result.Report)
		responses = append(responses, result.Responses...)
		outcome.Usage.Add(result.Usage)
		lastResult = result
	}

	var final *report.Report
	if runs > 1 {
		final = score.SelectNearestMedian(candidates, cfg.Policy.VarianceThreshold)
		info := final.Scoring.Consistency
		if !info.Reliable {
			log.Warn().
				Floats64("scores", info.IndividualScores).
				Float64("variance", info.ScoreVariance).
				Float64("median", info.MedianScore).
				Msg("Scores varied across runs, reporting the median")
		}
	} else {
		final = candidates[0]
		outcome.RerunTriggered = lastResult.RerunTriggered
		outcome.AuditFellBack = lastResult.AuditFellBack
		outcome.SelectionRule = lastResult.Selection.Rule
	}

	final.Meta.RunID = runID
	if prepared.Bundle.Degraded {
		final.Meta.Degraded = prepared.Bundle.DegradedReason
	}

	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = filepath.Join(filepath.Dir(opts.VideoPath), sessionID+"_audit.json")
	}
	dashboardPath := strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".html"

	if err := dashboard.WriteReportJSON(reportPath, final); err != nil {
		return nil, err
	}
	if err := archive.Write(archive.PathFor(reportPath), responses); err != nil {
		log.Warn().Err(err).Msg("Failed to write response archive")
	}
	if err := dashboard.WriteHTML(dashboardPath, final, prepared.Frames.Paths); err != nil {
		log.Warn().Err(err).Msg("Failed to write dashboard")
	}

	if r.Store != nil {
		run := consistency.Run{
			SessionID:     sessionID,
			RunID:         runID,
			Model:         cfg.Model.Name,
			FinalScore:    final.Scoring.FinalWeightedScore,
			Seed:          cfg.Model.Seed,
			Temperature:   cfg.Model.Temperature,
			ThinkingLevel: cfg.Model.ThinkingLevel,
		}
		if err := r.Store.Record(ctx, run); err != nil {
			log.Warn().Err(err).Msg("Failed to record score history")
		} else if stats, err := r.Store.StatsFor(ctx, sessionID, cfg.Model.Name, cfg.Policy.VarianceThreshold); err == nil {
			outcome.History = stats
			if !stats.Reliable {
				log.Warn().
					Int("runs", stats.Count).
					Float64("variance", stats.Variance).
					Float64("median", stats.Median).
					Msg("Score history for this session is unstable, prefer the median")
			}
		}
	}

	outcome.Report = final
	outcome.ReportPath = reportPath
	outcome.DashboardPath = dashboardPath
	outcome.CostUSD = outcome.Usage.Cost(cfg.Costs)

	log.Info().
		Float64("final_score", final.Scoring.FinalWeightedScore).
		Str("report", reportPath).
		Int32("input_tokens", outcome.Usage.InputTokens).
		Int32("output_tokens", outcome.Usage.OutputTokens).
		Float64("cost_usd", outcome.CostUSD).
		Msg("Session audit finished")

	return outcome, nil
}

func pollInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Upload.PollIntervalSeconds) * time.Second
}

// geminiCaller is the production ModelCaller bound to uploaded evidence.
type geminiCaller struct {
	client  *genai.Client
	model   config.Model
	uploads []gemini.UploadedArtifact
}

func (c *geminiCaller) Call(ctx context.Context, systemInstruction, userPrompt string) (string, gemini.Usage, error) {
	return gemini.GenerateReport(ctx, c.client, c.model, systemInstruction, userPrompt, c.uploads)
}
