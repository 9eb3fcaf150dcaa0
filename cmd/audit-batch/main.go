// Command audit-batch audits every session recording found in a folder.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ischool-ai/session-auditor/internal/auth"
	"github.com/ischool-ai/session-auditor/internal/config"
	"github.com/ischool-ai/session-auditor/internal/consistency"
	"github.com/ischool-ai/session-auditor/internal/gemini"
	"github.com/ischool-ai/session-auditor/internal/logging"
	"github.com/ischool-ai/session-auditor/internal/pipeline"
)

// CLI flags
var (
	directoryFlag string
	configFlag    string
	forceFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "audit-batch",
	Short: "Audit every session recording in a directory",
	Long: `Audit Batch scans a directory for session recordings (mp4), pairs each
with its transcript (same base name, .txt or .vtt), and audits them one by
one. Sessions that already have a report are skipped unless --force is given.

Examples:
  audit-batch --directory /recordings/2026-08
  audit-batch -d ./sessions --force`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&directoryFlag, "directory", "d", "", "Directory containing session recordings")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Config file path")
	rootCmd.Flags().BoolVar(&forceFlag, "force", false, "Re-audit sessions that already have a report")
	rootCmd.MarkFlagRequired("directory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is one recording discovered in the batch directory.
type session struct {
	video      string
	transcript string
	reportPath string
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	sessions, skipped, err := discoverSessions(directoryFlag, forceFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to scan directory")
	}
	if len(sessions) == 0 {
		log.Info().Int("skipped", skipped).Msg("Nothing to audit")
		return
	}

	log.Info().
		Int("sessions", len(sessions)).
		Int("skipped", skipped).
		Msg("Batch audit starting")

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to retrieve API key")
	}
	ctx := context.Background()
	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	if err := auth.ValidateAPIKey(ctx, client, cfg.Model.Name); err != nil {
		log.Fatal().Err(err).Msg("API key validation failed")
	}

	if err := cfg.EnsureStateDir(); err != nil {
		log.Fatal().Err(err).Msg("failed to create state directory")
	}
	store, err := consistency.Open(cfg.StateDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open score history store")
	}
	defer store.Close()

	runner := &pipeline.Runner{Config: cfg, Client: client, Store: store}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Session", "Score", "Report", "Status"})

	failures := 0
	var totalUsage gemini.Usage
	for _, s := range sessions {
		outcome, err := runner.Run(ctx, pipeline.RunOptions{
			VideoPath:      s.video,
			TranscriptPath: s.transcript,
			ReportPath:     s.reportPath,
		})
		if err != nil {
			failures++
			log.Error().Err(err).Str("video", s.video).Msg("Session audit failed, continuing batch")
			tw.AppendRow(table.Row{pipeline.SessionID(s.video), "-", "-", "FAILED"})
			continue
		}
		totalUsage.Add(outcome.Usage)
		tw.AppendRow(table.Row{
			outcome.SessionID,
			fmt.Sprintf("%.1f", outcome.Report.Scoring.FinalWeightedScore),
			outcome.ReportPath,
			"ok",
		})
	}

	fmt.Println(tw.Render())
	fmt.Printf("Tokens: %d in / %d out (est. $%.4f)\n",
		totalUsage.InputTokens, totalUsage.OutputTokens, totalUsage.Cost(cfg.Costs))

	if failures > 0 {
		log.Error().Int("failures", failures).Int("total", len(sessions)).Msg("Batch finished with failures")
		os.Exit(1)
	}
	log.Info().Int("sessions", len(sessions)).Msg("Batch finished")
}

// discoverSessions finds recordings and their transcripts. Report and
// dashboard artifacts living alongside the recordings are never treated as
// inputs.
func discoverSessions(dir string, force bool) ([]session, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var sessions []session
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			continue
		}

		video := filepath.Join(dir, entry.Name())
		id := pipeline.SessionID(video)
		reportPath := filepath.Join(dir, id+"_audit.json")

		if !force {
			if _, err := os.Stat(reportPath); err == nil {
				log.Debug().Str("session", id).Msg("Report exists, skipping")
				skipped++
				continue
			}
		}

		sessions = append(sessions, session{
			video:      video,
			transcript: findTranscript(dir, id),
			reportPath: reportPath,
		})
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].video < sessions[j].video })
	return sessions, skipped, nil
}

// findTranscript locates the transcript that shares the recording's base
// name. Timestamped text is preferred over raw VTT.
func findTranscript(dir, sessionID string) string {
	for _, ext := range []string{".txt", ".vtt"} {
		candidate := filepath.Join(dir, sessionID+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	log.Warn().Str("session", sessionID).Msg("No transcript found, auditing without one")
	return ""
}
