// Command session-audit analyzes one tutoring session recording and emits a
// quality audit report (JSON plus an HTML dashboard).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ischool-ai/session-auditor/internal/auth"
	"github.com/ischool-ai/session-auditor/internal/config"
	"github.com/ischool-ai/session-auditor/internal/consistency"
	"github.com/ischool-ai/session-auditor/internal/gemini"
	"github.com/ischool-ai/session-auditor/internal/logging"
	"github.com/ischool-ai/session-auditor/internal/pipeline"
)

// Exit codes distinguish failure classes for batch wrappers.
const (
	exitResourceFailure = 2
	exitModelFailure    = 3
)

// CLI flags
var (
	inputFlag           string
	transcriptFlag      string
	outputReportFlag    string
	configFlag          string
	modelFlag           string
	seedFlag            int
	thinkingLevelFlag   string
	mediaResolutionFlag string
	maxOutputTokensFlag int
	consistencyRunsFlag int
	useSearchFlag       bool
	writeConfigFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "session-audit",
	Short: "AI quality audit for recorded tutoring sessions",
	Long: `Session Audit extracts frames, audio, and the transcript from a session
recording, uploads them as evidence, and asks Gemini to produce a structured
quality audit report with compliance flags and a weighted final score.

The score is always recomputed locally from the raw sub-category ratings, a
low-quality analysis is rerun with a stricter prompt, and every report is
verified by a second self-audit pass before the conservative candidate is kept.

Examples:
  session-audit --input session.mp4 --transcript session.txt
  session-audit -i session.mp4 -t session.vtt -o reports/audit.json
  session-audit -i session.mp4 -t session.txt --consistency-runs 3
  session-audit --write-config ~/.session-auditor/config.toml`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Session recording to audit (mp4)")
	rootCmd.Flags().StringVarP(&transcriptFlag, "transcript", "t", "", "Session transcript (timestamped txt or vtt)")
	rootCmd.Flags().StringVarP(&outputReportFlag, "output-report", "o", "", "Report path (default: <video dir>/<session>_audit.json)")
	rootCmd.Flags().StringVar(&configFlag, "config", defaultConfigPath(), "Config file path")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model override (e.g. gemini-3-pro-preview)")
	rootCmd.Flags().IntVar(&seedFlag, "seed", 0, "Sampling seed override")
	rootCmd.Flags().StringVar(&thinkingLevelFlag, "thinking-level", "", "Thinking level: minimal, low, high")
	rootCmd.Flags().StringVar(&mediaResolutionFlag, "media-resolution", "", "Media resolution: low, medium, high")
	rootCmd.Flags().IntVar(&maxOutputTokensFlag, "max-output-tokens", 0, "Response token cap (0 = model default)")
	rootCmd.Flags().IntVar(&consistencyRunsFlag, "consistency-runs", 0, "Independent analysis runs; the nearest-median report is kept")
	rootCmd.Flags().BoolVar(&useSearchFlag, "use-search", false, "Enable the Google Search tool during analysis")
	rootCmd.Flags().StringVar(&writeConfigFlag, "write-config", "", "Write an annotated sample config to this path and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if writeConfigFlag != "" {
		if err := config.WriteSample(writeConfigFlag); err != nil {
			log.Fatal().Err(err).Msg("failed to write sample config")
		}
		fmt.Println("Sample configuration written to", writeConfigFlag)
		return
	}

	if inputFlag == "" {
		log.Fatal().Msg("--input is required")
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	applyOverrides(cmd, cfg)

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
	outcome, err := runner.Run(ctx, pipeline.RunOptions{
		VideoPath:      inputFlag,
		TranscriptPath: transcriptFlag,
		ReportPath:     outputReportFlag,
	})
	if err != nil {
		log.Error().Err(err).Msg("audit failed")
		switch {
		case errors.Is(err, pipeline.ErrResource):
			os.Exit(exitResourceFailure)
		case errors.Is(err, pipeline.ErrModelResponse):
			os.Exit(exitModelFailure)
		default:
			os.Exit(1)
		}
	}

	fmt.Println(summaryTable(outcome))
	fmt.Println("Report:   ", outcome.ReportPath)
	fmt.Println("Dashboard:", outcome.DashboardPath)
}

// applyOverrides copies explicitly set flags over the loaded config. Unset
// flags leave config values alone.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("model") {
		cfg.Model.Name = modelFlag
	}
	if cmd.Flags().Changed("seed") {
		cfg.Model.Seed = seedFlag
	}
	if cmd.Flags().Changed("thinking-level") {
		cfg.Model.ThinkingLevel = thinkingLevelFlag
	}
	if cmd.Flags().Changed("media-resolution") {
		cfg.Model.MediaResolution = mediaResolutionFlag
	}
	if cmd.Flags().Changed("max-output-tokens") {
		cfg.Model.MaxOutputTokens = maxOutputTokensFlag
	}
	if cmd.Flags().Changed("consistency-runs") {
		cfg.Policy.ConsistencyRuns = consistencyRunsFlag
	}
	if cmd.Flags().Changed("use-search") {
		cfg.Model.UseSearch = useSearchFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration after flag overrides")
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return home + "/.session-auditor/config.toml"
}
