// Command report-compare measures AI audit scores against human QA scores.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ischool-ai/session-auditor/internal/logging"
	"github.com/ischool-ai/session-auditor/internal/report"
)

// CLI flags
var (
	reportsFlag string
	humanFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "report-compare",
	Short: "Compare AI audit scores with human QA scores",
	Long: `Report Compare reads the human QA scores from a CSV (columns:
session_id, score) and the AI reports from a directory of <session>_audit.json
files, then reports the per-session difference plus aggregate error metrics.

Examples:
  report-compare --reports /recordings/2026-08 --human qa_scores.csv`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&reportsFlag, "reports", "", "Directory holding <session>_audit.json reports")
	rootCmd.Flags().StringVar(&humanFlag, "human", "", "CSV of human scores (session_id, score)")
	rootCmd.MarkFlagRequired("reports")
	rootCmd.MarkFlagRequired("human")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	humanScores, err := loadHumanScores(humanFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load human scores")
	}

	aiScores, err := loadAIScores(reportsFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AI reports")
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Session", "Human", "AI", "Diff"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	var diffs []float64
	missing := 0
	for session, human := range humanScores {
		ai, ok := aiScores[session]
		if !ok {
			missing++
			tw.AppendRow(table.Row{session, fmt.Sprintf("%.1f", human), "-", "no report"})
			continue
		}
		diff := ai - human
		diffs = append(diffs, diff)
		tw.AppendRow(table.Row{
			session,
			fmt.Sprintf("%.1f", human),
			fmt.Sprintf("%.1f", ai),
			fmt.Sprintf("%+.1f", diff),
		})
	}
	tw.SortBy([]table.SortBy{{Number: 1, Mode: table.Asc}})

	fmt.Println(tw.Render())

	if len(diffs) == 0 {
		log.Warn().Int("missing", missing).Msg("No sessions could be compared")
		os.Exit(1)
	}

	var sumAbs, sumSigned float64
	for _, d := range diffs {
		sumAbs += math.Abs(d)
		sumSigned += d
	}
	fmt.Printf("Compared %d sessions (%d without reports)\n", len(diffs), missing)
	fmt.Printf("Mean absolute error: %.2f\n", sumAbs/float64(len(diffs)))
	fmt.Printf("Bias (AI - human):   %+.2f\n", sumSigned/float64(len(diffs)))
}

// loadHumanScores reads the QA CSV. A header row is detected and skipped.
func loadHumanScores(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	scores := make(map[string]float64)
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s line %d: want session_id, score", path, i+1)
		}
		session := strings.TrimSpace(rec[0])
		value, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("%s line %d: bad score %q", path, i+1, rec[1])
		}
		scores[session] = value
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%s holds no scores", path)
	}
	return scores, nil
}

// loadAIScores collects final scores from every audit report in dir.
func loadAIScores(dir string) (map[string]float64, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_audit.json"))
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var r report.Report
		if err := json.Unmarshal(data, &r); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable report")
			continue
		}
		session := strings.TrimSuffix(filepath.Base(path), "_audit.json")
		scores[session] = r.Scoring.FinalWeightedScore
	}
	return scores, nil
}
