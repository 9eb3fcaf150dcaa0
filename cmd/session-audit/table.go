package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ischool-ai/session-auditor/internal/pipeline"
	"github.com/ischool-ai/session-auditor/internal/report"
	"github.com/ischool-ai/session-auditor/internal/score"
)

// summaryTable renders the per-category breakdown and final score for the
// terminal.
func summaryTable(outcome *pipeline.RunOutcome) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Category", "Weight", "Average", "Contribution"})

	scoring := outcome.Report.Scoring
	for _, cat := range report.Categories {
		avg := scoring.Averages[cat]
		weight := score.Weights[cat]
		tw.AppendRow(table.Row{
			cat,
			fmt.Sprintf("%.0f%%", weight*100),
			fmt.Sprintf("%.1f / 5", avg),
			fmt.Sprintf("%.1f", avg/5*100*weight),
		})
	}

	tw.AppendFooter(table.Row{"Final score", "", "", fmt.Sprintf("%.1f", scoring.FinalWeightedScore)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	out := tw.Render()

	if info := scoring.Consistency; info != nil {
		out += fmt.Sprintf("\nConsistency: %d runs, median %.1f, spread %.1f", info.Runs, info.MedianScore, info.ScoreVariance)
		if !info.Reliable {
			out += " (unstable)"
		}
	}
	if outcome.History.Count > 1 {
		out += fmt.Sprintf("\nHistory: %d audits of this session, median %.1f, spread %.1f",
			outcome.History.Count, outcome.History.Median, outcome.History.Variance)
	}
	out += fmt.Sprintf("\nTokens: %d in / %d out (est. $%.4f)",
		outcome.Usage.InputTokens, outcome.Usage.OutputTokens, outcome.CostUSD)

	return out
}
