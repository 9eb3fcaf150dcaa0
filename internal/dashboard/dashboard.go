// Package dashboard emits the run outputs: the machine-readable JSON report
// and a self-contained HTML summary with inlined frame previews.
package dashboard

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ischool-ai/session-auditor/internal/report"
)

//go:embed dashboard.html.tmpl
var dashboardTemplate string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardTemplate))

// maxPreviewFrames bounds how many frame previews are inlined in the HTML.
const maxPreviewFrames = 12

// WriteReportJSON writes the report atomically next to its final path. The
// temp-and-rename dance means an aborted run never clobbers an existing
// report with a partial one.
func WriteReportJSON(path string, r *report.Report) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("Report written")
	return nil
}

// categoryView is one scoring category prepared for the template.
type categoryView struct {
	Label   string
	Average float64
	Percent int
	Ratings []report.Rating
}

// pageData is the root template context.
type pageData struct {
	Report      *report.Report
	GeneratedAt string
	ScoreClass  string
	Categories  []categoryView
	Thumbs      []Thumb
}

// WriteHTML renders the dashboard for a finished report. framePaths are the
// extracted frames to preview; pass nil to omit the strip.
func WriteHTML(path string, r *report.Report, framePaths []string) error {
	data := pageData{
		Report:      r,
		GeneratedAt: time.Now().Format("2006-01-02 15:04 MST"),
		ScoreClass:  scoreClass(r.Scoring.FinalWeightedScore),
		Thumbs:      Thumbnails(framePaths, maxPreviewFrames),
	}

	for _, name := range report.Categories {
		avg := r.Scoring.Averages[name]
		data.Categories = append(data.Categories, categoryView{
			Label:   strings.ToUpper(name[:1]) + name[1:],
			Average: avg,
			Percent: int(avg / 5 * 100),
			Ratings: r.Scoring.Category(name),
		})
	}

	var buf strings.Builder
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	if err := writeAtomic(path, []byte(buf.String())); err != nil {
		return fmt.Errorf("write dashboard %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Dashboard written")
	return nil
}

// scoreClass maps a final score onto the dashboard's color bands.
func scoreClass(score float64) string {
	switch {
	case score >= 85:
		return "good"
	case score >= 68:
		return "warn"
	default:
		return "bad"
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
