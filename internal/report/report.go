// Package report renders assessments and backtests as a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"fulfillment-twin/internal/forecast"
	"fulfillment-twin/internal/scoring"
	"fulfillment-twin/internal/stats"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// Page is the data rendered into the report template.
type Page struct {
	Title      string
	Generated  time.Time
	Assessment *forecast.Assessment
	Backtest   *scoring.BacktestResult
}

type bar struct {
	Label string
	Count int
	Pct   float64
}

type quantile struct {
	Label string
	Value float64
}

var funcs = template.FuncMap{
	"days": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"pct":  func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
	"kept": func(exceedance float64) float64 { return 1 - exceedance },
	"bars": histogramBars,
	"quantiles": func(a *forecast.Assessment) []quantile {
		return sortedQuantiles(a)
	},
}

var page = template.Must(template.New("report").Funcs(funcs).Parse(pageTemplate))

// Render writes the HTML page to w.
func Render(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = "Delivery time report"
	}
	if p.Generated.IsZero() {
		p.Generated = time.Now()
	}
	return page.Execute(w, p)
}

// Write renders the page into dir and returns the file path. When open is true
// the file is opened in the default browser.
func Write(dir string, p Page, open bool) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, p); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	name := "report-" + time.Now().Format("20060102-150405") + ".html"
	if p.Assessment != nil && p.Assessment.Result != nil {
		name = "report-" + p.Assessment.Result.RunID.String() + ".html"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report written")

	if open {
		if err := browser.OpenFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to open report in browser")
		}
	}
	return path, nil
}

func histogramBars(a *forecast.Assessment) []bar {
	if a == nil || a.Histogram == nil {
		return nil
	}
	h := a.Histogram
	peak := 0
	for _, c := range h.Counts {
		peak = max(peak, c)
	}
	out := make([]bar, len(h.Counts))
	for i, c := range h.Counts {
		out[i] = bar{Label: fmt.Sprintf("%.1f-%.1f", h.Edges[i], h.Edges[i+1]), Count: c}
		if peak > 0 {
			out[i].Pct = float64(c) / float64(peak) * 100
		}
	}
	return out
}

func sortedQuantiles(a *forecast.Assessment) []quantile {
	if a == nil || a.Result == nil {
		return nil
	}
	qs := a.Result.Percentiles
	var out []quantile
	for _, q := range []float64{0.10, 0.50, 0.85, 0.90, 0.95, 0.99} {
		label := stats.PercentileLabel(q)
		if v, ok := qs[label]; ok {
			out = append(out, quantile{Label: label, Value: v})
		}
	}
	return out
}
