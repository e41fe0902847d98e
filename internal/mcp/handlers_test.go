package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fulfillment-twin/internal/calibration"
	"fulfillment-twin/internal/config"
	"fulfillment-twin/internal/forecast"
	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/scoring"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.AppConfig{
		CacheDir:         t.TempDir(),
		Engine:           simulation.EngineConfig{DefaultSamples: 4000, Workers: 2},
		Seed:             42,
		SLAThresholdDays: 30,
		Tiers:            risk.DefaultTiers,
		Scoring:          scoring.CompareOptions{Tolerance: 1, VarianceThreshold: 25},
		FitMethod:        stage.MaximumLikelihood,
	}
	s, err := NewServer(cfg, config.DefaultScenario(), "test")
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

// writeHistory writes n synthetic orders drawn from the default scenario.
func writeHistory(t *testing.T, n int) string {
	t.Helper()
	specs, err := config.DefaultScenario().Specs()
	if err != nil {
		t.Fatal(err)
	}
	cols := make([][]float64, len(specs))
	for i, s := range specs {
		if cols[i], err = simulation.SampleSeeded(s, n, uint64(100+i)); err != nil {
			t.Fatal(err)
		}
	}

	var b strings.Builder
	b.WriteString("order_id,purchased_at,category,region,processing,warehousing,shipping,actual_total,order_value\n")
	for j := 0; j < n; j++ {
		category := "toys"
		if j%2 == 0 {
			category = "books"
		}
		total := cols[0][j] + cols[1][j] + cols[2][j]
		day := 1 + j%28
		month := 1 + (j/28)%12
		fmt.Fprintf(&b, "o%d,2024-%02d-%02dT%02d:00:00Z,%s,SP,%g,%g,%g,%g,100\n", j, month, day, j%24, category, cols[0][j], cols[1][j], cols[2][j], total)
	}
	path := filepath.Join(t.TempDir(), "history.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleSimulate_DefaultScenario(t *testing.T) {
	s := newTestServer(t)
	out, err := s.handleSimulate(context.Background(), SimulateInput{SurvivalPoints: 10, HistogramBins: 12, Charts: true})
	if err != nil {
		t.Fatalf("handleSimulate failed: %v", err)
	}
	resp := out.(Response)
	a := resp.Data.(*forecast.Assessment)

	if a.Result.N != 4000 || a.Result.Seed != 42 {
		t.Errorf("Expected engine defaults, got N=%d seed=%d", a.Result.N, a.Result.Seed)
	}
	if a.Classification.SLAThreshold != 30 {
		t.Errorf("Expected the configured SLA, got %v", a.Classification.SLAThreshold)
	}
	if len(a.Survival) != 10 || len(resp.Guidance) == 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Charts) != 3 || !strings.Contains(resp.Charts[0], "xychart-beta") {
		t.Errorf("Expected percentile, survival and histogram charts, got %d", len(resp.Charts))
	}
	if _, err := formatResult(resp); err != nil {
		t.Errorf("Expected the response to encode, got %v", err)
	}
}

func TestHandleSimulate_CustomStages(t *testing.T) {
	s := newTestServer(t)
	seed := uint64(9)
	in := SimulateInput{
		Stages: []StageInput{
			{Stage: "picking", Family: "exponential", Params: stage.Params{Lambda: 1}},
			{Stage: "packing", Family: "Gamma", Params: stage.Params{Alpha: 2, Beta: 0.5}},
		},
		Samples: 2000,
		Seed:    &seed,
		SLADays: 5,
	}
	out, err := s.handleSimulate(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	a := out.(Response).Data.(*forecast.Assessment)
	if a.Naive != 2 || a.Result.Seed != 9 || len(a.Result.Stages) != 2 {
		t.Errorf("unexpected assessment: naive=%v seed=%d stages=%d", a.Naive, a.Result.Seed, len(a.Result.Stages))
	}

	bad := in
	bad.Stages = []StageInput{{Stage: "x", Family: "lognormal", Params: stage.Params{Mu: 1, Sigma: 0}}}
	if _, err := s.handleSimulate(context.Background(), bad); err == nil {
		t.Error("Expected an error for sigma = 0")
	}
	bad = in
	bad.Percentiles = []float64{1.5}
	if _, err := s.handleSimulate(context.Background(), bad); err == nil {
		t.Error("Expected an error for a percentile above 1")
	}
}

func TestHandleClassify(t *testing.T) {
	s := newTestServer(t)
	out, err := s.handleClassify(context.Background(), ClassifyInput{SLADays: []float64{5, 30, 200}})
	if err != nil {
		t.Fatal(err)
	}
	data := out.(Response).Data.(map[string]any)
	cls := data["classifications"].([]risk.Classification)
	if len(cls) != 3 {
		t.Fatalf("Expected 3 classifications, got %d", len(cls))
	}
	if cls[0].Tier != risk.TierHigh || cls[2].Tier != risk.TierLow {
		t.Errorf("Expected high risk at 5 days and low at 200, got %s / %s", cls[0].Tier, cls[2].Tier)
	}
	if cls[0].Exceedance < cls[1].Exceedance || cls[1].Exceedance < cls[2].Exceedance {
		t.Errorf("Expected exceedance to fall with the SLA: %+v", cls)
	}

	if _, err := s.handleClassify(context.Background(), ClassifyInput{}); err == nil {
		t.Error("Expected an error without SLA thresholds")
	}
}

func TestHandleImportFitCompare(t *testing.T) {
	s := newTestServer(t)
	path := writeHistory(t, 1500)

	out, err := s.handleImport(context.Background(), ImportInput{CSVPath: path})
	if err != nil {
		t.Fatalf("handleImport failed: %v", err)
	}
	data := out.(Response).Data.(map[string]any)
	if data["source_id"] != "history" || data["imported"] != 1500 {
		t.Errorf("unexpected import result: %v", data)
	}
	if _, err := os.Stat(filepath.Join(s.cfg.CacheDir, "history.jsonl")); err != nil {
		t.Errorf("Expected the cache to be written: %v", err)
	}

	out, err = s.handleFit(context.Background(), FitInput{SourceID: "history", Cohort: "category"})
	if err != nil {
		t.Fatalf("handleFit failed: %v", err)
	}
	fits := out.(Response).Data.([]CohortFit)
	if len(fits) != 2 || fits[0].Cohort != "books" || fits[1].Cohort != "toys" {
		t.Fatalf("unexpected cohorts: %+v", fits)
	}
	var processing stage.Spec
	for _, spec := range fits[0].Calibration.Specs {
		if spec.Name() == stage.Processing {
			processing = spec
		}
	}
	if processing.Family() != stage.FamilyLogNormal || processing.Mu() < 2.3 || processing.Mu() > 2.7 {
		t.Errorf("Expected processing mu near 2.5, got %v", processing)
	}

	out, err = s.handleFit(context.Background(), FitInput{SourceID: "history", Charts: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(out.(Response).Charts); got != 3 {
		t.Errorf("Expected an evolution chart per stage, got %d", got)
	}

	out, err = s.handleCompare(context.Background(), CompareInput{SourceID: "history", Charts: true})
	if err != nil {
		t.Fatalf("handleCompare failed: %v", err)
	}
	if len(out.(Response).Charts) != 1 {
		t.Error("Expected the comparison chart")
	}
	bt := out.(Response).Data.(scoring.BacktestResult)
	if bt.TestSize != 300 || bt.TrainSize != 1200 {
		t.Errorf("Expected a 1200/300 split, got %d/%d", bt.TrainSize, bt.TestSize)
	}

	if _, err := s.handleFit(context.Background(), FitInput{SourceID: "nothing"}); err == nil {
		t.Error("Expected an error for an unknown source")
	}
	if _, err := s.handleFit(context.Background(), FitInput{SourceID: "history", Method: "bayes"}); err == nil {
		t.Error("Expected an error for an unknown fit method")
	}
}

func TestHandleFit_FallsBackToScenario(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "thin.csv")
	csv := "order_id,processing,warehousing,shipping\na,3,1,\nb,4,2,\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := s.handleFit(context.Background(), FitInput{CSVPath: path})
	if err != nil {
		t.Fatal(err)
	}
	resp := out.(Response)
	fits := resp.Data.([]CohortFit)
	cal := fits[0].Calibration
	if len(cal.FallbackStages) != 1 || cal.FallbackStages[0] != stage.Shipping {
		t.Errorf("Expected shipping to fall back, got %v", cal.FallbackStages)
	}
	shipping := calibration.SpecsByName(cal.Specs)[stage.Shipping]
	if shipping.Alpha() != 3 || shipping.Beta() != 1.5 {
		t.Errorf("Expected the scenario shipping spec, got %v", shipping)
	}
	if len(resp.Warnings) == 0 {
		t.Error("Expected a fallback warning")
	}
}

func TestHandleFitCompare_PurchaseWindow(t *testing.T) {
	s := newTestServer(t)
	path := writeHistory(t, 1500)
	if _, err := s.handleImport(context.Background(), ImportInput{CSVPath: path}); err != nil {
		t.Fatal(err)
	}

	// January rows: 5 blocks of 28 days.
	out, err := s.handleFit(context.Background(), FitInput{SourceID: "history", From: "2024-01-01", To: "2024-01-31"})
	if err != nil {
		t.Fatalf("handleFit failed: %v", err)
	}
	fits := out.(Response).Data.([]CohortFit)
	if len(fits) != 1 || fits[0].Orders != 140 {
		t.Errorf("Expected 140 January orders, got %+v", fits)
	}

	out, err = s.handleCompare(context.Background(), CompareInput{SourceID: "history", From: "2024-01-01", To: "2024-01-31"})
	if err != nil {
		t.Fatalf("handleCompare failed: %v", err)
	}
	bt := out.(Response).Data.(scoring.BacktestResult)
	if bt.TrainSize != 112 || bt.TestSize != 28 {
		t.Errorf("Expected a 112/28 split, got %d/%d", bt.TrainSize, bt.TestSize)
	}

	tests := []struct {
		name     string
		from, to string
	}{
		{"empty window", "2023-01-01", "2023-12-31"},
		{"invalid from", "yesterday", ""},
		{"reversed", "2024-03-01", "2024-02-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.handleFit(context.Background(), FitInput{SourceID: "history", From: tt.from, To: tt.to}); err == nil {
				t.Errorf("Expected an error for from=%q to=%q", tt.from, tt.to)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"open", "", "", time.Time{}, time.Time{}},
		{"date only end covers the day", "2024-01-01", "2024-01-31",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)},
		{"timestamp end is exact", "", "2024-01-31T12:00:00Z",
			time.Time{}, time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseWindow(tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("Expected [%v, %v], got [%v, %v]", tt.wantStart, tt.wantEnd, start, end)
			}
		})
	}
}

func TestSourceFromPath(t *testing.T) {
	tests := map[string]string{
		"/data/orders 2024.csv": "orders_2024",
		"history.csv":           "history",
		"a/b/olist-v2.jsonl":    "olist-v2",
	}
	for in, want := range tests {
		if got := sourceFromPath(in); got != want {
			t.Errorf("sourceFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
