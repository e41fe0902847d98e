package scoring_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"fulfillment-twin/internal/baseline"
	"fulfillment-twin/internal/calibration"
	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/scoring"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"
)

func scenario(t *testing.T) []stage.Spec {
	t.Helper()
	p, err := stage.LogNormal(stage.Processing, 2.5, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	w, err := stage.Exponential(stage.Warehousing, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	s, err := stage.Gamma(stage.Shipping, 3.0, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	return []stage.Spec{p, w, s}
}

// groundTruth draws n independent orders from the specs with seeds unrelated to
// the engine's streams.
func groundTruth(t *testing.T, specs []stage.Spec, n int, seed uint64) ([][]float64, []float64) {
	t.Helper()
	perStage := make([][]float64, len(specs))
	totals := make([]float64, n)
	for i, s := range specs {
		xs, err := simulation.SampleSeeded(s, n, seed+uint64(i)*7919)
		if err != nil {
			t.Fatal(err)
		}
		perStage[i] = xs
		for j, x := range xs {
			totals[j] += x
		}
	}
	return perStage, totals
}

func TestNaiveLosesToSimulatedMedianOnSkewedTruth(t *testing.T) {
	specs := scenario(t)
	_, truth := groundTruth(t, specs, 2000, 1000)

	naiveTotal, err := baseline.Estimator{}.Estimate(baseline.FromSpecs(specs), baseline.Names(specs))
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Exp(2.82) + 2 + 4.5; math.Abs(naiveTotal-want) > 1e-9 {
		t.Fatalf("Expected naive total %v, got %v", want, naiveTotal)
	}

	res, err := simulation.NewEngine(simulation.EngineConfig{}).Simulate(context.Background(), simulation.Request{Stages: specs, Samples: 10000, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}

	naive := make([]float64, len(truth))
	stoch := make([]float64, len(truth))
	for i := range truth {
		naive[i] = naiveTotal
		stoch[i] = res.P50
	}

	rep, err := scoring.Compare(naive, stoch, truth, scoring.CompareOptions{Tolerance: 1, VarianceThreshold: 25})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.HighVariance {
		t.Fatalf("Expected truth variance above 25, got %v", rep.TruthVariance)
	}
	if !rep.StochasticWins() || rep.Skill <= 0 {
		t.Errorf("Expected the simulated median to beat the naive total: naive MAE %v, stochastic MAE %v", rep.Naive.MAE, rep.Stochastic.MAE)
	}
}

func syntheticHistory(t *testing.T, n int) []orders.Record {
	t.Helper()
	specs := scenario(t)
	perStage, totals := groundTruth(t, specs, n, 77)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	records := make([]orders.Record, n)
	for j := range records {
		category := "toys"
		if j%3 == 0 {
			category = "books"
		}
		records[j] = orders.Record{
			OrderID:     fmt.Sprintf("o-%05d", j),
			PurchasedAt: start.Add(time.Duration(j) * time.Hour),
			Category:    category,
			Stages: map[string]float64{
				stage.Processing:  perStage[0][j],
				stage.Warehousing: perStage[1][j],
				stage.Shipping:    perStage[2][j],
			},
			ActualTotal: totals[j],
		}
	}
	return records
}

func TestBacktest(t *testing.T) {
	records := syntheticHistory(t, 5000)
	engine := simulation.NewEngine(simulation.EngineConfig{Workers: 4})

	cfg := scoring.BacktestConfig{
		Fit:     calibration.Options{Method: stage.MaximumLikelihood},
		Holdout: 0.2,
		Cohort:  orders.CohortCategory,
		Samples: 20000,
		Seed:    42,
		Compare: scoring.CompareOptions{Tolerance: 1, VarianceThreshold: 25},
	}

	res, err := scoring.Backtest(context.Background(), engine, records, cfg)
	if err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}

	if res.TrainSize != 4000 || res.TestSize != 1000 {
		t.Errorf("Expected a 4000/1000 split, got %d/%d", res.TrainSize, res.TestSize)
	}
	if len(res.Cohorts) != 3 {
		t.Fatalf("Expected the global model plus 2 cohorts, got %d", len(res.Cohorts))
	}
	tested := 0
	for _, c := range res.Cohorts {
		tested += c.Test
		if c.P10 > c.P50 || c.P50 > c.P90 {
			t.Errorf("cohort %s: percentiles out of order: %v %v %v", c.Key, c.P10, c.P50, c.P90)
		}
	}
	if tested != res.TestSize {
		t.Errorf("Expected every held-out order scored once, got %d", tested)
	}

	if !res.Report.StochasticWins() {
		t.Errorf("Expected the simulated median to beat the naive baseline: %+v", res.Report)
	}
	if res.Report.Coverage < 0.7 || res.Report.Coverage > 0.9 {
		t.Errorf("Expected roughly 80%% of totals inside P10-P90, got %v", res.Report.Coverage)
	}

	again, err := scoring.Backtest(context.Background(), simulation.NewEngine(simulation.EngineConfig{Workers: 1}), records, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if again.Report != res.Report {
		t.Error("Expected the backtest to be reproducible regardless of worker count")
	}
}

func TestBacktest_EmptyHoldout(t *testing.T) {
	records := syntheticHistory(t, 50)
	_, err := scoring.Backtest(context.Background(), simulation.NewEngine(simulation.EngineConfig{}), records, scoring.BacktestConfig{})
	if err == nil {
		t.Error("Expected an error when nothing is held out")
	}
}
