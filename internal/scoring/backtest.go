package scoring

import (
	"context"
	"fmt"

	"fulfillment-twin/internal/baseline"
	"fulfillment-twin/internal/calibration"
	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"

	"github.com/rs/zerolog/log"
)

// BacktestConfig defines a holdout evaluation of both models.
type BacktestConfig struct {
	Targets []calibration.Target
	Fit     calibration.Options
	// Holdout is the fraction of the most recent orders with a known total
	// that is held out for scoring.
	Holdout float64
	Cohort  orders.CohortKey
	Samples int
	Seed    uint64
	Compare CompareOptions
}

// CohortOutcome records the fitted model and predictions of one cohort.
type CohortOutcome struct {
	Key        string       `json:"key"`
	Train      int          `json:"train"`
	Test       int          `json:"test"`
	Specs      []stage.Spec `json:"specs"`
	Naive      float64      `json:"naive"`
	P10        float64      `json:"p10"`
	P50        float64      `json:"p50"`
	P90        float64      `json:"p90"`
	UsedGlobal bool         `json:"used_global"`
}

// BacktestResult is the outcome of a holdout evaluation.
type BacktestResult struct {
	Report          ComparisonReport `json:"report"`
	TrainSize       int              `json:"train_size"`
	TestSize        int              `json:"test_size"`
	Cohorts         []CohortOutcome  `json:"cohorts"`
	UnstableStages  []string         `json:"unstable_stages,omitempty"`
	ValidationNotes string           `json:"validation_message"`
}

// globalKey labels the model fitted on the whole training set.
const globalKey = "*"

// Backtest splits records into a chronological train/test holdout, fits stage
// specs per cohort on the training part, simulates each cohort and scores the
// naive total and the simulated median against the held-out actual totals.
// Cohorts that cannot be fitted, or that only appear in the test set, use the
// model fitted on the whole training set.
func Backtest(ctx context.Context, engine *simulation.Engine, records []orders.Record, cfg BacktestConfig) (BacktestResult, error) {
	targets := cfg.Targets
	if len(targets) == 0 {
		targets = calibration.DefaultTargets
	}
	stages := make([]string, len(targets))
	for i, t := range targets {
		stages[i] = t.Stage
	}

	train, test := orders.Split(records, cfg.Holdout)
	if len(test) == 0 {
		return BacktestResult{}, fmt.Errorf("holdout: %w", ErrEmptyInput)
	}

	global, err := calibration.Fit(train, targets, cfg.Fit)
	if err != nil {
		return BacktestResult{}, fmt.Errorf("global model: %w", err)
	}
	globalMeans := baseline.StageMeans(train, stages)
	for name, spec := range calibration.SpecsByName(global.Specs) {
		if _, ok := globalMeans[name]; !ok {
			globalMeans[name] = spec.Mean()
		}
	}
	naive := baseline.Estimator{Fallback: globalMeans}

	outcomes := []CohortOutcome{{Key: globalKey, Train: len(train), Specs: global.Specs}}
	if outcomes[0].Naive, err = naive.Estimate(globalMeans, stages); err != nil {
		return BacktestResult{}, err
	}

	// Cohort fits fall back stage-by-stage to the global specs.
	cohortFit := cfg.Fit
	cohortFit.Fallback = calibration.SpecsByName(global.Specs)

	key := cfg.Cohort
	if key == "" {
		key = orders.CohortAll
	}
	if key != orders.CohortAll {
		for _, c := range orders.GroupBy(train, key) {
			cal, err := calibration.Fit(c.Records, targets, cohortFit)
			if err != nil {
				return BacktestResult{}, fmt.Errorf("cohort %s: %w", c.Key, err)
			}
			est, err := naive.Estimate(baseline.StageMeans(c.Records, stages), stages)
			if err != nil {
				return BacktestResult{}, fmt.Errorf("cohort %s: %w", c.Key, err)
			}
			outcomes = append(outcomes, CohortOutcome{
				Key:        c.Key,
				Train:      len(c.Records),
				Specs:      cal.Specs,
				Naive:      est,
				UsedGlobal: len(cal.FallbackStages) == len(targets),
			})
		}
	}

	reqs := make([]simulation.Request, len(outcomes))
	for i, o := range outcomes {
		reqs[i] = simulation.Request{
			ID:      o.Key,
			Stages:  o.Specs,
			Samples: cfg.Samples,
			Seed:    simulation.DeriveSeed(cfg.Seed, i),
		}
	}
	results, err := engine.SimulateBatch(ctx, reqs)
	if err != nil {
		return BacktestResult{}, err
	}

	index := make(map[string]int, len(outcomes))
	for i := range outcomes {
		res := results[i]
		outcomes[i].P10 = res.Percentile(0.10)
		outcomes[i].P50 = res.Percentile(0.50)
		outcomes[i].P90 = res.Percentile(0.90)
		index[outcomes[i].Key] = i
	}

	n := len(test)
	naivePred := make([]float64, n)
	stochPred := make([]float64, n)
	lower := make([]float64, n)
	upper := make([]float64, n)
	truth := make([]float64, n)
	for j, r := range test {
		i, ok := index[key.Of(r)]
		if !ok {
			i = 0
		}
		outcomes[i].Test++
		naivePred[j] = outcomes[i].Naive
		stochPred[j] = outcomes[i].P50
		lower[j] = outcomes[i].P10
		upper[j] = outcomes[i].P90
		truth[j] = r.ActualTotal
	}

	report, err := Compare(naivePred, stochPred, truth, cfg.Compare)
	if err != nil {
		return BacktestResult{}, err
	}
	if report.Coverage, err = Coverage(lower, upper, truth); err != nil {
		return BacktestResult{}, err
	}

	result := BacktestResult{
		Report:         report,
		TrainSize:      len(train),
		TestSize:       n,
		Cohorts:        outcomes,
		UnstableStages: global.Unstable(),
	}
	result.ValidationNotes = fmt.Sprintf("Holdout of %d orders: naive MAE %.2f days, simulated median MAE %.2f days (skill %.1f%%); %.0f%% of actual totals fell inside the P10-P90 band.",
		n, report.Naive.MAE, report.Stochastic.MAE, report.Skill*100, report.Coverage*100)
	if len(result.UnstableStages) > 0 {
		result.ValidationNotes += fmt.Sprintf(" Warning: unstable history in %v; the fitted model may blend regimes.", result.UnstableStages)
	}

	log.Info().
		Int("train", len(train)).
		Int("test", n).
		Float64("naive_mae", report.Naive.MAE).
		Float64("stochastic_mae", report.Stochastic.MAE).
		Float64("coverage", report.Coverage).
		Msg("Backtest complete")

	return result, nil
}
