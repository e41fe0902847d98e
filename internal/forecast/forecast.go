// Package forecast combines a simulation run with the decisions derived from
// it: naive comparison, risk tier, promise date and cost of delay.
package forecast

import (
	"context"
	"fmt"

	"fulfillment-twin/internal/baseline"
	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"

	"github.com/rs/zerolog/log"
)

// DefaultPromiseExceedance targets a promise date kept for 95% of orders.
const DefaultPromiseExceedance = 0.05

// Options parameterise Assess.
type Options struct {
	ID                string
	Samples           int
	Seed              uint64
	Percentiles       []float64
	SLADays           float64
	PromiseExceedance float64
	Cost              risk.CostModel
	NaiveFallback     map[string]float64
	SurvivalPoints    int
	HistogramBins     int
	KeepSamples       bool
}

// Assessment is the full decision view of one simulated order or cohort.
type Assessment struct {
	Result            *simulation.Result         `json:"result"`
	Naive             float64                    `json:"naive_estimate"`
	NaiveGap          float64                    `json:"naive_minus_median"`
	NaiveExceedance   float64                    `json:"naive_exceedance"`
	Classification    risk.Classification        `json:"classification"`
	RecommendedSLA    float64                    `json:"recommended_sla"`
	PromiseExceedance float64                    `json:"promise_exceedance"`
	SigmaSLA          float64                    `json:"sigma_sla"`
	Cost              risk.CostReport            `json:"cost"`
	Survival          []simulation.SurvivalPoint `json:"survival,omitempty"`
	Histogram         *simulation.Histogram      `json:"histogram,omitempty"`
}

// Assess simulates specs and derives every decision metric from the result.
func Assess(ctx context.Context, engine *simulation.Engine, classifier *risk.Classifier, specs []stage.Spec, opts Options) (*Assessment, error) {
	res, err := engine.Simulate(ctx, simulation.Request{
		ID:          opts.ID,
		Stages:      specs,
		Samples:     opts.Samples,
		Seed:        opts.Seed,
		Percentiles: opts.Percentiles,
	})
	if err != nil {
		return nil, err
	}

	naive, err := baseline.Estimator{Fallback: opts.NaiveFallback}.Estimate(baseline.FromSpecs(specs), baseline.Names(specs))
	if err != nil {
		return nil, err
	}

	cls, err := classifier.Classify(res, opts.SLADays)
	if err != nil {
		return nil, err
	}

	target := opts.PromiseExceedance
	if target <= 0 {
		target = DefaultPromiseExceedance
	}
	promise, err := risk.RecommendSLA(res, target)
	if err != nil {
		return nil, err
	}

	cost, err := risk.CostOfDelay(res, opts.SLADays, opts.Cost)
	if err != nil {
		return nil, fmt.Errorf("cost of delay: %w", err)
	}

	a := &Assessment{
		Result:            res,
		Naive:             naive,
		NaiveGap:          naive - res.P50,
		NaiveExceedance:   res.Exceedance(naive),
		Classification:    cls,
		RecommendedSLA:    promise,
		PromiseExceedance: target,
		SigmaSLA:          risk.SigmaSLA(res, 3),
		Cost:              cost,
		Survival:          res.Survival(opts.SurvivalPoints),
	}
	if opts.HistogramBins > 0 {
		h := res.Histogram(opts.HistogramBins)
		a.Histogram = &h
	}
	if !opts.KeepSamples {
		a.Result = res.WithoutSamples()
	}

	log.Debug().
		Str("id", opts.ID).
		Float64("p50", res.P50).
		Float64("naive", naive).
		Str("tier", string(cls.Tier)).
		Msg("Assessment complete")
	return a, nil
}
