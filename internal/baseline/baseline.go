// Package baseline implements the deterministic "sum of stage averages"
// delivery estimate that the stochastic model is compared against.
package baseline

import (
	"errors"
	"fmt"
	"math"

	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/stage"

	"gonum.org/v1/gonum/stat"
)

// ErrNoHistory is returned when a stage has neither observations nor a fallback.
var ErrNoHistory = errors.New("no history for stage")

// Estimator sums per-stage means. Fallback supplies a constant for stages that
// have no observations.
type Estimator struct {
	Fallback map[string]float64
}

// Estimate returns the naive end-to-end estimate for the given stages.
func (e Estimator) Estimate(means map[string]float64, stages []string) (float64, error) {
	total := 0.0
	for _, name := range stages {
		m, ok := means[name]
		if !ok || math.IsNaN(m) {
			m, ok = e.Fallback[name]
		}
		if !ok || math.IsNaN(m) {
			return 0, fmt.Errorf("stage %s: %w", name, ErrNoHistory)
		}
		total += m
	}
	return total, nil
}

// StageMeans is the arithmetic mean of the recorded durations of each stage.
// Negative or non-finite durations are not recorded ones. Stages without any
// observation are absent from the result.
func StageMeans(records []orders.Record, stages []string) map[string]float64 {
	out := make(map[string]float64, len(stages))
	for _, name := range stages {
		obs := orders.Observations(records, name)
		if len(obs) == 0 {
			continue
		}
		out[name] = stat.Mean(obs, nil)
	}
	return out
}

// FromSpecs returns the theoretical mean of each configured stage.
func FromSpecs(specs []stage.Spec) map[string]float64 {
	out := make(map[string]float64, len(specs))
	for _, s := range specs {
		out[s.Name()] = s.Mean()
	}
	return out
}

// Names returns the stage names of specs in order.
func Names(specs []stage.Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name()
	}
	return out
}
