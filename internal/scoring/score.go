// Package scoring measures how well delivery-time predictions match observed
// totals and compares the naive baseline against the simulated model.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrMismatchedLength = errors.New("prediction and truth lengths differ")
	ErrEmptyInput       = errors.New("no predictions to score")
)

// Metrics summarises prediction errors e = pred - truth.
type Metrics struct {
	MAE             float64 `json:"mae"`
	RMSE            float64 `json:"rmse"`
	WithinTolerance float64 `json:"within_tolerance"`
	Bias            float64 `json:"bias"`
	Count           int     `json:"count"`
}

// Score compares predictions with observed totals. WithinTolerance is the
// fraction of predictions with |e| <= tolerance.
func Score(pred, truth []float64, tolerance float64) (Metrics, error) {
	if len(pred) != len(truth) {
		return Metrics{}, fmt.Errorf("%w: %d predictions, %d observations", ErrMismatchedLength, len(pred), len(truth))
	}
	if len(pred) == 0 {
		return Metrics{}, ErrEmptyInput
	}

	var absSum, sqSum, sum float64
	within := 0
	for i := range pred {
		e := pred[i] - truth[i]
		absSum += math.Abs(e)
		sqSum += e * e
		sum += e
		if math.Abs(e) <= tolerance {
			within++
		}
	}
	n := float64(len(pred))
	return Metrics{
		MAE:             absSum / n,
		RMSE:            math.Sqrt(sqSum / n),
		WithinTolerance: float64(within) / n,
		Bias:            sum / n,
		Count:           len(pred),
	}, nil
}

// CompareOptions configure Compare.
type CompareOptions struct {
	Tolerance         float64 `json:"tolerance"`
	VarianceThreshold float64 `json:"variance_threshold"`
}

// ComparisonReport scores both models against the same truth.
type ComparisonReport struct {
	Naive      Metrics `json:"naive"`
	Stochastic Metrics `json:"stochastic"`
	// Skill is 1 - MAE_stochastic / MAE_naive: positive when the simulated
	// model is more accurate. It is zero when the naive MAE is zero.
	Skill         float64 `json:"skill"`
	TruthVariance float64 `json:"truth_variance"`
	HighVariance  bool    `json:"high_variance"`
	// Coverage is the fraction of truths inside the simulated [p10, p90] band,
	// filled in by Backtest.
	Coverage float64 `json:"coverage,omitempty"`
}

// StochasticWins reports whether the simulated model has the lower MAE.
func (r ComparisonReport) StochasticWins() bool {
	return r.Stochastic.MAE < r.Naive.MAE
}

// Compare scores naive and stochastic predictions on the same truth.
func Compare(naive, stochastic, truth []float64, opts CompareOptions) (ComparisonReport, error) {
	nm, err := Score(naive, truth, opts.Tolerance)
	if err != nil {
		return ComparisonReport{}, fmt.Errorf("naive: %w", err)
	}
	sm, err := Score(stochastic, truth, opts.Tolerance)
	if err != nil {
		return ComparisonReport{}, fmt.Errorf("stochastic: %w", err)
	}

	rep := ComparisonReport{Naive: nm, Stochastic: sm}
	if nm.MAE > 0 {
		rep.Skill = 1 - sm.MAE/nm.MAE
	}
	if len(truth) > 1 {
		rep.TruthVariance = stat.Variance(truth, nil)
	}
	rep.HighVariance = rep.TruthVariance > opts.VarianceThreshold
	return rep, nil
}

// Coverage returns the fraction of truth values inside [lower[i], upper[i]].
func Coverage(lower, upper, truth []float64) (float64, error) {
	if len(lower) != len(truth) || len(upper) != len(truth) {
		return 0, fmt.Errorf("%w: %d/%d bounds, %d observations", ErrMismatchedLength, len(lower), len(upper), len(truth))
	}
	if len(truth) == 0 {
		return 0, ErrEmptyInput
	}
	hits := 0
	for i, v := range truth {
		if v >= lower[i] && v <= upper[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth)), nil
}
