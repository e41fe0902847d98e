package orders

import (
	"math"

	"fulfillment-twin/internal/stats"
)

// Split holds records out for backtesting. Records are ordered chronologically
// and the most recent fraction goes to the test set. Only records with a known
// ActualTotal are eligible for the test set. Records ordered after the oldest
// test record that did not make the test set are dropped, so no training
// observation is newer than the holdout window. Undated records sort first and
// stay in train.
func Split(records []Record, holdout float64) (train, test []Record) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortRecords(sorted)

	if holdout <= 0 {
		return sorted, nil
	}
	if holdout > 1 {
		holdout = 1
	}

	eligible := 0
	for _, r := range sorted {
		if r.HasActual() {
			eligible++
		}
	}
	want := int(math.Ceil(holdout * float64(eligible)))

	picked := make([]bool, len(sorted))
	for i := len(sorted) - 1; i >= 0 && want > 0; i-- {
		if sorted[i].HasActual() {
			picked[i] = true
			want--
		}
	}
	inWindow := false
	for i, r := range sorted {
		switch {
		case picked[i]:
			inWindow = true
			test = append(test, r)
		case inWindow:
			// inside the holdout window without a known total
		default:
			train = append(train, r)
		}
	}
	return train, test
}

// TrimTail drops observations at or above the q-quantile of the sample. It
// removes the extreme tail of historical durations before fitting.
func TrimTail(values []float64, q float64) []float64 {
	values = stats.DropNaN(values)
	if len(values) == 0 || q >= 1 {
		return values
	}
	cutoff := stats.Percentile(values, q)
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v < cutoff {
			out = append(out, v)
		}
	}
	return out
}
