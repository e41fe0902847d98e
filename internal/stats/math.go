package stats

import (
	"math"
	"slices"
	"strconv"
)

// CalculateMedianContinuous finds the median value in a slice of floats.
func CalculateMedianContinuous(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2.0
}

// PercentileSorted returns the q-quantile (0 <= q <= 1) of an ascending slice.
// The rank h = (n-1)q selects an order statistic directly when it is integral
// and interpolates linearly between its two neighbours otherwise.
func PercentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(q) {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	h := float64(n-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if h == lo {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Percentile is PercentileSorted on an unsorted input; values is not modified.
func Percentile(values []float64, q float64) float64 {
	temp := slices.Clone(values)
	slices.Sort(temp)
	return PercentileSorted(temp, q)
}

// DropNaN returns the non-NaN values of a slice in their original order.
func DropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// PercentileLabel renders a quantile as the "p95"-style key used in results.
func PercentileLabel(q float64) string {
	pct := math.Round(q*1e6) / 1e4
	return "p" + strconv.FormatFloat(pct, 'f', -1, 64)
}
