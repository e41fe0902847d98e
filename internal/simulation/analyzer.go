package simulation

import "math"

// CalculateCorrelation calculates the Pearson correlation between two equally long series.
func CalculateCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	n := float64(len(a))
	sumA, sumB := 0.0, 0.0
	sumA2, sumB2 := 0.0, 0.0
	sumAB := 0.0

	for i := 0; i < len(a); i++ {
		sumA += a[i]
		sumB += b[i]
		sumA2 += a[i] * a[i]
		sumB2 += b[i] * b[i]
		sumAB += a[i] * b[i]
	}

	num := (n * sumAB) - (sumA * sumB)
	den := math.Sqrt((n*sumA2 - sumA*sumA) * (n*sumB2 - sumB*sumB))

	if den == 0 {
		return 0
	}

	return num / den
}

// maxAbsCorrelation returns the strongest pairwise correlation between stage
// sample buffers. Independent streams keep this near zero.
func maxAbsCorrelation(buffers [][]float64) float64 {
	worst := 0.0
	for i := 0; i < len(buffers); i++ {
		for j := i + 1; j < len(buffers); j++ {
			worst = math.Max(worst, math.Abs(CalculateCorrelation(buffers[i], buffers[j])))
		}
	}
	return worst
}
