package stage

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
)

// MinObservations is the smallest sample a family can be fitted from.
const MinObservations = 2

// Fitter estimates a stage distribution from historical durations.
type Fitter interface {
	Fit(name string, family Family, observations []float64) (Spec, error)
}

// FitMethod selects the estimator used by Fit.
type FitMethod int

const (
	MaximumLikelihood FitMethod = iota
	MethodOfMoments
)

func (m FitMethod) String() string {
	if m == MethodOfMoments {
		return "moments"
	}
	return "mle"
}

// ParseFitMethod accepts "mle" and "moments" (and a few spellings of each).
func ParseFitMethod(s string) (FitMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mle", "ml", "maximum-likelihood":
		return MaximumLikelihood, nil
	case "moments", "mom", "method-of-moments":
		return MethodOfMoments, nil
	}
	return 0, fmt.Errorf("unknown fit method %q (expected mle or moments)", s)
}

// Fit implements Fitter.
func (m FitMethod) Fit(name string, family Family, observations []float64) (Spec, error) {
	return Fit(name, family, observations, m)
}

// Fit estimates family parameters for a stage from observed durations.
// Non-finite values are skipped. LogNormal and Gamma additionally skip
// non-positive values, Exponential skips negative ones.
func Fit(name string, family Family, observations []float64, method FitMethod) (Spec, error) {
	if !family.Valid() {
		return Spec{}, fmt.Errorf("%w: stage %s: %w (%s)", ErrInvalidParameter, name, errUnsupportedFamily, family)
	}

	xs := usable(family, observations)
	if len(xs) < MinObservations {
		return Spec{}, fmt.Errorf("%w: stage %s: %d usable observations of %d supplied, need at least %d",
			ErrInsufficientData, name, len(xs), len(observations), MinObservations)
	}

	mean, variance := stat.MeanVariance(xs, nil)

	switch family {
	case FamilyExponential:
		if mean <= 0 {
			return Spec{}, fmt.Errorf("%w: stage %s: exponential mean is zero over %d observations", ErrDegenerateData, name, len(xs))
		}
		return Exponential(name, 1/mean)

	case FamilyLogNormal:
		if allEqual(xs) {
			return Spec{}, fmt.Errorf("%w: stage %s: all %d observations equal %v", ErrDegenerateData, name, len(xs), xs[0])
		}
		if method == MethodOfMoments {
			s2 := math.Log1p(variance / (mean * mean))
			return LogNormal(name, math.Log(mean)-s2/2, math.Sqrt(s2))
		}
		logs := make([]float64, len(xs))
		for i, x := range xs {
			logs[i] = math.Log(x)
		}
		mu := stat.Mean(logs, nil)
		ss := 0.0
		for _, l := range logs {
			ss += (l - mu) * (l - mu)
		}
		return LogNormal(name, mu, math.Sqrt(ss/float64(len(logs))))

	case FamilyGamma:
		if allEqual(xs) {
			return Spec{}, fmt.Errorf("%w: stage %s: all %d observations equal %v", ErrDegenerateData, name, len(xs), xs[0])
		}
		if method == MethodOfMoments {
			return Gamma(name, mean*mean/variance, variance/mean)
		}
		meanLog := 0.0
		for _, x := range xs {
			meanLog += math.Log(x)
		}
		meanLog /= float64(len(xs))
		alpha := gammaShapeMLE(math.Log(mean) - meanLog)
		return Gamma(name, alpha, mean/alpha)
	}

	return Spec{}, fmt.Errorf("%w: stage %s: %w (%s)", ErrInvalidParameter, name, errUnsupportedFamily, family)
}

func usable(family Family, observations []float64) []float64 {
	xs := make([]float64, 0, len(observations))
	for _, x := range observations {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			continue
		}
		if x == 0 && family != FamilyExponential {
			continue
		}
		xs = append(xs, x)
	}
	return xs
}

func allEqual(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// gammaShapeMLE solves ln(a) - digamma(a) = s for the Gamma shape a, where
// s = ln(mean) - mean(ln x) > 0. The left side is strictly decreasing in a,
// so Minka's closed-form guess is refined by bisection.
func gammaShapeMLE(s float64) float64 {
	if s <= 0 {
		// Only reachable through rounding on near-constant data.
		return 1e6
	}
	guess := (3 - s + math.Sqrt((s-3)*(s-3)+24*s)) / (12 * s)

	f := func(a float64) float64 { return math.Log(a) - mathext.Digamma(a) - s }

	lo, hi := guess/2, guess*2
	for f(lo) < 0 {
		lo /= 2
	}
	for f(hi) > 0 {
		hi *= 2
	}
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if f(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo <= 1e-12*mid {
			break
		}
	}
	return (lo + hi) / 2
}
