package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"fulfillment-twin/internal/stage"
)

var (
	ErrInvalidSampleCount = errors.New("sample count must be positive")
	ErrEmptyStageSet      = errors.New("no stages to simulate")
)

// NewStream returns an independent PCG generator. Different stream values
// under the same seed never share state.
func NewStream(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Sample draws n durations from spec, advancing rng. The spec is not modified.
func Sample(spec stage.Spec, n int, rng *rand.Rand) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: stage %s: got %d", ErrInvalidSampleCount, spec.Name(), n)
	}
	if !spec.Family().Valid() {
		return nil, fmt.Errorf("%w: stage %q has no distribution", stage.ErrInvalidParameter, spec.Name())
	}
	out := make([]float64, n)
	fill(spec, rng, out)
	return out, nil
}

// SampleSeeded draws n durations from a generator seeded with seed on stream 0.
// Identical (spec, n, seed) always yield identical sequences.
func SampleSeeded(spec stage.Spec, n int, seed uint64) ([]float64, error) {
	return Sample(spec, n, NewStream(seed, 0))
}

func fill(spec stage.Spec, rng *rand.Rand, dst []float64) {
	switch spec.Family() {
	case stage.FamilyLogNormal:
		mu, sigma := spec.Mu(), spec.Sigma()
		for i := range dst {
			dst[i] = math.Exp(mu + sigma*rng.NormFloat64())
		}
	case stage.FamilyExponential:
		lambda := spec.Lambda()
		for i := range dst {
			dst[i] = -math.Log(1-rng.Float64()) / lambda
		}
	case stage.FamilyGamma:
		alpha, beta := spec.Alpha(), spec.Beta()
		for i := range dst {
			dst[i] = gammaVariate(alpha, rng) * beta
		}
	default:
		panic(fmt.Sprintf("simulation: unhandled family %s", spec.Family()))
	}
}

// gammaVariate draws from Gamma(alpha, 1) using Marsaglia-Tsang. Shapes
// below one are boosted: Gamma(a) = Gamma(a+1) * U^(1/a).
func gammaVariate(alpha float64, rng *rand.Rand) float64 {
	if alpha < 1 {
		u := rng.Float64()
		return gammaVariate(alpha+1, rng) * math.Pow(u, 1/alpha)
	}

	d := alpha - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
