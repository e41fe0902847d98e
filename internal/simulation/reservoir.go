package simulation

import (
	"math"
	"math/rand/v2"
	"slices"
)

// summary accumulates simulated totals. The exact variant keeps every value;
// the bounded one keeps a uniform reservoir and trades percentile exactness
// for fixed memory. Both track mean and variance over every value (Welford).
type summary struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64

	capacity int        // 0 keeps everything
	values   []float64  // all totals, or the reservoir
	rng      *rand.Rand // reservoir replacement stream
}

func newSummary(expected, capacity int, rng *rand.Rand) *summary {
	size := expected
	if capacity > 0 && capacity < expected {
		size = capacity
	} else {
		capacity = 0
	}
	return &summary{
		capacity: capacity,
		values:   make([]float64, 0, size),
		rng:      rng,
		min:      math.Inf(1),
		max:      math.Inf(-1),
	}
}

func (s *summary) add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
	s.min = math.Min(s.min, x)
	s.max = math.Max(s.max, x)

	if s.capacity == 0 || len(s.values) < s.capacity {
		s.values = append(s.values, x)
		return
	}
	// Algorithm R: keep the i-th item with probability k/i.
	if j := s.rng.IntN(s.n); j < s.capacity {
		s.values[j] = x
	}
}

func (s *summary) exact() bool { return s.capacity == 0 }

func (s *summary) variance() float64 {
	if s.n < 2 {
		return 0
	}
	return s.m2 / float64(s.n-1)
}

// sorted sorts the retained values in place and returns them.
func (s *summary) sorted() []float64 {
	slices.Sort(s.values)
	return s.values
}
