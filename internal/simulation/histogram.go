package simulation

import "math"

// Histogram is a fixed-width binning of simulated totals for presentation.
type Histogram struct {
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Width  float64   `json:"bin_width"`
	Edges  []float64 `json:"edges"`  // len(Counts)+1 bin boundaries
	Counts []int     `json:"counts"` // samples per bin, last bin closed on the right
}

// Histogram bins the retained samples into the requested number of equal-width bins.
func (r *Result) Histogram(bins int) Histogram {
	if bins <= 0 || len(r.Samples) == 0 {
		return Histogram{}
	}

	lo, hi := r.Samples[0], r.Samples[len(r.Samples)-1]
	width := (hi - lo) / float64(bins)
	h := Histogram{
		Min:    lo,
		Max:    hi,
		Width:  width,
		Edges:  make([]float64, bins+1),
		Counts: make([]int, bins),
	}
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[bins] = hi

	if width == 0 {
		h.Counts[0] = len(r.Samples)
		return h
	}

	for _, x := range r.Samples {
		idx := int(math.Floor((x - lo) / width))
		if idx >= bins {
			idx = bins - 1
		}
		h.Counts[idx]++
	}
	return h
}
