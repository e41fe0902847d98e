package simulation

import (
	"math"
	"sort"

	"fulfillment-twin/internal/stage"
	"fulfillment-twin/internal/stats"

	"github.com/google/uuid"
)

// DefaultPercentiles are reported when a request does not name its own.
var DefaultPercentiles = []float64{0.10, 0.50, 0.85, 0.90, 0.95, 0.99}

// Result is the simulated distribution of total delivery time for one request.
// Samples holds every simulated total in ascending order when Exact is true,
// otherwise a sorted uniform reservoir of them.
type Result struct {
	ID               string             `json:"id,omitempty"`
	RunID            uuid.UUID          `json:"run_id"`
	Seed             uint64             `json:"seed"`
	N                int                `json:"n"`
	Exact            bool               `json:"exact"`
	Mean             float64            `json:"mean"`
	StdDev           float64            `json:"std_dev"`
	Variance         float64            `json:"variance"`
	Min              float64            `json:"min"`
	Max              float64            `json:"max"`
	P50              float64            `json:"p50"`
	P90              float64            `json:"p90"`
	P95              float64            `json:"p95"`
	Percentiles      map[string]float64 `json:"percentiles"`
	Stages           []stage.Spec       `json:"stages"`
	StageMeans       map[string]float64 `json:"stage_means"`
	StageCorrelation float64            `json:"max_stage_correlation"`
	Samples          []float64          `json:"samples,omitempty"`
}

// Percentile returns the q-quantile of the simulated totals.
func (r *Result) Percentile(q float64) float64 {
	return stats.PercentileSorted(r.Samples, q)
}

// CDF is the empirical cumulative distribution: the fraction of samples <= x.
func (r *Result) CDF(x float64) float64 {
	if len(r.Samples) == 0 {
		return math.NaN()
	}
	return float64(r.countAtMost(x)) / float64(len(r.Samples))
}

// Exceedance is the fraction of samples strictly greater than x.
func (r *Result) Exceedance(x float64) float64 {
	if len(r.Samples) == 0 {
		return math.NaN()
	}
	return float64(len(r.Samples)-r.countAtMost(x)) / float64(len(r.Samples))
}

func (r *Result) countAtMost(x float64) int {
	return sort.Search(len(r.Samples), func(i int) bool { return r.Samples[i] > x })
}

// SurvivalPoint is one point of S(t) = P(total > t).
type SurvivalPoint struct {
	T        float64 `json:"t"`
	Survival float64 `json:"survival"`
}

// Survival evaluates the empirical survival curve on points evenly spaced
// between zero and the largest sample.
func (r *Result) Survival(points int) []SurvivalPoint {
	if points < 2 || len(r.Samples) == 0 {
		return nil
	}
	hi := r.Samples[len(r.Samples)-1]
	out := make([]SurvivalPoint, points)
	for i := range out {
		t := hi * float64(i) / float64(points-1)
		out[i] = SurvivalPoint{T: t, Survival: r.Exceedance(t)}
	}
	return out
}

// WithoutSamples returns a shallow copy suitable for compact transport.
func (r *Result) WithoutSamples() *Result {
	cp := *r
	cp.Samples = nil
	return &cp
}
