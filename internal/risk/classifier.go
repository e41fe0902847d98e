// Package risk turns a simulated delivery distribution into decisions: an SLA
// breach tier, a recommended promise date and the expected cost of lateness.
package risk

import (
	"errors"
	"fmt"
	"math"

	"fulfillment-twin/internal/simulation"
)

var (
	ErrInvalidTiers = errors.New("invalid risk tiers")
	ErrNoSamples    = errors.New("result holds no samples")
)

// Tier is the coarse risk label of an order.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tiers are the exceedance probabilities at which an order becomes medium and
// high risk.
type Tiers struct {
	Medium float64 `json:"medium" yaml:"medium"`
	High   float64 `json:"high" yaml:"high"`
}

// DefaultTiers flags medium risk from 10% and high risk from 35% breach probability.
var DefaultTiers = Tiers{Medium: 0.10, High: 0.35}

// Validate requires 0 <= Medium <= High <= 1.
func (t Tiers) Validate() error {
	if math.IsNaN(t.Medium) || math.IsNaN(t.High) || t.Medium < 0 || t.High > 1 || t.Medium > t.High {
		return fmt.Errorf("%w: medium=%v high=%v", ErrInvalidTiers, t.Medium, t.High)
	}
	return nil
}

// Of maps a breach probability to a tier: low below Medium, medium from Medium
// up to but excluding High, high from High.
func (t Tiers) Of(p float64) Tier {
	switch {
	case p >= t.High:
		return TierHigh
	case p >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// Classification is the risk verdict for one simulated order.
type Classification struct {
	Tier         Tier    `json:"tier"`
	Exceedance   float64 `json:"exceedance"`
	SLAThreshold float64 `json:"sla_threshold"`
}

// Classifier assigns tiers from a simulated distribution.
type Classifier struct {
	tiers Tiers
}

// NewClassifier validates the tiers.
func NewClassifier(tiers Tiers) (*Classifier, error) {
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{tiers: tiers}, nil
}

func (c *Classifier) Tiers() Tiers { return c.tiers }

// Classify computes P(total > sla) from the samples and maps it to a tier.
// The exceedance never increases as sla grows.
func (c *Classifier) Classify(res *simulation.Result, sla float64) (Classification, error) {
	if res == nil || len(res.Samples) == 0 {
		return Classification{}, ErrNoSamples
	}
	if math.IsNaN(sla) {
		return Classification{}, fmt.Errorf("sla threshold is NaN")
	}
	p := res.Exceedance(sla)
	return Classification{Tier: c.tiers.Of(p), Exceedance: p, SLAThreshold: sla}, nil
}

// RecommendSLA returns the smallest sampled total whose exceedance does not
// exceed maxExceedance, e.g. 0.05 for a promise kept 95% of the time.
func RecommendSLA(res *simulation.Result, maxExceedance float64) (float64, error) {
	if res == nil || len(res.Samples) == 0 {
		return 0, ErrNoSamples
	}
	if math.IsNaN(maxExceedance) || maxExceedance < 0 || maxExceedance > 1 {
		return 0, fmt.Errorf("exceedance target %v outside [0, 1]", maxExceedance)
	}
	n := len(res.Samples)
	above := int(math.Floor(maxExceedance*float64(n) + 1e-9))
	if above >= n {
		return res.Samples[0], nil
	}
	return res.Samples[n-1-above], nil
}

// SigmaSLA is the classic design rule mean + k standard deviations.
func SigmaSLA(res *simulation.Result, k float64) float64 {
	return res.Mean + k*res.StdDev
}
