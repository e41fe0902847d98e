// Package calibration fits per-stage distributions from order history.
package calibration

import (
	"fmt"

	"fulfillment-twin/internal/orders"
	"fulfillment-twin/internal/stage"
	"fulfillment-twin/internal/stats"

	"github.com/rs/zerolog/log"
)

// DefaultSubgroupSize is the batch size of the stability chart.
const DefaultSubgroupSize = 20

// Target names a stage and the family to fit to it.
type Target struct {
	Stage  string       `json:"stage" yaml:"stage"`
	Family stage.Family `json:"family" yaml:"family"`
}

// DefaultTargets fits the canonical three-stage fulfillment chain.
var DefaultTargets = []Target{
	{Stage: stage.Processing, Family: stage.FamilyLogNormal},
	{Stage: stage.Warehousing, Family: stage.FamilyExponential},
	{Stage: stage.Shipping, Family: stage.FamilyGamma},
}

// Options control a calibration run.
type Options struct {
	Method stage.FitMethod
	// TrimQuantile drops observations at or above this quantile before fitting.
	// Zero or one disables trimming.
	TrimQuantile float64
	SubgroupSize int
	// Fallback specs are used, with a warning, for stages that cannot be fitted.
	Fallback map[string]stage.Spec
}

// Calibration is the outcome of fitting one set of records.
type Calibration struct {
	Specs          []stage.Spec           `json:"specs"`
	Observations   map[string]int         `json:"observations"`
	Stability      []stats.StageStability `json:"stability"`
	FallbackStages []string               `json:"fallback_stages,omitempty"`
}

// Fit estimates one spec per target from the records. Records are expected in
// chronological order for the stability assessment to be meaningful.
func Fit(records []orders.Record, targets []Target, opts Options) (Calibration, error) {
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	subgroup := opts.SubgroupSize
	if subgroup <= 0 {
		subgroup = DefaultSubgroupSize
	}

	cal := Calibration{
		Specs:        make([]stage.Spec, 0, len(targets)),
		Observations: make(map[string]int, len(targets)),
	}
	for _, t := range targets {
		obs := orders.Observations(records, t.Stage)
		cal.Observations[t.Stage] = len(obs)
		cal.Stability = append(cal.Stability, stats.AssessStageStability(t.Stage, obs, subgroup))

		if opts.TrimQuantile > 0 && opts.TrimQuantile < 1 {
			obs = orders.TrimTail(obs, opts.TrimQuantile)
		}

		spec, err := stage.Fit(t.Stage, t.Family, obs, opts.Method)
		if err != nil {
			fb, ok := opts.Fallback[t.Stage]
			if !ok {
				return Calibration{}, fmt.Errorf("fit %s: %w", t.Stage, err)
			}
			log.Warn().Err(err).Str("stage", t.Stage).Str("fallback", fb.String()).Msg("Stage could not be fitted, using configured spec")
			cal.FallbackStages = append(cal.FallbackStages, t.Stage)
			spec = fb
		}
		cal.Specs = append(cal.Specs, spec)
	}
	return cal, nil
}

// Unstable returns the stages whose history shows a process shift or
// out-of-limit batches.
func (c Calibration) Unstable() []string {
	var out []string
	for _, s := range c.Stability {
		if s.Status == "migrating" || s.Status == "volatile" {
			out = append(out, s.Stage)
		}
	}
	return out
}

// SpecsByName indexes specs by stage name.
func SpecsByName(specs []stage.Spec) map[string]stage.Spec {
	out := make(map[string]stage.Spec, len(specs))
	for _, s := range specs {
		out[s.Name()] = s
	}
	return out
}
