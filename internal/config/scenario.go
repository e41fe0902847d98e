package config

import (
	"errors"
	"fmt"
	"os"

	"fulfillment-twin/internal/calibration"
	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/stage"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Scenario describes a fulfillment chain: the configured stage distributions,
// which family to fit each stage with, and the decision parameters applied to
// the simulated totals.
type Scenario struct {
	Stages        []StageEntry       `yaml:"stages"`
	Risk          *risk.Tiers        `yaml:"risk,omitempty"`
	SLADays       float64            `yaml:"sla_days,omitempty"`
	NaiveFallback map[string]float64 `yaml:"naive_fallback,omitempty"`
	Cost          CostEntry          `yaml:"cost,omitempty"`
}

// StageEntry is one stage of a scenario. Family and Params give the configured
// distribution; Fit names the family used when fitting history, defaulting to
// Family.
type StageEntry struct {
	Stage  string       `yaml:"stage"`
	Family string       `yaml:"family"`
	Params stage.Params `yaml:"params"`
	Fit    string       `yaml:"fit,omitempty"`
}

// CostEntry configures the quadratic cost-of-delay model.
type CostEntry struct {
	RatePerDaySquared float64 `yaml:"rate_per_day_squared,omitempty"`
	Currency          string  `yaml:"currency,omitempty"`
}

// DefaultScenario is the reference chain: LogNormal(2.5, 0.8) processing,
// Exponential(0.5) warehousing and Gamma(3, 1.5) shipping.
func DefaultScenario() *Scenario {
	return &Scenario{
		Stages: []StageEntry{
			{Stage: stage.Processing, Family: "lognormal", Params: stage.Params{Mu: 2.5, Sigma: 0.8}},
			{Stage: stage.Warehousing, Family: "exponential", Params: stage.Params{Lambda: 0.5}},
			{Stage: stage.Shipping, Family: "gamma", Params: stage.Params{Alpha: 3.0, Beta: 1.5}},
		},
		Cost: CostEntry{RatePerDaySquared: 1, Currency: "USD"},
	}
}

// LoadScenario reads a YAML scenario. An empty path or a missing file yields
// DefaultScenario.
func LoadScenario(path string) (*Scenario, error) {
	if path == "" {
		return DefaultScenario(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Msg("Scenario file not found, using default scenario")
			return DefaultScenario(), nil
		}
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if len(sc.Stages) == 0 {
		sc.Stages = DefaultScenario().Stages
	}
	if sc.Cost.Currency == "" {
		sc.Cost.Currency = "USD"
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks every stage spec, fit family and the risk tiers.
func (sc *Scenario) Validate() error {
	if _, err := sc.Specs(); err != nil {
		return err
	}
	if _, err := sc.Targets(); err != nil {
		return err
	}
	if sc.Risk != nil {
		if err := sc.Risk.Validate(); err != nil {
			return err
		}
	}
	if sc.Cost.RatePerDaySquared < 0 {
		return fmt.Errorf("%w: negative rate %v", risk.ErrInvalidCostModel, sc.Cost.RatePerDaySquared)
	}
	return nil
}

// Specs builds the configured stage distributions in chain order.
func (sc *Scenario) Specs() ([]stage.Spec, error) {
	specs := make([]stage.Spec, 0, len(sc.Stages))
	seen := make(map[string]bool, len(sc.Stages))
	for _, e := range sc.Stages {
		if e.Stage == "" {
			return nil, fmt.Errorf("scenario stage without a name")
		}
		if seen[e.Stage] {
			return nil, fmt.Errorf("scenario stage %s listed twice", e.Stage)
		}
		seen[e.Stage] = true

		family, err := stage.ParseFamily(e.Family)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", e.Stage, err)
		}
		spec, err := stage.New(e.Stage, family, e.Params)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Targets lists the family to fit for each stage.
func (sc *Scenario) Targets() ([]calibration.Target, error) {
	out := make([]calibration.Target, 0, len(sc.Stages))
	for _, e := range sc.Stages {
		name := e.Fit
		if name == "" {
			name = e.Family
		}
		family, err := stage.ParseFamily(name)
		if err != nil {
			return nil, fmt.Errorf("stage %s fit: %w", e.Stage, err)
		}
		out = append(out, calibration.Target{Stage: e.Stage, Family: family})
	}
	return out, nil
}

// StageNames lists the stages in chain order.
func (sc *Scenario) StageNames() []string {
	out := make([]string, len(sc.Stages))
	for i, e := range sc.Stages {
		out[i] = e.Stage
	}
	return out
}

// TiersOr returns the scenario's risk tiers, or fallback when none are set.
func (sc *Scenario) TiersOr(fallback risk.Tiers) risk.Tiers {
	if sc.Risk != nil {
		return *sc.Risk
	}
	return fallback
}

// SLAOr returns the scenario's SLA, or fallback when none is set.
func (sc *Scenario) SLAOr(fallback float64) float64 {
	if sc.SLADays > 0 {
		return sc.SLADays
	}
	return fallback
}

// CostModel converts the cost entry for an order of the given value.
func (sc *Scenario) CostModel(orderValue float64) risk.CostModel {
	return risk.CostModel{
		RatePerDaySquared: decimal.NewFromFloat(sc.Cost.RatePerDaySquared),
		Currency:          sc.Cost.Currency,
		OrderValue:        decimal.NewFromFloat(orderValue),
	}
}

// FitOptions builds calibration options that fall back to the configured
// specs for stages the history cannot support.
func (sc *Scenario) FitOptions(method stage.FitMethod, trim float64) (calibration.Options, error) {
	specs, err := sc.Specs()
	if err != nil {
		return calibration.Options{}, err
	}
	return calibration.Options{
		Method:       method,
		TrimQuantile: trim,
		Fallback:     calibration.SpecsByName(specs),
	}, nil
}
