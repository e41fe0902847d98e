package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Canonical fulfillment stages. Specs may use other names; these are the ones
// the order history carries.
const (
	Processing  = "processing"
	Warehousing = "warehousing"
	Shipping    = "shipping"
)

// Names lists the canonical stages in fulfillment order.
var Names = []string{Processing, Warehousing, Shipping}

var (
	ErrInvalidParameter  = errors.New("invalid distribution parameter")
	ErrInsufficientData  = errors.New("insufficient data to fit distribution")
	ErrDegenerateData    = errors.New("degenerate data: zero variance")
	errUnsupportedFamily = errors.New("unsupported distribution family")
)

// Params is the union of all family parameters. Only the fields belonging to
// the spec's family are meaningful.
type Params struct {
	Mu     float64 `json:"mu,omitempty" yaml:"mu,omitempty"`         // LogNormal: mean of log-duration
	Sigma  float64 `json:"sigma,omitempty" yaml:"sigma,omitempty"`   // LogNormal: sd of log-duration
	Lambda float64 `json:"lambda,omitempty" yaml:"lambda,omitempty"` // Exponential: rate
	Alpha  float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`   // Gamma: shape
	Beta   float64 `json:"beta,omitempty" yaml:"beta,omitempty"`     // Gamma: scale
}

// Spec is an immutable, validated distribution for one fulfillment stage.
type Spec struct {
	name   string
	family Family
	params Params
}

// New validates p against the support of family and returns a Spec.
func New(name string, family Family, p Params) (Spec, error) {
	if name == "" {
		return Spec{}, fmt.Errorf("%w: stage name is required", ErrInvalidParameter)
	}

	switch family {
	case FamilyLogNormal:
		if err := requireFinite(name, family, "mu", p.Mu); err != nil {
			return Spec{}, err
		}
		if err := requirePositive(name, family, "sigma", p.Sigma); err != nil {
			return Spec{}, err
		}
		p = Params{Mu: p.Mu, Sigma: p.Sigma}
	case FamilyExponential:
		if err := requirePositive(name, family, "lambda", p.Lambda); err != nil {
			return Spec{}, err
		}
		p = Params{Lambda: p.Lambda}
	case FamilyGamma:
		if err := requirePositive(name, family, "alpha", p.Alpha); err != nil {
			return Spec{}, err
		}
		if err := requirePositive(name, family, "beta", p.Beta); err != nil {
			return Spec{}, err
		}
		p = Params{Alpha: p.Alpha, Beta: p.Beta}
	default:
		return Spec{}, fmt.Errorf("%w: stage %s: %w (%s)", ErrInvalidParameter, name, errUnsupportedFamily, family)
	}

	return Spec{name: name, family: family, params: p}, nil
}

// LogNormal builds a LogNormal(mu, sigma) stage.
func LogNormal(name string, mu, sigma float64) (Spec, error) {
	return New(name, FamilyLogNormal, Params{Mu: mu, Sigma: sigma})
}

// Exponential builds an Exponential(lambda) stage; lambda is the rate.
func Exponential(name string, lambda float64) (Spec, error) {
	return New(name, FamilyExponential, Params{Lambda: lambda})
}

// Gamma builds a Gamma(alpha, beta) stage with shape alpha and scale beta.
func Gamma(name string, alpha, beta float64) (Spec, error) {
	return New(name, FamilyGamma, Params{Alpha: alpha, Beta: beta})
}

func requirePositive(name string, family Family, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: stage %s: %s %s must be > 0, got %v", ErrInvalidParameter, name, family, param, v)
	}
	return nil
}

func requireFinite(name string, family Family, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: stage %s: %s %s must be finite, got %v", ErrInvalidParameter, name, family, param, v)
	}
	return nil
}

func (s Spec) Name() string { return s.name }
func (s Spec) Family() Family { return s.family }
func (s Spec) Params() Params { return s.params }
func (s Spec) IsZero() bool { return s.family == 0 }
func (s Spec) Mu() float64 { return s.params.Mu }
func (s Spec) Sigma() float64 { return s.params.Sigma }
func (s Spec) Lambda() float64 { return s.params.Lambda }
func (s Spec) Alpha() float64 { return s.params.Alpha }
func (s Spec) Beta() float64 { return s.params.Beta }

// Mean returns the theoretical mean of the stage duration.
func (s Spec) Mean() float64 {
	switch s.family {
	case FamilyLogNormal:
		return math.Exp(s.params.Mu + s.params.Sigma*s.params.Sigma/2)
	case FamilyExponential:
		return 1 / s.params.Lambda
	case FamilyGamma:
		return s.params.Alpha * s.params.Beta
	}
	return math.NaN()
}

// Variance returns the theoretical variance of the stage duration.
func (s Spec) Variance() float64 {
	switch s.family {
	case FamilyLogNormal:
		s2 := s.params.Sigma * s.params.Sigma
		return (math.Exp(s2) - 1) * math.Exp(2*s.params.Mu+s2)
	case FamilyExponential:
		return 1 / (s.params.Lambda * s.params.Lambda)
	case FamilyGamma:
		return s.params.Alpha * s.params.Beta * s.params.Beta
	}
	return math.NaN()
}

// Median returns the theoretical median of the stage duration.
func (s Spec) Median() float64 {
	return s.Quantile(0.5)
}

// Quantile returns the theoretical q-quantile, 0 < q < 1.
func (s Spec) Quantile(q float64) float64 {
	switch s.family {
	case FamilyLogNormal:
		return distuv.LogNormal{Mu: s.params.Mu, Sigma: s.params.Sigma}.Quantile(q)
	case FamilyExponential:
		return distuv.Exponential{Rate: s.params.Lambda}.Quantile(q)
	case FamilyGamma:
		// distuv parameterises Gamma by rate.
		return distuv.Gamma{Alpha: s.params.Alpha, Beta: 1 / s.params.Beta}.Quantile(q)
	}
	return math.NaN()
}

// CDF returns the theoretical P(X <= x).
func (s Spec) CDF(x float64) float64 {
	switch s.family {
	case FamilyLogNormal:
		return distuv.LogNormal{Mu: s.params.Mu, Sigma: s.params.Sigma}.CDF(x)
	case FamilyExponential:
		return distuv.Exponential{Rate: s.params.Lambda}.CDF(x)
	case FamilyGamma:
		return distuv.Gamma{Alpha: s.params.Alpha, Beta: 1 / s.params.Beta}.CDF(x)
	}
	return math.NaN()
}

func (s Spec) String() string {
	switch s.family {
	case FamilyLogNormal:
		return fmt.Sprintf("%s~LogNormal(mu=%g, sigma=%g)", s.name, s.params.Mu, s.params.Sigma)
	case FamilyExponential:
		return fmt.Sprintf("%s~Exponential(lambda=%g)", s.name, s.params.Lambda)
	case FamilyGamma:
		return fmt.Sprintf("%s~Gamma(alpha=%g, beta=%g)", s.name, s.params.Alpha, s.params.Beta)
	}
	return s.name + "~<unset>"
}

type specJSON struct {
	Stage  string  `json:"stage"`
	Family Family  `json:"family"`
	Params Params  `json:"params"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(specJSON{
		Stage:  s.name,
		Family: s.family,
		Params: s.params,
		Mean:   s.Mean(),
		Median: s.Median(),
	})
}

// UnmarshalJSON decodes and re-validates a spec.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw specJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	spec, err := New(raw.Stage, raw.Family, raw.Params)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}
