package stage

import (
	"fmt"
	"strings"
)

// Family is the closed set of parametric distributions a stage can follow.
// Every family listed here has non-negative support. Adding one means adding
// a case to every switch over Family in this package and in the sampler.
type Family int

const (
	FamilyLogNormal Family = iota + 1
	FamilyExponential
	FamilyGamma
)

// Families lists every supported family in declaration order.
var Families = []Family{FamilyLogNormal, FamilyExponential, FamilyGamma}

func (f Family) String() string {
	switch f {
	case FamilyLogNormal:
		return "lognormal"
	case FamilyExponential:
		return "exponential"
	case FamilyGamma:
		return "gamma"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Valid reports whether f is one of the declared families.
func (f Family) Valid() bool {
	switch f {
	case FamilyLogNormal, FamilyExponential, FamilyGamma:
		return true
	}
	return false
}

// ParseFamily resolves a case-insensitive family name.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lognormal", "log-normal", "log_normal":
		return FamilyLogNormal, nil
	case "exponential", "exp":
		return FamilyExponential, nil
	case "gamma":
		return FamilyGamma, nil
	}
	return 0, fmt.Errorf("unknown distribution family %q (expected lognormal, exponential or gamma)", s)
}

// UnmarshalText lets Family be decoded from JSON, YAML scalars and flags.
func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
