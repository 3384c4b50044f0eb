package domain

import (
	"fmt"
	"math"
	"strings"
)

// OptionKind determines the payoff sign convention.
type OptionKind int

const (
	Call OptionKind = iota + 1
	Put
)

// String returns the string representation of OptionKind
func (k OptionKind) String() string {
	switch k {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether k is Call or Put.
func (k OptionKind) Valid() bool {
	return k == Call || k == Put
}

// ParseOptionKind accepts "call"/"put" in any case.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return Call, nil
	case "PUT", "P":
		return Put, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOptionKind, s)
	}
}

// ExerciseStyle is only meaningful to the lattice pricer.
type ExerciseStyle int

const (
	European ExerciseStyle = iota + 1
	American
)

func (e ExerciseStyle) String() string {
	switch e {
	case European:
		return "EUROPEAN"
	case American:
		return "AMERICAN"
	default:
		return "UNKNOWN"
	}
}

// ParseExerciseStyle accepts "european"/"american" in any case.
func ParseExerciseStyle(s string) (ExerciseStyle, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EUROPEAN", "":
		return European, nil
	case "AMERICAN":
		return American, nil
	default:
		return 0, &ParamError{Field: "exercise", Value: s, Err: ErrInvalidParameter}
	}
}

// AveragingKind selects the Asian path mean.
type AveragingKind int

const (
	Arithmetic AveragingKind = iota + 1
	Geometric
)

func (a AveragingKind) String() string {
	switch a {
	case Arithmetic:
		return "ARITHMETIC"
	case Geometric:
		return "GEOMETRIC"
	default:
		return "UNKNOWN"
	}
}

// Family selects the Monte Carlo payoff.
type Family int

const (
	FamilyEuropean Family = iota + 1
	FamilyDigital
	FamilyAsianArithmetic
	FamilyAsianGeometric
)

func (f Family) String() string {
	switch f {
	case FamilyEuropean:
		return "EUROPEAN"
	case FamilyDigital:
		return "DIGITAL"
	case FamilyAsianArithmetic:
		return "ASIAN_ARITHMETIC"
	case FamilyAsianGeometric:
		return "ASIAN_GEOMETRIC"
	default:
		return "UNKNOWN"
	}
}

// IsAsian reports whether the family needs full path simulation.
func (f Family) IsAsian() bool {
	return f == FamilyAsianArithmetic || f == FamilyAsianGeometric
}

// Averaging returns the averaging kind of an Asian family.
func (f Family) Averaging() (AveragingKind, bool) {
	switch f {
	case FamilyAsianArithmetic:
		return Arithmetic, true
	case FamilyAsianGeometric:
		return Geometric, true
	default:
		return 0, false
	}
}

// ParseFamily accepts "european", "digital", "asian_arithmetic", "asian_geometric".
func ParseFamily(s string) (Family, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "EUROPEAN", "":
		return FamilyEuropean, nil
	case "DIGITAL":
		return FamilyDigital, nil
	case "ASIAN_ARITHMETIC", "ASIAN":
		return FamilyAsianArithmetic, nil
	case "ASIAN_GEOMETRIC":
		return FamilyAsianGeometric, nil
	default:
		return 0, &ParamError{Field: "family", Value: s, Err: ErrInvalidParameter}
	}
}

// MarketParams are the Black-Scholes-Merton inputs of a single valuation.
type MarketParams struct {
	Spot     float64 `json:"spot" yaml:"spot"`         // S
	Strike   float64 `json:"strike" yaml:"strike"`     // K
	Maturity float64 `json:"maturity" yaml:"maturity"` // T in years
	Rate     float64 `json:"rate" yaml:"rate"`         // r, annualized
	Vol      float64 `json:"vol" yaml:"vol"`           // sigma, annualized
}

// Validate enforces S>0, K>0, T>0, sigma>0 and a finite rate.
// Zero maturity or volatility would make d1 non-finite, so both are rejected here.
func (p MarketParams) Validate() error {
	if !(p.Spot > 0) || math.IsInf(p.Spot, 0) {
		return &ParamError{Field: "spot", Value: p.Spot, Err: ErrInvalidParameter}
	}
	if !(p.Strike > 0) || math.IsInf(p.Strike, 0) {
		return &ParamError{Field: "strike", Value: p.Strike, Err: ErrInvalidParameter}
	}
	if !(p.Maturity > 0) || math.IsInf(p.Maturity, 0) {
		return &ParamError{Field: "maturity", Value: p.Maturity, Err: ErrInvalidParameter}
	}
	if !(p.Vol > 0) || math.IsInf(p.Vol, 0) {
		return &ParamError{Field: "vol", Value: p.Vol, Err: ErrInvalidParameter}
	}
	if math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
		return &ParamError{Field: "rate", Value: p.Rate, Err: ErrInvalidParameter}
	}
	return nil
}

// WithSpot returns a copy with a different spot. The With* helpers are used by bump-and-reprice.
func (p MarketParams) WithSpot(s float64) MarketParams {
	p.Spot = s
	return p
}

func (p MarketParams) WithVol(v float64) MarketParams {
	p.Vol = v
	return p
}

func (p MarketParams) WithMaturity(t float64) MarketParams {
	p.Maturity = t
	return p
}

func (p MarketParams) WithRate(r float64) MarketParams {
	p.Rate = r
	return p
}

// Moneyness classifies spot vs strike for kind with a 5% at-the-money band.
func (p MarketParams) Moneyness(kind OptionKind) string {
	ratio := p.Spot / p.Strike
	switch {
	case ratio > 0.95 && ratio < 1.05:
		return "ATM"
	case (kind == Call && ratio >= 1.05) || (kind == Put && ratio <= 0.95):
		return "ITM"
	default:
		return "OTM"
	}
}
