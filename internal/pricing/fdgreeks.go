package pricing

import (
	"math"

	"options_go/internal/domain"
)

// Bump sizes used by the finite-difference Greeks.
const (
	SpotBumpRatio = 0.01        // h = 1% of spot for delta and gamma
	VolBump       = 0.01        // absolute sigma bump
	TimeBump      = 1.0 / 365.0 // one calendar day
	RateBump      = 0.0001      // one basis point
)

// Valuation reprices an option at the given market. Any pricer can be wrapped.
type Valuation func(domain.MarketParams) (domain.Estimate, error)

// ClosedFormValuation adapts BlackScholes to a Valuation.
func ClosedFormValuation(kind domain.OptionKind) Valuation {
	return func(p domain.MarketParams) (domain.Estimate, error) {
		v, err := BlackScholes(p, kind)
		return domain.Estimate{Price: v}, err
	}
}

// LatticeValuation adapts Binomial to a Valuation.
func LatticeValuation(steps int, kind domain.OptionKind, style domain.ExerciseStyle) Valuation {
	return func(p domain.MarketParams) (domain.Estimate, error) {
		v, err := Binomial(p, steps, kind, style)
		return domain.Estimate{Price: v}, err
	}
}

// MonteCarloValuation adapts MonteCarlo to a Valuation. With a FixedSeed source every
// bumped revaluation reuses the same draws.
func MonteCarloValuation(cfg MCConfig) Valuation {
	cfg.KeepSamples = false
	return func(p domain.MarketParams) (domain.Estimate, error) {
		return MonteCarlo(p, cfg)
	}
}

// FDDelta is the central difference in spot. The second value is the propagated noise.
func FDDelta(v Valuation, p domain.MarketParams) (float64, float64, error) {
	h := SpotBumpRatio * p.Spot
	up, err := v(p.WithSpot(p.Spot + h))
	if err != nil {
		return 0, 0, err
	}
	dn, err := v(p.WithSpot(p.Spot - h))
	if err != nil {
		return 0, 0, err
	}
	return (up.Price - dn.Price) / (2 * h), math.Hypot(up.StdErr, dn.StdErr) / (2 * h), nil
}

// FDGamma is the central second difference in spot.
func FDGamma(v Valuation, p domain.MarketParams) (float64, float64, error) {
	h := SpotBumpRatio * p.Spot
	up, err := v(p.WithSpot(p.Spot + h))
	if err != nil {
		return 0, 0, err
	}
	mid, err := v(p)
	if err != nil {
		return 0, 0, err
	}
	dn, err := v(p.WithSpot(p.Spot - h))
	if err != nil {
		return 0, 0, err
	}
	g := (up.Price - 2*mid.Price + dn.Price) / (h * h)
	noise := math.Sqrt(up.StdErr*up.StdErr+4*mid.StdErr*mid.StdErr+dn.StdErr*dn.StdErr) / (h * h)
	return g, noise, nil
}

// FDVega is the central difference in sigma, per 1% move.
// It is NaN when the down bump would leave a non-positive volatility.
func FDVega(v Valuation, p domain.MarketParams) (float64, float64, error) {
	if p.Vol-VolBump <= 0 {
		return math.NaN(), math.NaN(), nil
	}
	up, err := v(p.WithVol(p.Vol + VolBump))
	if err != nil {
		return 0, 0, err
	}
	dn, err := v(p.WithVol(p.Vol - VolBump))
	if err != nil {
		return 0, 0, err
	}
	scale := 2 * VolBump * pointScale
	return (up.Price - dn.Price) / scale, math.Hypot(up.StdErr, dn.StdErr) / scale, nil
}

// FDTheta is the backward difference in maturity, (V(T-h) - V(T)) / h, as a rate per year.
// It is NaN when the option expires within a day.
func FDTheta(v Valuation, p domain.MarketParams) (float64, float64, error) {
	if p.Maturity-TimeBump <= 0 {
		return math.NaN(), math.NaN(), nil
	}
	now, err := v(p)
	if err != nil {
		return 0, 0, err
	}
	later, err := v(p.WithMaturity(p.Maturity - TimeBump))
	if err != nil {
		return 0, 0, err
	}
	return (later.Price - now.Price) / TimeBump, math.Hypot(later.StdErr, now.StdErr) / TimeBump, nil
}

// FDRho is the central difference in rate, per 1% move.
func FDRho(v Valuation, p domain.MarketParams) (float64, float64, error) {
	up, err := v(p.WithRate(p.Rate + RateBump))
	if err != nil {
		return 0, 0, err
	}
	dn, err := v(p.WithRate(p.Rate - RateBump))
	if err != nil {
		return 0, 0, err
	}
	scale := 2 * RateBump * pointScale
	return (up.Price - dn.Price) / scale, math.Hypot(up.StdErr, dn.StdErr) / scale, nil
}

// FiniteDifferenceGreeks bumps and reprices v for every Greek.
// Theta and Vega come back NaN when their bump leaves the valid domain.
func FiniteDifferenceGreeks(v Valuation, p domain.MarketParams) (domain.SensitivityReport, error) {
	var r domain.SensitivityReport
	if err := p.Validate(); err != nil {
		return r, err
	}

	var err error
	if r.Greeks.Delta, r.Noise.Delta, err = FDDelta(v, p); err != nil {
		return r, err
	}
	if r.Greeks.Gamma, r.Noise.Gamma, err = FDGamma(v, p); err != nil {
		return r, err
	}
	if r.Greeks.Vega, r.Noise.Vega, err = FDVega(v, p); err != nil {
		return r, err
	}
	if r.Greeks.Theta, r.Noise.Theta, err = FDTheta(v, p); err != nil {
		return r, err
	}
	if r.Greeks.Rho, r.Noise.Rho, err = FDRho(v, p); err != nil {
		return r, err
	}
	return r, nil
}
