package pricing

import (
	"fmt"
	"math"

	"options_go/internal/domain"
)

const (
	daysPerYear = 365.0
	pointScale  = 100.0 // vega and rho are quoted per 1% move
)

// d1d2 assumes p has been validated.
func d1d2(p domain.MarketParams) (float64, float64) {
	volSqrtT := p.Vol * math.Sqrt(p.Maturity)
	d1 := (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Vol*p.Vol)*p.Maturity) / volSqrtT
	return d1, d1 - volSqrtT
}

func checkInputs(p domain.MarketParams, kind domain.OptionKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidOptionKind, int(kind))
	}
	return p.Validate()
}

// BlackScholes returns the closed-form price of a European option.
func BlackScholes(p domain.MarketParams, kind domain.OptionKind) (float64, error) {
	if err := checkInputs(p, kind); err != nil {
		return 0, err
	}
	d1, d2 := d1d2(p)
	df := math.Exp(-p.Rate * p.Maturity)
	if kind == domain.Call {
		return p.Spot*normCDF(d1) - p.Strike*df*normCDF(d2), nil
	}
	return p.Strike*df*normCDF(-d2) - p.Spot*normCDF(-d1), nil
}

// Delta is dV/dS.
func Delta(p domain.MarketParams, kind domain.OptionKind) (float64, error) {
	if err := checkInputs(p, kind); err != nil {
		return 0, err
	}
	d1, _ := d1d2(p)
	if kind == domain.Call {
		return normCDF(d1), nil
	}
	return normCDF(d1) - 1, nil
}

// Gamma is the same for calls and puts.
func Gamma(p domain.MarketParams, kind domain.OptionKind) (float64, error) {
	if err := checkInputs(p, kind); err != nil {
		return 0, err
	}
	d1, _ := d1d2(p)
	return normPDF(d1) / (p.Spot * p.Vol * math.Sqrt(p.Maturity)), nil
}

// Vega per 1% volatility move.
func Vega(p domain.MarketParams, kind domain.OptionKind) (float64, error) {
	if err := checkInputs(p, kind); err != nil {
		return 0, err
	}
	d1, _ := d1d2(p)
	return p.Spot * normPDF(d1) * math.Sqrt(p.Maturity) / pointScale, nil
}

// Theta per calendar day.
func Theta(p domain.MarketParams, kind domain.OptionKind) (float64, error) {
	if err := checkInputs(p, kind); err != nil {
		return 0, err
	}
	d1, d2 := d1d2(p)
	decay := -p.Spot * normPDF(d1) * p.Vol / (2 * math.Sqrt(p.Maturity))
	carry := p.Rate * p.Strike * math.Exp(-p.Rate*p.Maturity)
	if kind == domain.Call {
		return (decay - carry*normCDF(d2)) / daysPerYear, nil
	}
	return (decay + carry*normCDF(-d2)) / daysPerYear, nil
}

// Rho per 1% rate move.
func Rho(p domain.MarketParams, kind domain.OptionKind) (float64, error) {
	if err := checkInputs(p, kind); err != nil {
		return 0, err
	}
	_, d2 := d1d2(p)
	kdf := p.Strike * p.Maturity * math.Exp(-p.Rate*p.Maturity)
	if kind == domain.Call {
		return kdf * normCDF(d2) / pointScale, nil
	}
	return -kdf * normCDF(-d2) / pointScale, nil
}

// ClosedFormGreeks computes all five Greeks in one pass.
func ClosedFormGreeks(p domain.MarketParams, kind domain.OptionKind) (domain.Greeks, error) {
	if err := checkInputs(p, kind); err != nil {
		return domain.Greeks{}, err
	}
	var g domain.Greeks
	g.Delta, _ = Delta(p, kind)
	g.Gamma, _ = Gamma(p, kind)
	g.Vega, _ = Vega(p, kind)
	g.Theta, _ = Theta(p, kind)
	g.Rho, _ = Rho(p, kind)
	return g, nil
}
