package domain

import "math"

// Greeks are first and second order sensitivities.
// Vega and Rho are per 1 point (1%) moves. Closed-form Theta is per calendar day,
// finite-difference Theta is a rate per year.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Estimate is the outcome of one valuation.
// Deterministic pricers leave StdErr at zero; Monte Carlo reports sd(payoff)/sqrt(n), discounted.
type Estimate struct {
	Price       float64 `json:"price"`
	StdErr      float64 `json:"std_err"`
	Simulations int     `json:"simulations,omitempty"`
}

// ConfidenceInterval returns the normal-approximation interval at z standard errors.
func (e Estimate) ConfidenceInterval(z float64) (lo, hi float64) {
	return e.Price - z*e.StdErr, e.Price + z*e.StdErr
}

// Within reports whether target lies inside z standard errors plus an absolute slack.
func (e Estimate) Within(target, z, slack float64) bool {
	return math.Abs(e.Price-target) <= z*e.StdErr+slack
}

// SensitivityReport is a Greeks block from bump-and-reprice.
// Noise holds the part of each Greek attributable to simulation error, propagated from
// the standard errors of the repriced estimates. It is all zeros for deterministic pricers.
type SensitivityReport struct {
	Greeks Greeks `json:"greeks"`
	Noise  Greeks `json:"noise"`
}

// ThetaDefined reports whether the backward time bump was possible.
func (r SensitivityReport) ThetaDefined() bool {
	return !math.IsNaN(r.Greeks.Theta)
}

// VegaDefined reports whether the volatility could be bumped down.
func (r SensitivityReport) VegaDefined() bool {
	return !math.IsNaN(r.Greeks.Vega)
}
