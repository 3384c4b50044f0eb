package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"options_go/internal/domain"
	"options_go/internal/pricing"
)

// ComparisonReport lines up the three European pricers against the closed form.
// Deviations are relative, in percent, rounded to four places.
type ComparisonReport struct {
	Kind                domain.OptionKind `json:"kind"`
	ClosedForm          float64           `json:"closed_form"`
	MonteCarlo          domain.Estimate   `json:"monte_carlo"`
	Lattice             float64           `json:"lattice"`
	LatticeSteps        int               `json:"lattice_steps"`
	MCDeviationPct      decimal.Decimal   `json:"mc_deviation_pct"`
	LatticeDeviationPct decimal.Decimal   `json:"lattice_deviation_pct"`
}

// Compare prices a European option three ways.
func (s *PricingService) Compare(ctx context.Context, p domain.MarketParams, kind domain.OptionKind) (*ComparisonReport, error) {
	bs, err := s.ClosedFormPrice(ctx, p, kind)
	if err != nil {
		return nil, err
	}
	mc, err := s.MCPrice(ctx, Request{Params: p, Kind: kind, Family: domain.FamilyEuropean})
	if err != nil {
		return nil, err
	}
	lat, err := s.LatticePrice(ctx, p, kind, domain.European, 0)
	if err != nil {
		return nil, err
	}
	return &ComparisonReport{
		Kind:                kind,
		ClosedForm:          bs.Price,
		MonteCarlo:          mc,
		Lattice:             lat.Price,
		LatticeSteps:        s.opts.LatticeSteps,
		MCDeviationPct:      deviationPct(mc.Price, bs.Price),
		LatticeDeviationPct: deviationPct(lat.Price, bs.Price),
	}, nil
}

func deviationPct(got, want float64) decimal.Decimal {
	if want == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Abs(got-want) / want * 100).Round(4)
}

// ConvergencePoint is one entry of a convergence sweep.
type ConvergencePoint struct {
	N      int     `json:"n"`
	Price  float64 `json:"price"`
	StdErr float64 `json:"std_err"`
	Error  float64 `json:"abs_error"` // distance from the closed form
}

// MCConvergence reprices a European option for each simulation count.
func (s *PricingService) MCConvergence(ctx context.Context, p domain.MarketParams, kind domain.OptionKind, counts []int) ([]ConvergencePoint, error) {
	ref, err := s.ClosedFormPrice(ctx, p, kind)
	if err != nil {
		return nil, err
	}
	out := make([]ConvergencePoint, len(counts))
	err = newPool(s.opts.SweepWorkers).run(ctx, len(counts), func(ctx context.Context, i int) error {
		est, err := s.MCPrice(ctx, Request{Params: p, Kind: kind, Family: domain.FamilyEuropean, Simulations: counts[i]})
		if err != nil {
			return fmt.Errorf("simulations=%d: %w", counts[i], err)
		}
		out[i] = ConvergencePoint{N: counts[i], Price: est.Price, StdErr: est.StdErr, Error: math.Abs(est.Price - ref.Price)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatticeConvergence reprices on trees of increasing depth. For American style the
// reference is still the European closed form, so Error shows the early-exercise premium.
func (s *PricingService) LatticeConvergence(ctx context.Context, p domain.MarketParams, kind domain.OptionKind, style domain.ExerciseStyle, steps []int) ([]ConvergencePoint, error) {
	ref, err := s.ClosedFormPrice(ctx, p, kind)
	if err != nil {
		return nil, err
	}
	out := make([]ConvergencePoint, len(steps))
	err = newPool(s.opts.SweepWorkers).run(ctx, len(steps), func(ctx context.Context, i int) error {
		if steps[i] <= 0 {
			return domain.InvalidParam("steps", steps[i])
		}
		est, err := s.LatticePrice(ctx, p, kind, style, steps[i])
		if err != nil {
			return fmt.Errorf("steps=%d: %w", steps[i], err)
		}
		out[i] = ConvergencePoint{N: steps[i], Price: est.Price, Error: math.Abs(est.Price - ref.Price)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Axis is the market input varied by a Greek sweep.
type Axis string

const (
	AxisSpot     Axis = "spot"
	AxisVol      Axis = "vol"
	AxisMaturity Axis = "maturity"
)

// ParseAxis accepts spot, vol/volatility and maturity/time.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spot", "s":
		return AxisSpot, nil
	case "vol", "volatility", "sigma":
		return AxisVol, nil
	case "maturity", "time", "t":
		return AxisMaturity, nil
	default:
		return "", domain.InvalidParam("axis", s)
	}
}

// DefaultRange is 0.5K..1.5K for spot, 5%..100% for vol and 0.01..2 years for maturity.
func DefaultRange(axis Axis, p domain.MarketParams) (lo, hi float64) {
	switch axis {
	case AxisVol:
		return 0.05, 1.0
	case AxisMaturity:
		return 0.01, 2.0
	default:
		return 0.5 * p.Strike, 1.5 * p.Strike
	}
}

func (a Axis) apply(p domain.MarketParams, x float64) domain.MarketParams {
	switch a {
	case AxisVol:
		return p.WithVol(x)
	case AxisMaturity:
		return p.WithMaturity(x)
	default:
		return p.WithSpot(x)
	}
}

// GreekPoint is one entry of a Greek sweep.
type GreekPoint struct {
	X      float64       `json:"x"`
	Price  float64       `json:"price"`
	Greeks domain.Greeks `json:"greeks"`
}

// GreekSweep evaluates the closed-form price and Greeks at points evenly spaced
// over [lo, hi], both ends included.
func (s *PricingService) GreekSweep(ctx context.Context, p domain.MarketParams, kind domain.OptionKind, axis Axis, lo, hi float64, points int) ([]GreekPoint, error) {
	if points < 2 {
		return nil, domain.InvalidParam("points", points)
	}
	if !(hi > lo) {
		return nil, domain.InvalidParam("range", fmt.Sprintf("[%g, %g]", lo, hi))
	}
	out := make([]GreekPoint, points)
	step := (hi - lo) / float64(points-1)
	err := newPool(s.opts.SweepWorkers).run(ctx, points, func(ctx context.Context, i int) error {
		x := lo + float64(i)*step
		q := axis.apply(p, x)
		price, err := pricing.BlackScholes(q, kind)
		if err != nil {
			return err
		}
		g, err := pricing.ClosedFormGreeks(q, kind)
		if err != nil {
			return err
		}
		out[i] = GreekPoint{X: x, Price: price, Greeks: g}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DigitalReport is a digital valuation with the simulated exercise probability.
type DigitalReport struct {
	Estimate       domain.Estimate `json:"estimate"`
	Payout         float64         `json:"payout"`
	ITMProbability float64         `json:"itm_probability"`
}

// DigitalITM prices a cash-or-nothing digital and reports the share of in-the-money draws.
func (s *PricingService) DigitalITM(ctx context.Context, req Request) (*DigitalReport, error) {
	req.Family = domain.FamilyDigital
	run, err := s.MCRun(ctx, req, false)
	if err != nil {
		return nil, err
	}
	payout := req.Payout
	if payout == nil {
		payout = s.opts.DigitalPayout
	}
	return &DigitalReport{Estimate: run.Estimate, Payout: *payout, ITMProbability: run.InTheMoney}, nil
}
