package service

import (
	"context"

	"github.com/shopspring/decimal"

	"options_go/internal/domain"
	"options_go/internal/pricing"
)

// premiumTolerance is the premium below which early exercise is reported as worthless.
const premiumTolerance = 1e-3

// EarlyExerciseReport prices the same CRR tree with and without early exercise.
type EarlyExerciseReport struct {
	Kind     domain.OptionKind `json:"kind"`
	Steps    int               `json:"steps"`
	American float64           `json:"american"`
	European float64           `json:"european"`
	Premium  decimal.Decimal   `json:"premium"` // american - european, four places
	// Valuable is false when the premium is within 1e-3, as for calls without dividends.
	Valuable bool `json:"early_exercise_valuable"`
}

// EarlyExercise reports the early-exercise premium on a tree of steps (0 uses the default).
func (s *PricingService) EarlyExercise(ctx context.Context, p domain.MarketParams, kind domain.OptionKind, steps int) (*EarlyExerciseReport, error) {
	steps = s.latticeSteps(steps)
	am, err := s.LatticePrice(ctx, p, kind, domain.American, steps)
	if err != nil {
		return nil, err
	}
	eu, err := s.LatticePrice(ctx, p, kind, domain.European, steps)
	if err != nil {
		return nil, err
	}
	premium := am.Price - eu.Price
	return &EarlyExerciseReport{
		Kind:     kind,
		Steps:    steps,
		American: am.Price,
		European: eu.Price,
		Premium:  decimal.NewFromFloat(premium).Round(4),
		Valuable: premium > premiumTolerance,
	}, nil
}

// TerminalLattice builds the CRR tree whose leaves are exported as terminal node prices.
// Node prices do not depend on the payoff, so the tree is valued as a European call.
func (s *PricingService) TerminalLattice(ctx context.Context, p domain.MarketParams, steps int) (*pricing.Lattice, error) {
	return pricing.BuildLattice(p, s.latticeSteps(steps), domain.Call, domain.European)
}
