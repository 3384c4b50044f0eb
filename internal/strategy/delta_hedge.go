package strategy

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"options_go/internal/domain"
)

// DeltaHedgeStrategy keeps the book delta-neutral within a band.
// It assumes every emitted action fills at the state spot.
type DeltaHedgeStrategy struct {
	symbol string
	band   float64

	hedge float64 // underlying units currently held against the book
}

// NewDeltaHedgeStrategy creates a strategy that rebalances when |book delta + hedge| > band.
func NewDeltaHedgeStrategy(symbol string, band float64) *DeltaHedgeStrategy {
	return &DeltaHedgeStrategy{symbol: symbol, band: math.Abs(band)}
}

// Hedge returns the underlying position the strategy believes it holds.
func (s *DeltaHedgeStrategy) Hedge() float64 {
	return s.hedge
}

// Exposure returns the residual delta of book plus hedge.
func (s *DeltaHedgeStrategy) Exposure(state domain.MarketState) float64 {
	return state.NetDelta + s.hedge
}

// OnMarketUpdate emits at most one action that flattens the residual delta.
func (s *DeltaHedgeStrategy) OnMarketUpdate(state domain.MarketState) []Action {
	if state.Symbol != s.symbol || !(state.Spot > 0) {
		return nil
	}

	exposure := s.Exposure(state)
	if math.IsNaN(exposure) || math.Abs(exposure) <= s.band {
		return nil
	}

	a := Action{
		ID:     uuid.New(),
		Symbol: s.symbol,
		Price:  state.Spot,
		Qty:    math.Abs(exposure),
		Reason: fmt.Sprintf("net delta %.4f outside band %.4f", exposure, s.band),
	}
	if exposure > 0 {
		a.Type = ActionSell
	} else {
		a.Type = ActionBuy
	}
	s.hedge -= exposure

	return []Action{a}
}
