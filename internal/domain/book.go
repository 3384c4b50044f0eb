package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one option line in the monitored book.
// Quantity is signed: positive long, negative short.
type Position struct {
	ID       string        `json:"id" yaml:"id"`
	Kind     OptionKind    `json:"kind" yaml:"-"`
	Style    ExerciseStyle `json:"style" yaml:"-"`
	Strike   float64       `json:"strike" yaml:"strike"`
	Maturity float64       `json:"maturity" yaml:"maturity"`
	Vol      float64       `json:"vol" yaml:"vol"`
	Quantity float64       `json:"quantity" yaml:"quantity"`
}

// Params builds the market inputs of the position at the given spot and rate.
func (p Position) Params(spot, rate float64) MarketParams {
	return MarketParams{Spot: spot, Strike: p.Strike, Maturity: p.Maturity, Rate: rate, Vol: p.Vol}
}

// PositionValue is the latest valuation of one position.
type PositionValue struct {
	Position Position `json:"position"`
	Price    float64  `json:"price"`
	Greeks   Greeks   `json:"greeks"`
	Err      string   `json:"error,omitempty"`
}

// MarketState holds the repriced book of a single underlying.
// Hot fields first; the engine mutates it only from its own goroutine.
type MarketState struct {
	Spot            float64         `json:"spot"`
	Rate            float64         `json:"rate"`
	NetDelta        float64         `json:"net_delta"` // sum of quantity * delta
	NetGamma        float64         `json:"net_gamma"`
	NetVega         float64         `json:"net_vega"`
	MarkValue       float64         `json:"mark_value"` // sum of quantity * price
	LastUpdateUnixM int64           `json:"last_update"`
	Symbol          string          `json:"symbol"`
	Positions       []PositionValue `json:"positions"`
	Hedge           *HedgeAccount   `json:"hedge,omitempty"`
}

// HedgeAccount is the underlying position held against the book, marked at Spot.
type HedgeAccount struct {
	Units  decimal.Decimal `json:"units"`
	Cash   decimal.Decimal `json:"cash"`
	Fees   decimal.Decimal `json:"fees"`
	Equity decimal.Decimal `json:"equity"` // cash + units * spot
	Fills  int             `json:"fills"`
}

// Aggregate recomputes the net figures from Positions.
func (s *MarketState) Aggregate() {
	s.NetDelta, s.NetGamma, s.NetVega, s.MarkValue = 0, 0, 0, 0
	for _, pv := range s.Positions {
		if pv.Err != "" {
			continue
		}
		q := pv.Position.Quantity
		s.NetDelta += q * pv.Greeks.Delta
		s.NetGamma += q * pv.Greeks.Gamma
		s.NetVega += q * pv.Greeks.Vega
		s.MarkValue += q * pv.Price
	}
}

// Touch stamps the state with the current time in microseconds.
func (s *MarketState) Touch(now time.Time) {
	s.LastUpdateUnixM = now.UnixMicro()
}
