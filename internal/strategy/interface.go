package strategy

import (
	"github.com/google/uuid"

	"options_go/internal/domain"
)

// ActionType defines the type of hedge action
type ActionType int

const (
	ActionBuy  ActionType = iota + 1
	ActionSell // Sell
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Action represents a decision made by the strategy.
// Qty is in units of the underlying and always positive.
type Action struct {
	ID     uuid.UUID  `json:"id"`
	Type   ActionType `json:"type"`
	Symbol string     `json:"symbol"`
	Price  float64    `json:"price"`
	Qty    float64    `json:"qty"`
	Reason string     `json:"reason"`
}

// Strategy is the interface that all hedging strategies must implement.
// It is called synchronously by the Sequencer after every repricing.
type Strategy interface {
	// OnMarketUpdate receives the freshly repriced book and returns Actions to execute.
	OnMarketUpdate(state domain.MarketState) []Action
}
