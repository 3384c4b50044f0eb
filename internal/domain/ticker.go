package domain

import "github.com/shopspring/decimal"

// Ticker represents a spot price print for the underlying
type Ticker struct {
	Symbol   string          `json:"symbol"`   // Underlying symbol (e.g., "BTC")
	Price    decimal.Decimal `json:"price"`    // Last trade price
	Volume   decimal.Decimal `json:"volume"`   // 24h volume
	Exchange string          `json:"exchange"` // Feed source
	TsMs     int64           `json:"ts_ms"`    // Exchange timestamp (ms)
}

// Valid reports whether the ticker can be used as a spot input.
func (t *Ticker) Valid() bool {
	return t != nil && t.Symbol != "" && t.Price.IsPositive()
}
