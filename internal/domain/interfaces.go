package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SpotWorker defines the interface for underlying price feed connectors
type SpotWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// RateProvider defines the interface for risk-free rate sources
type RateProvider interface {
	Start(ctx context.Context) error
	GetRate() decimal.Decimal
}

// PricingRepository memoizes deterministic valuations.
// GetPricing returns (nil, nil) when the key is unknown.
type PricingRepository interface {
	GetPricing(ctx context.Context, key string) (*PricingRecord, error)
	SavePricing(ctx context.Context, rec *PricingRecord) error
}
