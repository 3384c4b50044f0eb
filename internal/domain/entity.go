package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingRecord is a memoized valuation keyed on (params, model, configuration).
type PricingRecord struct {
	CacheKey    string          `gorm:"primaryKey" json:"cache_key"`
	Model       string          `gorm:"index" json:"model"` // CLOSED_FORM, LATTICE, MONTE_CARLO
	Family      string          `json:"family"`
	Kind        string          `json:"kind"`
	Spot        float64         `json:"spot"`
	Strike      float64         `json:"strike"`
	Maturity    float64         `json:"maturity"`
	Rate        float64         `json:"rate"`
	Vol         float64         `json:"vol"`
	Price       decimal.Decimal `gorm:"type:text" json:"price"`
	StdErr      float64         `json:"std_err"`
	Simulations int             `json:"simulations"`
	HitCount    int64           `json:"hit_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Estimate converts the record back into a pricing estimate.
func (r *PricingRecord) Estimate() Estimate {
	return Estimate{
		Price:       r.Price.InexactFloat64(),
		StdErr:      r.StdErr,
		Simulations: r.Simulations,
	}
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
