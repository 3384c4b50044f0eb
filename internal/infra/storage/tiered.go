package storage

import (
	"context"
	"log/slog"

	"options_go/internal/domain"
)

// Tiered puts a fast, lossy cache in front of a durable repository.
// Fast-tier failures are logged and treated as misses; only durable errors reach the caller.
type Tiered struct {
	Fast    domain.PricingRepository
	Durable domain.PricingRepository
}

// NewTiered returns durable alone when fast is nil.
func NewTiered(fast, durable domain.PricingRepository) domain.PricingRepository {
	if fast == nil {
		return durable
	}
	return &Tiered{Fast: fast, Durable: durable}
}

func (t *Tiered) GetPricing(ctx context.Context, key string) (*domain.PricingRecord, error) {
	rec, err := t.Fast.GetPricing(ctx, key)
	if err != nil {
		slog.Warn("Fast pricing cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if rec != nil {
		return rec, nil
	}

	rec, err = t.Durable.GetPricing(ctx, key)
	if err != nil || rec == nil {
		return rec, err
	}

	// backfill
	if err := t.Fast.SavePricing(ctx, rec); err != nil {
		slog.Warn("Fast pricing cache backfill failed", slog.String("key", key), slog.Any("error", err))
	}
	return rec, nil
}

func (t *Tiered) SavePricing(ctx context.Context, rec *domain.PricingRecord) error {
	if err := t.Durable.SavePricing(ctx, rec); err != nil {
		return err
	}
	if err := t.Fast.SavePricing(ctx, rec); err != nil {
		slog.Warn("Fast pricing cache write failed", slog.String("key", rec.CacheKey), slog.Any("error", err))
	}
	return nil
}
