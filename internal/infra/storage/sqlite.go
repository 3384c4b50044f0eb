package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"options_go/internal/domain"
)

// Storage persists memoized pricings and key/value settings in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at dbPath.
// ":memory:" gives a private in-memory database.
func NewStorage(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.PricingRecord{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ======================================================================================
// Pricing Operations
// ======================================================================================

// GetPricing retrieves a memoized pricing and bumps its hit counter.
func (s *Storage) GetPricing(ctx context.Context, key string) (*domain.PricingRecord, error) {
	var rec domain.PricingRecord
	err := s.db.WithContext(ctx).First(&rec, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}

	rec.HitCount++
	if err := s.db.WithContext(ctx).Model(&domain.PricingRecord{}).
		Where("cache_key = ?", key).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// SavePricing creates or replaces a memoized pricing. The hit counter survives replacement.
func (s *Storage) SavePricing(ctx context.Context, rec *domain.PricingRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"model", "family", "kind", "spot", "strike", "maturity", "rate", "vol",
			"price", "std_err", "simulations", "updated_at",
		}),
	}).Create(rec).Error
}

// ListPricings returns the most recently updated pricings, optionally filtered by model.
func (s *Storage) ListPricings(ctx context.Context, model string, limit int) ([]domain.PricingRecord, error) {
	q := s.db.WithContext(ctx).Order("updated_at DESC")
	if model != "" {
		q = q.Where("model = ?", model)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []domain.PricingRecord
	err := q.Find(&recs).Error
	return recs, err
}

// PurgePricings deletes pricings not updated since before and returns how many were removed.
func (s *Storage) PurgePricings(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&domain.PricingRecord{})
	return res.RowsAffected, res.Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a runtime setting
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all runtime settings as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
