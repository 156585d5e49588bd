// Package gormstore implements the store.Backend interface on a GORM
// database. The same implementation serves SQLite and Postgres; dialect
// differences are handled by the database package.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vigilspace/vigil/internal/model"
	"github.com/vigilspace/vigil/pkg/core"
)

// Backend persists candles through a GORM connection.
type Backend struct {
	db *gorm.DB
}

// New creates a new GORM-backed store.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// Init migrates the candles schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a candle row and assigns ID and CreatedAt on the passed
// pointer.
func (b *Backend) Create(ctx context.Context, c *core.Candle) error {
	row := model.FromCore(*c)
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert candle: %w", err)
	}

	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	return nil
}

// Update fills in annotation fields keyed by ID.
func (b *Backend) Update(ctx context.Context, id uint, patch core.CandlePatch) error {
	fields := map[string]interface{}{}
	if patch.Note != nil {
		fields["note"] = *patch.Note
	}
	if patch.CountryCode != nil {
		fields["country_code"] = *patch.CountryCode
	}
	if len(fields) == 0 {
		return nil
	}

	res := b.db.WithContext(ctx).Model(&model.Candle{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update candle %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns candles ordered by created_at ascending, optionally
// filtered to created_at >= since.
func (b *Backend) List(ctx context.Context, since time.Time) ([]core.Candle, error) {
	q := b.db.WithContext(ctx).Order("created_at asc")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var rows []model.Candle
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list candles: %w", err)
	}
	return model.ManyToCore(rows), nil
}

// Count returns the number of stored candles.
func (b *Backend) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := b.db.WithContext(ctx).Model(&model.Candle{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count candles: %w", err)
	}
	return n, nil
}
