// Package memory implements the store.Backend interface in process memory.
// It backs tests and offline sessions; nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vigilspace/vigil/pkg/core"
)

// ErrNotFound is returned when an update targets an unknown candle ID.
var ErrNotFound = errors.New("candle not found")

// Backend stores candles in memory.
type Backend struct {
	mu        sync.RWMutex
	candles   []core.Candle
	idCounter uint

	// Now is swappable for deterministic tests.
	Now func() time.Time
}

// New creates a new memory backend.
func New() *Backend {
	return &Backend{Now: time.Now}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// Create inserts a candle, assigning ID and CreatedAt on the passed pointer.
func (b *Backend) Create(ctx context.Context, c *core.Candle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	c.ID = b.idCounter
	c.CreatedAt = b.Now()
	b.candles = append(b.candles, *c)
	return nil
}

// Update mutates the annotation fields of the candle with the given ID.
func (b *Backend) Update(ctx context.Context, id uint, patch core.CandlePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.candles {
		if b.candles[i].ID != id {
			continue
		}
		if patch.Note != nil {
			b.candles[i].Note = *patch.Note
		}
		if patch.CountryCode != nil {
			b.candles[i].CountryCode = *patch.CountryCode
		}
		return nil
	}
	return ErrNotFound
}

// List returns candles ordered by CreatedAt ascending. A non-zero since
// restricts the result to candles created at or after it.
func (b *Backend) List(ctx context.Context, since time.Time) ([]core.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	// insertion order is creation order here
	out := make([]core.Candle, 0, len(b.candles))
	for _, c := range b.candles {
		if !since.IsZero() && c.CreatedAt.Before(since) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Count returns the number of stored candles.
func (b *Backend) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.candles)), nil
}
