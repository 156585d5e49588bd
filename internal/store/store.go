// Package store defines the contract between a session and the remote
// candles collection. Concrete backends live in subpackages.
package store

import (
	"context"
	"time"

	"github.com/vigilspace/vigil/pkg/core"
)

// Backend is the interface every candles store must satisfy.
//
// Create inserts a candle with its position, style and placement snapshot
// (note and country code are always empty at insert) and assigns ID and
// CreatedAt on the passed pointer. Update fills in annotation fields keyed
// by ID. List returns candles ordered by CreatedAt ascending; a non-zero
// since restricts the result to candles created at or after it.
type Backend interface {
	Init() error
	Close() error

	Create(ctx context.Context, c *core.Candle) error
	Update(ctx context.Context, id uint, patch core.CandlePatch) error
	List(ctx context.Context, since time.Time) ([]core.Candle, error)
	Count(ctx context.Context) (int64, error)
}
