// Package cache holds the session's local mirror of the remote candles
// collection. It is the only mutable shared state in a session and is
// written solely by the placement and annotation workflows.
package cache

import (
	"errors"
	"sync"

	"github.com/vigilspace/vigil/pkg/core"
)

// ErrIndexOutOfRange is returned when a mutation targets an index the
// cache does not hold.
var ErrIndexOutOfRange = errors.New("candle index out of range")

// ErrNotFound is returned when a mutation targets an unknown candle ID.
var ErrNotFound = errors.New("candle not found")

// CandleCache is an ordered, append-only collection of candles mirroring
// the remote store. Insertion order reflects createdAt ascending as loaded;
// in-place mutation never reorders entries or changes IDs.
type CandleCache struct {
	mu      sync.RWMutex
	candles []core.Candle
	byID    map[uint]int
}

// NewCandleCache creates an empty CandleCache.
func NewCandleCache() *CandleCache {
	return &CandleCache{
		byID: make(map[uint]int),
	}
}

// ReplaceAll swaps the entire cache contents for a freshly loaded sequence.
func (c *CandleCache) ReplaceAll(candles []core.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candles = make([]core.Candle, len(candles))
	copy(c.candles, candles)
	c.byID = make(map[uint]int, len(candles))
	for i, cd := range candles {
		c.byID[cd.ID] = i
	}
}

// Append adds a candle to the end of the sequence and returns its index.
func (c *CandleCache) Append(candle core.Candle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.candles)
	c.candles = append(c.candles, candle)
	c.byID[candle.ID] = idx
	return idx
}

// Get returns the candle at the given index.
func (c *CandleCache) Get(index int) (core.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.candles) {
		return core.Candle{}, false
	}
	return c.candles[index], true
}

// GetByID returns the candle with the given store ID.
func (c *CandleCache) GetByID(id uint) (core.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byID[id]
	if !ok {
		return core.Candle{}, false
	}
	return c.candles[idx], true
}

// UpdateAt mutates the annotation fields of the candle at a known index in
// place. ID, position and sequence order are untouched.
func (c *CandleCache) UpdateAt(index int, patch core.CandlePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.candles) {
		return ErrIndexOutOfRange
	}
	c.apply(index, patch)
	return nil
}

// UpdateByID mutates annotation fields keyed by store ID. The index is
// resolved at mutation time, so a captured index never crosses an
// asynchronous boundary.
func (c *CandleCache) UpdateByID(id uint, patch core.CandlePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.apply(idx, patch)
	return nil
}

func (c *CandleCache) apply(idx int, patch core.CandlePatch) {
	if patch.Note != nil {
		c.candles[idx].Note = *patch.Note
	}
	if patch.CountryCode != nil {
		c.candles[idx].CountryCode = *patch.CountryCode
	}
}

// MarkDirty flags a candle whose remote persist failed permanently.
func (c *CandleCache) MarkDirty(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.byID[id]; ok {
		c.candles[idx].Dirty = true
	}
}

// ClearDirty removes the dirty flag after a successful reconciliation.
func (c *CandleCache) ClearDirty(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.byID[id]; ok {
		c.candles[idx].Dirty = false
	}
}

// All returns a copy of the current sequence in insertion order.
func (c *CandleCache) All() []core.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Candle, len(c.candles))
	copy(out, c.candles)
	return out
}

// Count returns the number of cached candles.
func (c *CandleCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.candles)
}

// Reset clears the cache.
func (c *CandleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candles = nil
	c.byID = make(map[uint]int)
}
