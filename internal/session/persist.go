package session

import (
	"context"
	"time"

	"github.com/vigilspace/vigil/pkg/core"
)

const (
	defaultPersistAttempts = 3
	defaultPersistBackoff  = 250 * time.Millisecond
	persistRequestTimeout  = 10 * time.Second
)

// persistRequest is one queued store write, keyed by candle ID.
type persistRequest struct {
	id    uint
	patch core.CandlePatch
}

func (s *Session) enqueuePersist(id uint, patch core.CandlePatch) {
	s.persistQueue.Push(persistRequest{id: id, patch: patch})
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// persistWorker drains the persist queue, retrying each write with backoff.
// A write that still fails after all attempts marks the candle dirty; the
// optimistic local mutation is never rolled back.
func (s *Session) persistWorker() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.persisting.Store(true)
			req, ok := s.persistQueue.TryPop()
			if !ok {
				s.persisting.Store(false)
				break
			}
			s.persist(req)
			s.persisting.Store(false)

			select {
			case <-s.done:
				return
			default:
			}
		}
	}
}

func (s *Session) persist(req persistRequest) {
	var lastErr error
	for attempt := 1; attempt <= s.persistAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), persistRequestTimeout)
		err := s.deps.Backend.Update(ctx, req.id, req.patch)
		cancel()
		if err == nil {
			s.deps.Cache.ClearDirty(req.id)
			s.deps.Log.Debug().Uint("id", req.id).Int("attempt", attempt).Msg("annotation persisted")
			return
		}
		lastErr = err
		s.deps.Log.Warn().Err(err).Uint("id", req.id).Int("attempt", attempt).Msg("persist attempt failed")

		if attempt < s.persistAttempts {
			backoff := s.persistBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-s.done:
				return
			case <-time.After(backoff):
			}
		}
	}

	// The candle may already be gone from the cache if a reload raced the
	// failure; marking an unknown id is a safe no-op.
	s.deps.Cache.MarkDirty(req.id)
	s.deps.Log.Error().Err(lastErr).Uint("id", req.id).Msg("persist failed, candle marked dirty")
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.RecordPersistFailure()
	}
}

// Flush blocks until every queued write has been attempted or the context
// expires. Used by the CLI and tests; the UI never waits on persistence.
func (s *Session) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.persistQueue.Empty() && !s.persisting.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
