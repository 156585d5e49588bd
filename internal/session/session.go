// Package session implements the placement-and-annotation workflow for a
// single visitor: arming placement, converting clicks to world coordinates,
// creating candles against the remote store, composing notes, hover
// inspection and viewport control. All operations run as handlers for
// discrete events; the candle cache is the only mutable shared state and is
// written solely by the placement and annotation paths.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vigilspace/vigil/internal/cache"
	"github.com/vigilspace/vigil/internal/config"
	"github.com/vigilspace/vigil/internal/queue"
	"github.com/vigilspace/vigil/internal/store"
	"github.com/vigilspace/vigil/pkg/core"
)

// Failure taxonomy. Each wraps the transport cause.
var (
	// ErrLoadFailed means the initial fetch of all candles failed. The
	// cache is left untouched and there is no automatic retry.
	ErrLoadFailed = errors.New("load failed")

	// ErrCreateFailed means a placement click did not produce a candle.
	// The state machine reverts to idle and the user must re-attempt.
	ErrCreateFailed = errors.New("create failed")

	// ErrPersistFailed means an annotation update did not reach the store
	// after all retries. The optimistic local mutation is kept and the
	// candle is marked dirty.
	ErrPersistFailed = errors.New("persist failed")

	// ErrNoteLocked means the candle already carries a note and reopening
	// notes is disabled.
	ErrNoteLocked = errors.New("note already shared")

	// ErrModalClosed means an annotation operation arrived with no modal
	// open.
	ErrModalClosed = errors.New("annotation modal is not open")
)

// State is the placement state machine's current state.
type State int

const (
	// StateIdle means clicks do not place candles.
	StateIdle State = iota
	// StateArmed means the next canvas click places a candle.
	StateArmed
	// StateAwaitingCommit means a create request is in flight; further
	// clicks are ignored until it completes.
	StateAwaitingCommit
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateAwaitingCommit:
		return "awaitingCommit"
	}
	return "unknown"
}

// Telemetry receives session statistics. Implementations must never block.
type Telemetry interface {
	RecordPlacement(style core.Style)
	RecordPersistFailure()
	RecordCandleCount(n int)
}

// Dependencies are the collaborators a session needs.
type Dependencies struct {
	Backend   store.Backend
	Cache     *cache.CandleCache
	Log       zerolog.Logger
	Telemetry Telemetry // optional
}

// Session owns all per-visitor state. Methods are safe for concurrent use;
// the internal mutex is never held across a store call.
type Session struct {
	deps Dependencies
	cfg  config.SessionConfig

	mu         sync.Mutex
	state      State
	armedStyle core.Style
	ghost      *core.Position
	viewport   core.Viewport
	modal      Modal
	hover      Hover

	persistQueue    *queue.Queue[persistRequest]
	persistAttempts int
	persistBackoff  time.Duration
	persisting      atomic.Bool
	wake            chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
}

// New creates a session and starts its persist worker.
func New(deps Dependencies, cfg config.SessionConfig) *Session {
	s := &Session{
		deps:            deps,
		cfg:             cfg,
		persistQueue:    queue.New[persistRequest](),
		persistAttempts: defaultPersistAttempts,
		persistBackoff:  defaultPersistBackoff,
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	go s.persistWorker()
	return s
}

// Close stops the persist worker. Queued writes that have not started are
// abandoned.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Load replaces the cache with the store's current contents, ordered by
// creation time ascending. A configured load window restricts the fetch to
// recently created candles. On failure the existing cache is untouched.
func (s *Session) Load(ctx context.Context) error {
	var since time.Time
	if s.cfg.LoadWindow > 0 {
		since = time.Now().Add(-s.cfg.LoadWindow)
	}

	candles, err := s.deps.Backend.List(ctx, since)
	if err != nil {
		s.deps.Log.Error().Err(err).Msg("failed to load candles")
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	s.deps.Cache.ReplaceAll(candles)
	s.deps.Log.Info().Int("count", len(candles)).Msg("loaded candles")
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.RecordCandleCount(len(candles))
	}
	return nil
}

// Count returns the number of candles currently cached.
func (s *Session) Count() int {
	return s.deps.Cache.Count()
}

// Candles returns a copy of the cached sequence in creation order.
func (s *Session) Candles() []core.Candle {
	return s.deps.Cache.All()
}

// State returns the placement state machine's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
