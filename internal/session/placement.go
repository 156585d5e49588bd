package session

import (
	"context"
	"fmt"

	"github.com/vigilspace/vigil/internal/geometry"
	"github.com/vigilspace/vigil/pkg/core"
)

// Arm puts the session into placement mode with the given candle style.
// An empty style selects the regular candle. Re-arming while already armed
// switches the style; arming while a create is in flight is rejected.
func (s *Session) Arm(style core.Style) error {
	if style == "" {
		style = core.StyleRegular
	}
	if !core.ValidStyle(style) {
		return fmt.Errorf("unknown candle style: %s", style)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingCommit {
		return fmt.Errorf("placement in flight")
	}
	s.state = StateArmed
	s.armedStyle = style
	s.ghost = nil
	return nil
}

// Disarm cancels placement mode and clears the ghost preview. A no-op
// unless armed.
func (s *Session) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateArmed {
		s.state = StateIdle
		s.ghost = nil
	}
}

// PointerMove records the pointer position for the ghost preview. The
// subscription exists only while armed; moves in any other state are
// dropped.
func (s *Session) PointerMove(pointer core.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateArmed {
		return
	}
	p := pointer
	s.ghost = &p
}

// GhostPosition returns the world position the ghost preview occupies, if
// the session is armed and the pointer has moved at least once.
func (s *Session) GhostPosition() (core.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateArmed || s.ghost == nil {
		return core.Position{}, false
	}
	return geometry.ToWorld(*s.ghost, s.viewport), true
}

// Click handles a pointer click at the given screen position.
//
// Idle: no-op with respect to placement. Armed: the pointer is projected to
// world space with the viewport state active at this instant; a click
// outside the canvas disarms with no side effects, a click inside creates a
// candle against the store and, on success, appends it to the cache and
// opens the annotation modal with the pre-append count as target index. A
// click while a create is in flight is ignored.
func (s *Session) Click(ctx context.Context, pointer core.Position) error {
	s.mu.Lock()
	if s.state != StateArmed {
		if s.state == StateAwaitingCommit {
			s.deps.Log.Debug().Msg("click ignored, create in flight")
		}
		s.mu.Unlock()
		return nil
	}

	vp := s.viewport
	world := geometry.ToWorld(pointer, vp)
	if !geometry.InCanvas(world, s.cfg.Canvas) {
		s.state = StateIdle
		s.ghost = nil
		s.mu.Unlock()
		s.deps.Log.Debug().
			Float64("x", world.X).Float64("y", world.Y).
			Msg("click outside canvas, disarmed")
		return nil
	}

	candle := core.Candle{
		Pos:   world,
		Style: s.armedStyle,
		Placement: &core.PlacementSnapshot{
			Pointer:  pointer,
			Viewport: vp.Rect,
			Scroll:   vp.Scroll,
		},
	}
	s.state = StateAwaitingCommit
	s.ghost = nil
	s.mu.Unlock()

	err := s.deps.Backend.Create(ctx, &candle)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	if err != nil {
		s.deps.Log.Error().Err(err).Msg("failed to create candle")
		return fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	index := s.deps.Cache.Append(candle)
	s.modal = Modal{
		Open:        true,
		TargetIndex: index,
		TargetID:    candle.ID,
		Anchor:      pointer,
	}
	s.hover.Visible = false

	s.deps.Log.Info().
		Uint("id", candle.ID).
		Float64("x", world.X).Float64("y", world.Y).
		Str("style", string(candle.Style)).
		Msg("candle placed")
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.RecordPlacement(candle.Style)
		s.deps.Telemetry.RecordCandleCount(s.deps.Cache.Count())
	}
	return nil
}
