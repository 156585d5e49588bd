package session

import (
	"github.com/vigilspace/vigil/internal/geometry"
	"github.com/vigilspace/vigil/pkg/core"
)

// dateLayout renders createdAt for the hover tooltip.
const dateLayout = "Jan 2, 2006"

// Hover is the tooltip state for the candle under the pointer. WorldPos is
// world-space; the rendered screen position is computed at render time via
// TooltipPosition, so it goes stale if the canvas scrolls mid-hover and is
// refreshed on the next enter.
type Hover struct {
	Visible  bool
	CandleID uint
	WorldPos core.Position
	Text     string
	Date     string
}

// Hover returns a copy of the current tooltip state.
func (s *Session) Hover() Hover {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hover
}

// HoverEnter shows the tooltip for the candle at the given index. Candles
// without a note show nothing.
func (s *Session) HoverEnter(index int) {
	c, ok := s.deps.Cache.Get(index)
	if !ok || c.Note == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hover = Hover{
		Visible:  true,
		CandleID: c.ID,
		WorldPos: c.Pos,
		Text:     c.Note,
		Date:     c.CreatedAt.Format(dateLayout),
	}
}

// HoverLeave hides the tooltip. All other fields are retained so an
// immediate re-enter of the same candle is idempotent.
func (s *Session) HoverLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hover.Visible = false
}

// TooltipPosition returns the clamped screen position for the tooltip,
// computed from the hovered candle's world coordinates and the current
// viewport. The second return is false when no tooltip is visible.
func (s *Session) TooltipPosition() (core.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hover.Visible {
		return core.Position{}, false
	}

	screen := geometry.ToScreen(s.hover.WorldPos, s.viewport)
	anchor := geometry.AnchorOffset(screen)
	viewportSize := core.Size{Width: s.viewport.Rect.Width, Height: s.viewport.Rect.Height}
	return geometry.ClampRect(anchor, s.cfg.TooltipSize, viewportSize, s.cfg.Margin), true
}
