package session

import (
	"github.com/vigilspace/vigil/pkg/core"
)

// Viewport returns a copy of the current viewport state.
func (s *Session) Viewport() core.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport records the measured bounding rect of the visible window.
func (s *Session) SetViewport(rect core.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport.Rect = rect
}

// Resize updates the viewport dimensions on a resize event. The scroll
// offset is left alone; there is no automatic re-centering.
func (s *Session) Resize(size core.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport.Rect.Width = size.Width
	s.viewport.Rect.Height = size.Height
}

// SetScroll records the scroll offset into the world canvas.
func (s *Session) SetScroll(offset core.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport.Scroll = offset
}

// CenterScroll centers the viewport on the world canvas. Before the
// viewport has been measured the dimensions are zero and this is a no-op,
// so callers defer it until after first layout.
func (s *Session) CenterScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewport.Rect.IsZero() {
		return
	}
	s.viewport.Scroll = core.Position{
		X: (s.cfg.Canvas.Width - s.viewport.Rect.Width) / 2,
		Y: (s.cfg.Canvas.Height - s.viewport.Rect.Height) / 2,
	}
}
