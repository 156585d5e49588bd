// pkg/core/viewport.go
package core

// Position is a 2D coordinate without GIS dependencies.
// Whether it is world-space or screen-space depends on context.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in screen space.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the rect has not been measured yet.
func (r Rect) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// Viewport is the visible window onto the world canvas: its bounding
// rect in screen space plus the current scroll offset into the world.
type Viewport struct {
	Rect   Rect     `json:"rect"`
	Scroll Position `json:"scroll"`
}
