// Package geometry converts between screen space (pointer coordinates
// relative to the visible window) and world space (coordinates on the full
// scrollable canvas), and positions transient rectangles so they stay
// inside the viewport. Everything here is pure.
package geometry

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/vigilspace/vigil/pkg/core"
)

// Anchor constants for transient UI attached to a candle's screen position.
// CandleHeight matches the rendered candle sprite; candles are drawn
// anchored bottom-center on their world position.
const (
	CandleHeight = 60.0
	AnchorMargin = 8.0

	// Offsets for the hover tooltip relative to the candle position.
	TooltipOffsetX = 20.0
	TooltipOffsetY = -30.0
)

// XY converts a core position into a simplefeatures vector.
func XY(p core.Position) geom.XY {
	return geom.XY{X: p.X, Y: p.Y}
}

// Pos converts a simplefeatures vector back into a core position.
func Pos(v geom.XY) core.Position {
	return core.Position{X: v.X, Y: v.Y}
}

// ToWorld converts a pointer position in screen space to world space using
// the viewport rect and scroll offset active at that instant.
func ToWorld(pointer core.Position, vp core.Viewport) core.Position {
	origin := geom.XY{X: vp.Rect.Left, Y: vp.Rect.Top}
	return Pos(XY(pointer).Sub(origin).Add(XY(vp.Scroll)))
}

// ToScreen is the inverse projection of ToWorld.
func ToScreen(world core.Position, vp core.Viewport) core.Position {
	origin := geom.XY{X: vp.Rect.Left, Y: vp.Rect.Top}
	return Pos(XY(world).Sub(XY(vp.Scroll)).Add(origin))
}

// InCanvas reports whether a world position lies on the canvas.
func InCanvas(p core.Position, canvas core.Size) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= canvas.Width && p.Y <= canvas.Height
}

// ClampRect positions a fixed-size rectangle whose desired top-left corner
// is anchor so that it stays within [margin, viewportDim-rectDim-margin] on
// both axes. Near an edge the rectangle slides instead of overflowing.
// A zero-size viewport means "not yet measured": the anchor is returned
// unclamped.
func ClampRect(anchor core.Position, rect core.Size, viewport core.Size, margin float64) core.Position {
	if viewport.Width == 0 || viewport.Height == 0 {
		return anchor
	}
	return core.Position{
		X: clampAxis(anchor.X, rect.Width, viewport.Width, margin),
		Y: clampAxis(anchor.Y, rect.Height, viewport.Height, margin),
	}
}

func clampAxis(v, size, dim, margin float64) float64 {
	lo := margin
	hi := dim - size - margin
	if hi < lo {
		// rect does not fit; pin to the leading margin
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AnchorAbove returns the top-left position for a rect of the given size
// centered horizontally on the candle and sitting above its sprite.
func AnchorAbove(candle core.Position, rect core.Size) core.Position {
	return core.Position{
		X: candle.X - rect.Width/2,
		Y: candle.Y - CandleHeight - AnchorMargin - rect.Height,
	}
}

// AnchorBelow returns the top-left position for a rect of the given size
// centered horizontally on the candle and hanging below its base.
func AnchorBelow(candle core.Position, rect core.Size) core.Position {
	return core.Position{
		X: candle.X - rect.Width/2,
		Y: candle.Y + AnchorMargin,
	}
}

// AnchorOffset returns the tooltip position offset from the candle, the
// convention used for hover inspection.
func AnchorOffset(candle core.Position) core.Position {
	return Pos(XY(candle).Add(geom.XY{X: TooltipOffsetX, Y: TooltipOffsetY}))
}
