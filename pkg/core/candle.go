// pkg/core/candle.go
package core

import "time"

// Style selects the candle visual placed on the canvas.
type Style string

const (
	StyleRegular Style = "regular"
	StyleTall    Style = "tall"
	StyleWide    Style = "wide"
)

// ValidStyle reports whether s is one of the known candle styles.
func ValidStyle(s Style) bool {
	switch s {
	case StyleRegular, StyleTall, StyleWide:
		return true
	}
	return false
}

// Candle is a persisted point annotation on the shared canvas.
// ID and CreatedAt are assigned by the store at insert time and never change.
// Pos is world-space, assigned once at placement.
type Candle struct {
	ID          uint
	Pos         Position
	Note        string
	CountryCode string
	Style       Style
	Placement   *PlacementSnapshot
	CreatedAt   time.Time

	// Dirty marks a candle whose optimistic local annotation could not be
	// persisted after all retries. It never leaves the session.
	Dirty bool
}

// CandlePatch carries the mutable annotation fields for an update.
// Nil fields are left untouched.
type CandlePatch struct {
	Note        *string
	CountryCode *string
}

// PlacementSnapshot records the viewport state active at the instant a
// candle was placed. Stored alongside the row for later analysis.
type PlacementSnapshot struct {
	Pointer  Position `json:"pointer"`
	Viewport Rect     `json:"viewport"`
	Scroll   Position `json:"scroll"`
}
