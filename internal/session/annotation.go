package session

import (
	"fmt"
	"unicode/utf8"

	"github.com/vigilspace/vigil/internal/cache"
	"github.com/vigilspace/vigil/internal/countries"
	"github.com/vigilspace/vigil/internal/geometry"
	"github.com/vigilspace/vigil/pkg/core"
)

// Modal is the annotation composer state. TargetID is the store identity
// all writes key on; TargetIndex is the cache position captured at open
// time and is used for display only. Anchor is the screen position of the
// opening gesture; the rendered popover position is recomputed from the
// candle's world coordinates instead, since the canvas may scroll while
// the modal is open.
type Modal struct {
	Open         bool
	TargetIndex  int
	TargetID     uint
	DraftNote    string
	DraftCountry string
	Anchor       core.Position
}

// Modal returns a copy of the current annotation state.
func (s *Session) Modal() Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal
}

// OpenAnnotation opens the composer for an existing candle. Candles whose
// note has already been shared stay locked unless reopening is enabled;
// a candle still awaiting its first note can always be opened.
func (s *Session) OpenAnnotation(index int) error {
	c, ok := s.deps.Cache.Get(index)
	if !ok {
		return fmt.Errorf("open annotation: %w", cache.ErrIndexOutOfRange)
	}
	if c.Note != "" && !s.cfg.ReopenNotes {
		return ErrNoteLocked
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modal = Modal{
		Open:         true,
		TargetIndex:  index,
		TargetID:     c.ID,
		DraftNote:    c.Note,
		DraftCountry: c.CountryCode,
	}
	s.hover.Visible = false
	return nil
}

// SetDraftNote stores the draft note, silently truncated to the configured
// maximum length. Truncation counts runes, not bytes, and is idempotent.
func (s *Session) SetDraftNote(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modal.Open {
		return ErrModalClosed
	}
	s.modal.DraftNote = truncateRunes(text, s.cfg.MaxNoteLength)
	return nil
}

// SetDraftCountry validates and stores the draft country tag. The empty
// string clears it.
func (s *Session) SetDraftCountry(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modal.Open {
		return ErrModalClosed
	}
	normalized, err := countries.Normalize(code)
	if err != nil {
		return err
	}
	s.modal.DraftCountry = normalized
	return nil
}

// NoteCounter returns the composer's character counter, e.g. "200/200".
func (s *Session) NoteCounter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d/%d", utf8.RuneCountInString(s.modal.DraftNote), s.cfg.MaxNoteLength)
}

// Submit applies the draft to the cached candle immediately, queues the
// store write keyed by the candle's ID, and closes the modal. The local
// mutation is not rolled back if the write later fails; the persist worker
// marks the candle dirty instead.
func (s *Session) Submit() error {
	s.mu.Lock()
	if !s.modal.Open {
		s.mu.Unlock()
		return ErrModalClosed
	}
	id := s.modal.TargetID
	note := s.modal.DraftNote
	country := s.modal.DraftCountry
	s.modal = Modal{}
	s.mu.Unlock()

	patch := core.CandlePatch{Note: &note, CountryCode: &country}
	if err := s.deps.Cache.UpdateByID(id, patch); err != nil {
		return fmt.Errorf("applying annotation: %w", err)
	}
	s.enqueuePersist(id, patch)
	return nil
}

// Cancel closes the modal and discards the draft. In the new-candle flow
// this leaves the candle permanently without a note.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modal = Modal{}
}

// PopoverAnchor returns the clamped screen position for the annotation
// popover, recomputed from the target candle's world coordinates and the
// current viewport. The second return is false when no modal is open or
// the target is gone.
func (s *Session) PopoverAnchor() (core.Position, bool) {
	s.mu.Lock()
	modal := s.modal
	vp := s.viewport
	s.mu.Unlock()

	if !modal.Open {
		return core.Position{}, false
	}
	c, ok := s.deps.Cache.GetByID(modal.TargetID)
	if !ok {
		return core.Position{}, false
	}

	screen := geometry.ToScreen(c.Pos, vp)
	anchor := geometry.AnchorAbove(screen, s.cfg.PopoverSize)
	viewportSize := core.Size{Width: vp.Rect.Width, Height: vp.Rect.Height}
	return geometry.ClampRect(anchor, s.cfg.PopoverSize, viewportSize, s.cfg.Margin), true
}

func truncateRunes(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}
