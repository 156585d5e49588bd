package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilspace/vigil/internal/cache"
	"github.com/vigilspace/vigil/internal/config"
	"github.com/vigilspace/vigil/internal/countries"
	"github.com/vigilspace/vigil/internal/store"
	"github.com/vigilspace/vigil/internal/store/memory"
	"github.com/vigilspace/vigil/pkg/core"
)

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		Canvas:        core.Size{Width: 3000, Height: 2000},
		MaxNoteLength: 200,
		TooltipSize:   core.Size{Width: 220, Height: 120},
		PopoverSize:   core.Size{Width: 400, Height: 320},
		Margin:        8,
	}
}

func newTestSession(t *testing.T, backend store.Backend, cfg config.SessionConfig) *Session {
	t.Helper()
	s := New(Dependencies{
		Backend: backend,
		Cache:   cache.NewCandleCache(),
		Log:     zerolog.Nop(),
	}, cfg)
	s.persistBackoff = time.Millisecond
	t.Cleanup(s.Close)
	return s
}

// measure gives the session the standard test viewport: a 1000x800 window
// at the screen origin, scrolled to (500, 200).
func measure(s *Session) {
	s.SetViewport(core.Rect{Left: 0, Top: 0, Width: 1000, Height: 800})
	s.SetScroll(core.Position{X: 500, Y: 200})
}

func place(t *testing.T, s *Session, pointer core.Position) core.Candle {
	t.Helper()
	require.NoError(t, s.Arm(core.StyleRegular))
	require.NoError(t, s.Click(context.Background(), pointer))
	c, ok := s.deps.Cache.Get(s.Count() - 1)
	require.True(t, ok)
	return c
}

// failingBackend wraps a delegate and fails selected operations.
type failingBackend struct {
	store.Backend
	failCreate bool
	failUpdate bool
	failList   bool
}

var errBackend = errors.New("backend unavailable")

func (f *failingBackend) Create(ctx context.Context, c *core.Candle) error {
	if f.failCreate {
		return errBackend
	}
	return f.Backend.Create(ctx, c)
}

func (f *failingBackend) Update(ctx context.Context, id uint, patch core.CandlePatch) error {
	if f.failUpdate {
		return errBackend
	}
	return f.Backend.Update(ctx, id, patch)
}

func (f *failingBackend) List(ctx context.Context, since time.Time) ([]core.Candle, error) {
	if f.failList {
		return nil, errBackend
	}
	return f.Backend.List(ctx, since)
}

// gatedBackend blocks Create until released, to exercise in-flight states.
type gatedBackend struct {
	store.Backend
	started chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Create(ctx context.Context, c *core.Candle) error {
	close(g.started)
	<-g.release
	return g.Backend.Create(ctx, c)
}

func TestPlacement_ClickCreatesCandleAndOpensModal(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)

	require.NoError(t, s.Arm(core.StyleRegular))
	assert.Equal(t, StateArmed, s.State())

	require.NoError(t, s.Click(context.Background(), core.Position{X: 120, Y: 340}))

	assert.Equal(t, StateIdle, s.State())
	require.Equal(t, 1, s.Count())

	c, ok := s.deps.Cache.Get(0)
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 620, Y: 540}, c.Pos)
	assert.Empty(t, c.Note)
	assert.NotZero(t, c.ID)
	require.NotNil(t, c.Placement)
	assert.Equal(t, core.Position{X: 120, Y: 340}, c.Placement.Pointer)
	assert.Equal(t, core.Position{X: 500, Y: 200}, c.Placement.Scroll)

	m := s.Modal()
	assert.True(t, m.Open)
	assert.Equal(t, 0, m.TargetIndex)
	assert.Equal(t, c.ID, m.TargetID)
}

func TestPlacement_TargetIndexIsPreAppendCount(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)

	place(t, s, core.Position{X: 10, Y: 10})
	s.Cancel()
	place(t, s, core.Position{X: 20, Y: 20})

	assert.Equal(t, 1, s.Modal().TargetIndex)
}

func TestPlacement_ClickWhileIdleIsNoop(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)

	require.NoError(t, s.Click(context.Background(), core.Position{X: 120, Y: 340}))
	assert.Zero(t, s.Count())
	assert.Equal(t, StateIdle, s.State())
}

func TestPlacement_ClickOutsideCanvasDisarms(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	s.SetViewport(core.Rect{Width: 1000, Height: 800})
	s.SetScroll(core.Position{X: 2900, Y: 0})

	require.NoError(t, s.Arm(core.StyleRegular))
	// world x = 200 + 2900 = 3100, past the 3000-wide canvas
	require.NoError(t, s.Click(context.Background(), core.Position{X: 200, Y: 100}))

	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.Count())
	assert.False(t, s.Modal().Open)
}

func TestPlacement_CreateFailureRevertsToIdle(t *testing.T) {
	s := newTestSession(t, &failingBackend{Backend: memory.New(), failCreate: true}, testConfig())
	measure(s)

	require.NoError(t, s.Arm(core.StyleRegular))
	err := s.Click(context.Background(), core.Position{X: 120, Y: 340})
	assert.ErrorIs(t, err, ErrCreateFailed)
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.Count())
	assert.False(t, s.Modal().Open)
}

func TestPlacement_SecondClickIgnoredWhileInFlight(t *testing.T) {
	gate := &gatedBackend{
		Backend: memory.New(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestSession(t, gate, testConfig())
	measure(s)

	require.NoError(t, s.Arm(core.StyleRegular))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Click(context.Background(), core.Position{X: 120, Y: 340})
	}()
	<-gate.started
	assert.Equal(t, StateAwaitingCommit, s.State())

	// second click must not re-arm or double-create
	require.NoError(t, s.Click(context.Background(), core.Position{X: 130, Y: 350}))

	close(gate.release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, s.Count())
}

func TestPlacement_ArmRejectsUnknownStyle(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	assert.Error(t, s.Arm(core.Style("gigantic")))
	assert.Equal(t, StateIdle, s.State())
}

func TestPlacement_ArmDefaultsToRegular(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)

	require.NoError(t, s.Arm(""))
	require.NoError(t, s.Click(context.Background(), core.Position{X: 10, Y: 10}))

	c, ok := s.deps.Cache.Get(0)
	require.True(t, ok)
	assert.Equal(t, core.StyleRegular, c.Style)
}

func TestGhost_TrackedOnlyWhileArmed(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)

	s.PointerMove(core.Position{X: 50, Y: 50})
	_, ok := s.GhostPosition()
	assert.False(t, ok, "idle session must not track the pointer")

	require.NoError(t, s.Arm(core.StyleRegular))
	s.PointerMove(core.Position{X: 120, Y: 340})
	ghost, ok := s.GhostPosition()
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 620, Y: 540}, ghost)

	s.Disarm()
	_, ok = s.GhostPosition()
	assert.False(t, ok, "disarm must clear the ghost preview")
}

func TestAnnotation_DraftTruncation(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})

	long := strings.Repeat("x", 250)
	require.NoError(t, s.SetDraftNote(long))
	assert.Len(t, s.Modal().DraftNote, 200)
	assert.Equal(t, "200/200", s.NoteCounter())

	// truncation is idempotent
	require.NoError(t, s.SetDraftNote(s.Modal().DraftNote))
	assert.Len(t, s.Modal().DraftNote, 200)
}

func TestAnnotation_TruncationCountsRunes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxNoteLength = 3
	s := newTestSession(t, memory.New(), cfg)
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftNote("héllo"))
	assert.Equal(t, "hél", s.Modal().DraftNote)
	assert.Equal(t, "3/3", s.NoteCounter())
}

func TestAnnotation_CountryValidation(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftCountry("fr"))
	assert.Equal(t, "FR", s.Modal().DraftCountry)

	assert.ErrorIs(t, s.SetDraftCountry("ZZ"), countries.ErrUnknownCountry)
	assert.Equal(t, "FR", s.Modal().DraftCountry, "invalid code must not clobber the draft")

	require.NoError(t, s.SetDraftCountry(""))
	assert.Empty(t, s.Modal().DraftCountry)
}

func TestAnnotation_SubmitAppliesOptimisticallyAndPersists(t *testing.T) {
	backend := memory.New()
	s := newTestSession(t, backend, testConfig())
	measure(s)
	c := place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftNote("thinking of you"))
	require.NoError(t, s.SetDraftCountry("de"))
	require.NoError(t, s.Submit())

	// local mutation is visible immediately, before any store round-trip
	got, ok := s.deps.Cache.GetByID(c.ID)
	require.True(t, ok)
	assert.Equal(t, "thinking of you", got.Note)
	assert.Equal(t, "DE", got.CountryCode)
	assert.Equal(t, c.Pos, got.Pos, "mutation must not move the candle")
	assert.False(t, s.Modal().Open)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	rows, err := backend.List(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "thinking of you", rows[0].Note)
	assert.Equal(t, "DE", rows[0].CountryCode)
}

func TestAnnotation_OperationsRequireOpenModal(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())

	assert.ErrorIs(t, s.SetDraftNote("x"), ErrModalClosed)
	assert.ErrorIs(t, s.SetDraftCountry("FR"), ErrModalClosed)
	assert.ErrorIs(t, s.Submit(), ErrModalClosed)
}

func TestAnnotation_CancelDiscardsDraft(t *testing.T) {
	backend := memory.New()
	s := newTestSession(t, backend, testConfig())
	measure(s)
	c := place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftNote("never mind"))
	s.Cancel()

	assert.False(t, s.Modal().Open)
	got, ok := s.deps.Cache.GetByID(c.ID)
	require.True(t, ok)
	assert.Empty(t, got.Note)
}

func TestAnnotation_NotesAreWriteOnceByDefault(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftNote("first"))
	require.NoError(t, s.Submit())

	err := s.OpenAnnotation(0)
	assert.ErrorIs(t, err, ErrNoteLocked)
}

func TestAnnotation_ReopenSeedsDrafts(t *testing.T) {
	cfg := testConfig()
	cfg.ReopenNotes = true
	s := newTestSession(t, memory.New(), cfg)
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftNote("first"))
	require.NoError(t, s.SetDraftCountry("IT"))
	require.NoError(t, s.Submit())

	require.NoError(t, s.OpenAnnotation(0))
	m := s.Modal()
	assert.Equal(t, "first", m.DraftNote)
	assert.Equal(t, "IT", m.DraftCountry)
}

func TestAnnotation_OpenUnannotatedCandleAlwaysAllowed(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})
	s.Cancel()

	require.NoError(t, s.OpenAnnotation(0))
	assert.True(t, s.Modal().Open)
}

func TestAnnotation_PopoverAnchorRecomputedFromWorld(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 500, Y: 400})

	before, ok := s.PopoverAnchor()
	require.True(t, ok)

	// scrolling while the modal is open moves the popover with the candle
	s.SetScroll(core.Position{X: 600, Y: 200})
	after, ok := s.PopoverAnchor()
	require.True(t, ok)
	assert.Equal(t, before.X-100, after.X)
}

func TestPersist_FailureMarksDirtyKeepsLocalNote(t *testing.T) {
	backend := &failingBackend{Backend: memory.New()}
	s := newTestSession(t, backend, testConfig())
	measure(s)
	c := place(t, s, core.Position{X: 10, Y: 10})

	backend.failUpdate = true
	require.NoError(t, s.SetDraftNote("lost to the wire"))
	require.NoError(t, s.Submit())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	got, ok := s.deps.Cache.GetByID(c.ID)
	require.True(t, ok)
	assert.True(t, got.Dirty)
	assert.Equal(t, "lost to the wire", got.Note, "optimistic mutation is never rolled back")
}

func TestPersist_RetrySucceedsAndClearsDirty(t *testing.T) {
	backend := &flakyBackend{Backend: memory.New(), failures: 2}
	s := newTestSession(t, backend, testConfig())
	measure(s)
	c := place(t, s, core.Position{X: 10, Y: 10})

	require.NoError(t, s.SetDraftNote("eventually"))
	require.NoError(t, s.Submit())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	got, ok := s.deps.Cache.GetByID(c.ID)
	require.True(t, ok)
	assert.False(t, got.Dirty)

	rows, err := backend.Backend.List(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "eventually", rows[0].Note)
}

// flakyBackend fails Update a fixed number of times before succeeding.
type flakyBackend struct {
	store.Backend
	failures int
}

func (f *flakyBackend) Update(ctx context.Context, id uint, patch core.CandlePatch) error {
	if f.failures > 0 {
		f.failures--
		return errBackend
	}
	return f.Backend.Update(ctx, id, patch)
}

func TestLoad_ReplacesCache(t *testing.T) {
	backend := memory.New()
	for i := 0; i < 3; i++ {
		c := core.Candle{Pos: core.Position{X: float64(i)}}
		require.NoError(t, backend.Create(context.Background(), &c))
	}

	s := newTestSession(t, backend, testConfig())
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 3, s.Count())
}

func TestLoad_FailureLeavesCacheUntouched(t *testing.T) {
	backend := &failingBackend{Backend: memory.New()}
	s := newTestSession(t, backend, testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})

	backend.failList = true
	err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, 1, s.Count(), "failed load must not clear the cache")
}

func TestLoad_WindowCutsOffOldCandles(t *testing.T) {
	backend := memory.New()
	now := time.Now()
	backend.Now = func() time.Time { return now.Add(-48 * time.Hour) }
	old := core.Candle{Pos: core.Position{X: 1}}
	require.NoError(t, backend.Create(context.Background(), &old))
	backend.Now = func() time.Time { return now }
	fresh := core.Candle{Pos: core.Position{X: 2}}
	require.NoError(t, backend.Create(context.Background(), &fresh))

	cfg := testConfig()
	cfg.LoadWindow = 24 * time.Hour
	s := newTestSession(t, backend, cfg)

	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, 1, s.Count())
	c, _ := s.deps.Cache.Get(0)
	assert.Equal(t, fresh.ID, c.ID)
}

func TestHover_ShowsNoteAndDate(t *testing.T) {
	backend := memory.New()
	backend.Now = func() time.Time {
		return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	}
	s := newTestSession(t, backend, testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})
	require.NoError(t, s.SetDraftNote("hello"))
	require.NoError(t, s.Submit())

	s.HoverEnter(0)
	h := s.Hover()
	assert.True(t, h.Visible)
	assert.Equal(t, "hello", h.Text)
	assert.Equal(t, "Mar 14, 2026", h.Date)
}

func TestHover_NoteLessCandleShowsNothing(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})
	s.Cancel()

	s.HoverEnter(0)
	assert.False(t, s.Hover().Visible)
}

func TestHover_LeaveRetainsFields(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)
	place(t, s, core.Position{X: 10, Y: 10})
	require.NoError(t, s.SetDraftNote("still here"))
	require.NoError(t, s.Submit())

	s.HoverEnter(0)
	s.HoverLeave()
	h := s.Hover()
	assert.False(t, h.Visible)
	assert.Equal(t, "still here", h.Text)

	_, ok := s.TooltipPosition()
	assert.False(t, ok)
}

func TestHover_TooltipClampedAtRightEdge(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	s.SetViewport(core.Rect{Width: 1000, Height: 800})

	require.NoError(t, s.Arm(core.StyleRegular))
	require.NoError(t, s.Click(context.Background(), core.Position{X: 990, Y: 100}))
	require.NoError(t, s.SetDraftNote("edge"))
	require.NoError(t, s.Submit())

	s.HoverEnter(0)
	pos, ok := s.TooltipPosition()
	require.True(t, ok)
	// desired left would be 990+20=1010; it slides back to 1000-220-8
	assert.Equal(t, 772.0, pos.X)
}

func TestViewport_CenterScroll(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())

	// before measurement, centering is a no-op
	s.CenterScroll()
	assert.Equal(t, core.Position{}, s.Viewport().Scroll)

	s.SetViewport(core.Rect{Width: 1000, Height: 800})
	s.CenterScroll()
	assert.Equal(t, core.Position{X: 1000, Y: 600}, s.Viewport().Scroll)
}

func TestViewport_ResizeKeepsScroll(t *testing.T) {
	s := newTestSession(t, memory.New(), testConfig())
	measure(s)

	s.Resize(core.Size{Width: 1200, Height: 900})
	vp := s.Viewport()
	assert.Equal(t, 1200.0, vp.Rect.Width)
	assert.Equal(t, 900.0, vp.Rect.Height)
	assert.Equal(t, core.Position{X: 500, Y: 200}, vp.Scroll)
}
