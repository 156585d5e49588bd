// vigil is a line-oriented session driver: it runs the full
// placement-and-annotation workflow against any configured store backend,
// so a whole session can be exercised end to end from a terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vigilspace/vigil/internal/cache"
	"github.com/vigilspace/vigil/internal/config"
	"github.com/vigilspace/vigil/internal/dispatcher"
	"github.com/vigilspace/vigil/internal/logging"
	"github.com/vigilspace/vigil/internal/session"
	"github.com/vigilspace/vigil/internal/store"
	"github.com/vigilspace/vigil/internal/telemetry"
	"github.com/vigilspace/vigil/pkg/core"
)

var _ session.Telemetry = (*telemetry.Manager)(nil)

// zerologAdapter satisfies the dispatcher's Logger interface.
type zerologAdapter struct {
	log zerolog.Logger
}

func (a zerologAdapter) Debug(msg string, kv ...any) { a.log.Debug().Fields(kv).Msg(msg) }
func (a zerologAdapter) Info(msg string, kv ...any)  { a.log.Info().Fields(kv).Msg(msg) }
func (a zerologAdapter) Error(msg string, kv ...any) { a.log.Error().Fields(kv).Msg(msg) }

func main() {
	if err := config.Load("."); err != nil {
		panic(err)
	}

	log, err := logging.New(logging.Options{
		Level:   config.GetString("logLevel"),
		Console: true,
	})
	if err != nil {
		panic(err)
	}

	backend, err := store.NewBackend(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store backend")
	}
	if err := backend.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store backend")
	}
	defer backend.Close()

	tel := telemetry.NewManager(log)
	tel.Connect()
	defer tel.Close()

	sess := session.New(session.Dependencies{
		Backend:   backend,
		Cache:     cache.NewCandleCache(),
		Log:       log,
		Telemetry: tel,
	}, config.Session())
	defer sess.Close()

	d, err := dispatcher.New(zerologAdapter{log: log})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dispatcher")
	}
	registerHandlers(d, sess)

	ctx := context.Background()
	if err := sess.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("starting with an empty canvas")
	}
	sess.SetViewport(core.Rect{Width: 1280, Height: 800})
	sess.CenterScroll()

	fmt.Printf("vigil session — %d candles. Commands: arm [style], disarm, "+
		"click X Y, move X Y, note TEXT, country CC, share, cancel, hover N, "+
		"leave, open N, scroll X Y, resize W H, center, list, count, quit\n",
		sess.Count())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := handleLine(d, sess, line); err != nil {
			fmt.Println("error:", err)
		}
	}

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sess.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Msg("pending writes not flushed")
	}
}

func registerHandlers(d *dispatcher.Dispatcher, sess *session.Session) {
	d.Register(dispatcher.EventArm, func(e dispatcher.Event) (any, error) {
		return nil, sess.Arm(core.Style(e.Text))
	})
	d.Register(dispatcher.EventDisarm, func(e dispatcher.Event) (any, error) {
		sess.Disarm()
		return nil, nil
	})
	d.Register(dispatcher.EventClick, func(e dispatcher.Event) (any, error) {
		if err := sess.Click(context.Background(), e.Pointer); err != nil {
			return nil, err
		}
		return sess.Modal(), nil
	}, dispatcher.Logged())
	d.Register(dispatcher.EventPointerMove, func(e dispatcher.Event) (any, error) {
		sess.PointerMove(e.Pointer)
		return nil, nil
	}, dispatcher.Buffered(64))
	d.Register(dispatcher.EventNoteDraft, func(e dispatcher.Event) (any, error) {
		if err := sess.SetDraftNote(e.Text); err != nil {
			return nil, err
		}
		return sess.NoteCounter(), nil
	})
	d.Register(dispatcher.EventCountry, func(e dispatcher.Event) (any, error) {
		return nil, sess.SetDraftCountry(e.Text)
	})
	d.Register(dispatcher.EventSubmit, func(e dispatcher.Event) (any, error) {
		return nil, sess.Submit()
	}, dispatcher.Logged())
	d.Register(dispatcher.EventCancel, func(e dispatcher.Event) (any, error) {
		sess.Cancel()
		return nil, nil
	})
	d.Register(dispatcher.EventHoverEnter, func(e dispatcher.Event) (any, error) {
		sess.HoverEnter(e.Index)
		return sess.Hover(), nil
	})
	d.Register(dispatcher.EventHoverLeave, func(e dispatcher.Event) (any, error) {
		sess.HoverLeave()
		return nil, nil
	})
	d.Register(dispatcher.EventResize, func(e dispatcher.Event) (any, error) {
		sess.Resize(e.Size)
		return nil, nil
	})
}

func handleLine(d *dispatcher.Dispatcher, sess *session.Session, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "arm":
		style := ""
		if len(args) > 0 {
			style = args[0]
		}
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventArm, Text: style, Timestamp: time.Now()})
		return err
	case "disarm":
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventDisarm})
		return err
	case "click":
		p, err := parsePos(args)
		if err != nil {
			return err
		}
		result, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventClick, Pointer: p, Timestamp: time.Now()})
		if err != nil {
			return err
		}
		if m, ok := result.(session.Modal); ok && m.Open {
			fmt.Printf("candle %d placed, composer open (index %d)\n", m.TargetID, m.TargetIndex)
		}
		return nil
	case "move":
		p, err := parsePos(args)
		if err != nil {
			return err
		}
		_, err = d.Dispatch(dispatcher.Event{Name: dispatcher.EventPointerMove, Pointer: p})
		return err
	case "note":
		result, err := d.Dispatch(dispatcher.Event{
			Name: dispatcher.EventNoteDraft,
			Text: strings.TrimSpace(strings.TrimPrefix(line, "note")),
		})
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	case "country":
		if len(args) != 1 {
			return fmt.Errorf("usage: country CC")
		}
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventCountry, Text: args[0]})
		return err
	case "share":
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventSubmit, Timestamp: time.Now()})
		return err
	case "cancel":
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventCancel})
		return err
	case "hover":
		idx, err := parseIndex(args)
		if err != nil {
			return err
		}
		result, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventHoverEnter, Index: idx})
		if err != nil {
			return err
		}
		if h, ok := result.(session.Hover); ok && h.Visible {
			fmt.Printf("%q — %s\n", h.Text, h.Date)
			if pos, ok := sess.TooltipPosition(); ok {
				fmt.Printf("tooltip at (%.0f, %.0f)\n", pos.X, pos.Y)
			}
		}
		return nil
	case "leave":
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventHoverLeave})
		return err
	case "open":
		idx, err := parseIndex(args)
		if err != nil {
			return err
		}
		return sess.OpenAnnotation(idx)
	case "scroll":
		p, err := parsePos(args)
		if err != nil {
			return err
		}
		sess.SetScroll(p)
		return nil
	case "resize":
		if len(args) != 2 {
			return fmt.Errorf("usage: resize W H")
		}
		w, err1 := strconv.ParseFloat(args[0], 64)
		h, err2 := strconv.ParseFloat(args[1], 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("usage: resize W H")
		}
		_, err := d.Dispatch(dispatcher.Event{Name: dispatcher.EventResize, Size: core.Size{Width: w, Height: h}})
		return err
	case "center":
		sess.CenterScroll()
		return nil
	case "list":
		for i, c := range sess.Candles() {
			dirty := ""
			if c.Dirty {
				dirty = " [unsaved]"
			}
			fmt.Printf("%3d  #%d (%.0f, %.0f) %s %q %s%s\n",
				i, c.ID, c.Pos.X, c.Pos.Y, c.Style, c.Note, c.CountryCode, dirty)
		}
		return nil
	case "count":
		fmt.Printf("Total candles: %d\n", sess.Count())
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func parsePos(args []string) (core.Position, error) {
	if len(args) != 2 {
		return core.Position{}, fmt.Errorf("expected X Y")
	}
	x, err1 := strconv.ParseFloat(args[0], 64)
	y, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return core.Position{}, fmt.Errorf("expected numeric X Y")
	}
	return core.Position{X: x, Y: y}, nil
}

func parseIndex(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected index")
	}
	return strconv.Atoi(args[0])
}
