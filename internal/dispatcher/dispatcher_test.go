package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vigilspace/vigil/pkg/core"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(&testLogger{})
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	return d
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d := newTestDispatcher(t)

	var got Event
	d.Register(EventClick, func(e Event) (any, error) {
		got = e
		return "placed", nil
	})

	result, err := d.Dispatch(Event{Name: EventClick, Pointer: core.Position{X: 120, Y: 340}})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "placed" {
		t.Errorf("expected result 'placed', got %v", result)
	}
	if got.Pointer.X != 120 || got.Pointer.Y != 340 {
		t.Errorf("expected pointer (120,340), got %+v", got.Pointer)
	}
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	d := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Name: ":NOPE:"})
	if err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d := newTestDispatcher(t)
	d.Register(EventArm, func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(EventArm) {
		t.Error("expected handler for arm event")
	}
	if d.HasHandler(EventSubmit) {
		t.Error("expected no handler for submit event")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d := newTestDispatcher(t)

	var count atomic.Int32
	done := make(chan struct{})
	d.Register(EventPointerMove, func(e Event) (any, error) {
		if count.Add(1) == 10 {
			close(done)
		}
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 10; i++ {
		result, err := d.Dispatch(Event{Name: EventPointerMove})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Fatalf("expected 'queued', got %v", result)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered handler did not process all events")
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(EventPointerMove, func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1))

	// first event occupies the worker, second fills the buffer
	_, _ = d.Dispatch(Event{Name: EventPointerMove})
	_, _ = d.Dispatch(Event{Name: EventPointerMove})

	// give the worker a moment to pick up the first event
	time.Sleep(50 * time.Millisecond)
	_, _ = d.Dispatch(Event{Name: EventPointerMove})

	// at least one more dispatch must now be rejected
	_, err := d.Dispatch(Event{Name: EventPointerMove})
	if err == nil {
		t.Error("expected queue-full error")
	}
	close(block)
}

func TestDispatcher_LoggedHandlerPassesThrough(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register(EventSubmit, func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	result, err := d.Dispatch(Event{Name: EventSubmit})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %v", result)
	}
}
