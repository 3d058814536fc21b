package reducer

import (
	"sync"
	"testing"
	"time"

	"github.com/roelfdiedericks/wavi/internal/modes"
	"github.com/roelfdiedericks/wavi/internal/mux"
	"github.com/roelfdiedericks/wavi/internal/state"
	"github.com/roelfdiedericks/wavi/internal/types"
)

// recordingObserver captures every snapshot and signals each change so
// the test can sequence pushes against the consumer.
type recordingObserver struct {
	mu      sync.Mutex
	changes []*state.AppState
	ticks   int
	signal  chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{signal: make(chan struct{}, 64)}
}

func (o *recordingObserver) OnChange(snap *state.AppState) {
	o.mu.Lock()
	o.changes = append(o.changes, snap)
	o.mu.Unlock()
	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *recordingObserver) OnTick(*state.AppState) {
	o.mu.Lock()
	o.ticks++
	o.mu.Unlock()
}

func (o *recordingObserver) waitForChange(t *testing.T, pred func(*state.AppState) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		o.mu.Lock()
		for _, s := range o.changes {
			if pred(s) {
				o.mu.Unlock()
				return
			}
		}
		o.mu.Unlock()
		select {
		case <-o.signal:
		case <-deadline:
			t.Fatal("timed out waiting for observed state change")
		}
	}
}

func key(r rune, at time.Time) types.KeyEvent {
	return types.KeyEvent{Kind: types.KeyRune, Rune: r, When: at}
}

// The full pipeline: updates and keys go in one end, a quit comes out
// the other with the loop stopped and the multiplexer closed.
func TestLoopComposeSendAndQuit(t *testing.T) {
	m := mux.New(8, 8)
	eng := modes.NewEngine(500 * time.Millisecond)
	r := fixedReducer()
	st := state.New()
	obs := newRecordingObserver()
	loop := NewLoop(m, eng, r, st, obs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run()
	}()

	// seed a chat and wait until the loop has applied it, so the key
	// presses below land on a state with an active chat
	if err := m.PushUpdate(incoming("a", "Alice", "hello", base)); err != nil {
		t.Fatalf("seed push failed: %v", err)
	}
	obs.waitForChange(t, func(s *state.AppState) bool { return len(s.Chats) == 1 })

	at := base
	for _, k := range []types.KeyEvent{
		key('i', at), // enter INSERT
		key('h', at),
		key('i', at),
		{Kind: types.KeyEnter, When: at}, // send "hi"
		{Kind: types.KeyEsc, When: at},   // back to NORMAL
		{Kind: types.KeyCtrlC, When: at}, // quit
	} {
		if err := m.PushKey(k); err != nil {
			t.Fatalf("push key %+v failed: %v", k, err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after Ctrl+C")
	}

	if !st.Quitting {
		t.Error("state not marked quitting after loop exit")
	}
	msgs := st.Messages["a"]
	last := msgs[len(msgs)-1]
	if last.Text != "hi" || !last.FromMe || last.Delivery != types.DeliveryPending {
		t.Errorf("composed message = %+v, want pending \"hi\" from me", last)
	}
	if st.Mode != types.ModeNormal {
		t.Errorf("mode = %v at exit, want NORMAL", st.Mode)
	}

	// intake is closed: producers get ErrClosed and the stream has ended
	if err := m.PushUpdate(incoming("a", "Alice", "late", base)); err != mux.ErrClosed {
		t.Errorf("PushUpdate after quit = %v, want ErrClosed", err)
	}
	select {
	case _, ok := <-m.Events():
		if ok {
			t.Error("event stream still open after quit")
		}
	case <-time.After(time.Second):
		t.Error("event stream not closed after quit")
	}
}

// Ticks reach the observer as ticks, not as changes.
func TestLoopRoutesTicks(t *testing.T) {
	m := mux.New(8, 8)
	eng := modes.NewEngine(500 * time.Millisecond)
	r := fixedReducer()
	st := state.New()
	obs := newRecordingObserver()
	loop := NewLoop(m, eng, r, st, obs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run()
	}()

	m.PushTick(base)
	deadline := time.After(5 * time.Second)
	for {
		obs.mu.Lock()
		ticks, changes := obs.ticks, len(obs.changes)
		obs.mu.Unlock()
		if ticks >= 1 {
			if changes != 0 {
				t.Errorf("tick produced %d state changes", changes)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("tick never reached the observer")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := m.PushKey(types.KeyEvent{Kind: types.KeyCtrlC, When: base}); err != nil {
		t.Fatalf("push quit failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}
