package render

import (
	"errors"
	"testing"
	"time"

	"github.com/roelfdiedericks/wavi/internal/state"
	"github.com/roelfdiedericks/wavi/internal/types"
)

var projBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func projState(chats, msgs int) *state.AppState {
	s := state.New()
	for i := 0; i < chats; i++ {
		s.Chats = append(s.Chats, types.Chat{
			ID:   types.ChatID(rune('a' + i)),
			Name: string(rune('A' + i)),
		})
	}
	for i := 0; i < msgs; i++ {
		s.Messages["a"] = append(s.Messages["a"], types.Message{
			ID:     types.MessageID(rune('0' + i)),
			ChatID: "a",
			Sender: "Alice",
			Text:   "m",
		})
	}
	s.ClampCursor()
	return s
}

func TestProjectWindowsAroundCursor(t *testing.T) {
	s := projState(30, 40)
	s.Cursor = state.Cursor{ChatIndex: 20, MsgIndex: 35}
	s.ClampCursor()

	f := Project(s, 80, 13, projBase) // 10 body rows
	if len(f.Chats) != 10 {
		t.Fatalf("chat window = %d rows, want 10", len(f.Chats))
	}
	if len(f.Messages) != 10 {
		t.Fatalf("message window = %d rows, want 10", len(f.Messages))
	}

	var selChats, selMsgs int
	for _, c := range f.Chats {
		if c.Selected {
			selChats++
		}
	}
	for _, m := range f.Messages {
		if m.Selected {
			selMsgs++
		}
	}
	if selChats != 1 || selMsgs != 1 {
		t.Errorf("selected rows: chats=%d msgs=%d, want 1 and 1", selChats, selMsgs)
	}
}

func TestProjectSmallStateFits(t *testing.T) {
	s := projState(2, 3)
	f := Project(s, 80, 24, projBase)
	if len(f.Chats) != 2 || len(f.Messages) != 3 {
		t.Errorf("got %d chats, %d messages; want all of them", len(f.Chats), len(f.Messages))
	}
}

func TestDeliveryMarkers(t *testing.T) {
	s := state.New()
	s.Chats = []types.Chat{{ID: "a", Name: "A"}}
	s.Messages["a"] = []types.Message{
		{ID: "1", ChatID: "a", Sender: "me", FromMe: true, Delivery: types.DeliveryPending},
		{ID: "2", ChatID: "a", Sender: "me", FromMe: true, Delivery: types.DeliverySent},
		{ID: "3", ChatID: "a", Sender: "me", FromMe: true, Delivery: types.DeliveryFailed},
		{ID: "4", ChatID: "a", Sender: "Alice"},
	}
	s.ClampCursor()

	f := Project(s, 80, 24, projBase)
	want := []string{"…", "✓", "✗", ""}
	for i, m := range f.Messages {
		if m.Marker != want[i] {
			t.Errorf("marker[%d] = %q, want %q", i, m.Marker, want[i])
		}
	}
}

func TestNoticeExpires(t *testing.T) {
	s := projState(1, 1)
	s.Notice = "send failed"
	s.NoticeAt = projBase

	if f := Project(s, 80, 24, projBase.Add(time.Second)); f.Notice != "send failed" {
		t.Errorf("fresh notice missing, got %q", f.Notice)
	}
	if f := Project(s, 80, 24, projBase.Add(time.Minute)); f.Notice != "" {
		t.Errorf("stale notice still shown: %q", f.Notice)
	}
}

// --- scheduler ---

type fakeRenderer struct {
	frames int
	last   Frame
	fail   error
	w, h   int
}

func (f *fakeRenderer) Render(fr Frame) error {
	f.frames++
	f.last = fr
	return f.fail
}

func (f *fakeRenderer) Size() (int, int) {
	if f.w == 0 {
		return 80, 24
	}
	return f.w, f.h
}

func TestSchedulerDebounces(t *testing.T) {
	fr := &fakeRenderer{}
	sc := NewScheduler(fr, 33*time.Millisecond)
	now := projBase
	sc.SetClock(func() time.Time { return now })

	s := projState(1, 1)

	sc.OnChange(s.Snapshot()) // renders: first ever
	now = now.Add(time.Millisecond)
	sc.OnChange(s.Snapshot()) // inside window: parked
	now = now.Add(time.Millisecond)
	sc.OnChange(s.Snapshot()) // still parked
	if fr.frames != 1 {
		t.Fatalf("frames = %d inside debounce window, want 1", fr.frames)
	}

	now = now.Add(50 * time.Millisecond)
	sc.OnTick(s.Snapshot()) // flushes the parked snapshot
	if fr.frames != 2 {
		t.Fatalf("frames = %d after tick, want 2", fr.frames)
	}

	sc.OnTick(s.Snapshot()) // clean and idle: no redraw
	if fr.frames != 2 {
		t.Errorf("idle tick rendered, frames = %d", fr.frames)
	}
}

// A resize arrives as a tick with no state change; the frame must be
// re-projected for the new dimensions.
func TestSchedulerRedrawsOnResize(t *testing.T) {
	fr := &fakeRenderer{}
	sc := NewScheduler(fr, 33*time.Millisecond)
	now := projBase
	sc.SetClock(func() time.Time { return now })

	s := projState(1, 1)
	sc.OnChange(s.Snapshot())
	if fr.frames != 1 {
		t.Fatalf("frames = %d after first change, want 1", fr.frames)
	}

	fr.w, fr.h = 120, 40
	now = now.Add(time.Second)
	sc.OnTick(s.Snapshot())
	if fr.frames != 2 {
		t.Fatalf("frames = %d after resize tick, want 2", fr.frames)
	}
	if fr.last.Width != 120 || fr.last.Height != 40 {
		t.Errorf("frame projected at %dx%d, want 120x40", fr.last.Width, fr.last.Height)
	}

	sc.OnTick(s.Snapshot()) // dimensions stable again: no redraw
	if fr.frames != 2 {
		t.Errorf("idle tick rendered, frames = %d", fr.frames)
	}
}

func TestSchedulerRetriesAfterFailure(t *testing.T) {
	fr := &fakeRenderer{fail: errors.New("resize mid-draw")}
	sc := NewScheduler(fr, 0)
	now := projBase
	sc.SetClock(func() time.Time { return now })

	s := projState(1, 1)
	sc.OnChange(s.Snapshot())
	if fr.frames != 1 || sc.Failures() != 1 {
		t.Fatalf("frames=%d failures=%d after failed draw", fr.frames, sc.Failures())
	}

	fr.fail = nil
	now = now.Add(time.Second)
	sc.OnTick(s.Snapshot())
	if fr.frames != 2 || sc.Failures() != 0 {
		t.Errorf("retry on tick: frames=%d failures=%d", fr.frames, sc.Failures())
	}
}
