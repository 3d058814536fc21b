package modes

import (
	"reflect"
	"testing"
	"time"

	"github.com/roelfdiedericks/wavi/internal/types"
)

func rune_(r rune, at time.Time) types.KeyEvent {
	return types.KeyEvent{Kind: types.KeyRune, Rune: r, When: at}
}

func key(k types.KeyKind, at time.Time) types.KeyEvent {
	return types.KeyEvent{Kind: k, When: at}
}

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func TestBindingTable(t *testing.T) {
	tests := []struct {
		name string
		mode types.Mode
		key  types.KeyEvent
		want []types.Action
	}{
		{"normal i enters insert", types.ModeNormal, rune_('i', t0), []types.Action{types.EnterInsert{}}},
		{"normal h switches panel", types.ModeNormal, rune_('h', t0), []types.Action{types.SwitchPanel{}}},
		{"normal l switches panel", types.ModeNormal, rune_('l', t0), []types.Action{types.SwitchPanel{}}},
		{"normal j moves down", types.ModeNormal, rune_('j', t0), []types.Action{types.MoveCursor{Dir: types.DirDown}}},
		{"normal k moves up", types.ModeNormal, rune_('k', t0), []types.Action{types.MoveCursor{Dir: types.DirUp}}},
		{"normal down arrow aliases j", types.ModeNormal, key(types.KeyDown, t0), []types.Action{types.MoveCursor{Dir: types.DirDown}}},
		{"normal up arrow aliases k", types.ModeNormal, key(types.KeyUp, t0), []types.Action{types.MoveCursor{Dir: types.DirUp}}},
		{"normal left arrow switches panel", types.ModeNormal, key(types.KeyLeft, t0), []types.Action{types.SwitchPanel{}}},
		{"normal G jumps bottom", types.ModeNormal, rune_('G', t0), []types.Action{types.JumpBottom{}}},
		{"normal q quits", types.ModeNormal, rune_('q', t0), []types.Action{types.Quit{}}},
		{"normal a requests draft", types.ModeNormal, rune_('a', t0), []types.Action{types.DraftReply{}}},
		{"normal ctrl+c quits", types.ModeNormal, key(types.KeyCtrlC, t0), []types.Action{types.Quit{}}},
		{"normal unknown rune ignored", types.ModeNormal, rune_('z', t0), nil},
		{"normal enter ignored", types.ModeNormal, key(types.KeyEnter, t0), nil},
		{"normal esc ignored", types.ModeNormal, key(types.KeyEsc, t0), nil},

		{"insert rune composes", types.ModeInsert, rune_('x', t0), []types.Action{types.ComposeChar{Rune: 'x'}}},
		{"insert space composes", types.ModeInsert, rune_(' ', t0), []types.Action{types.ComposeChar{Rune: ' '}}},
		{"insert backspace deletes", types.ModeInsert, key(types.KeyBackspace, t0), []types.Action{types.Backspace{}}},
		{"insert enter sends", types.ModeInsert, key(types.KeyEnter, t0), []types.Action{types.SendMessage{}}},
		{"insert esc exits", types.ModeInsert, key(types.KeyEsc, t0), []types.Action{types.ExitInsert{}}},
		{"insert ctrl+c quits", types.ModeInsert, key(types.KeyCtrlC, t0), []types.Action{types.Quit{}}},
		{"insert arrow ignored", types.ModeInsert, key(types.KeyUp, t0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(0)
			got := e.Handle(tt.mode, tt.key)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Handle(%v, %v) = %#v, want %#v", tt.mode, tt.key, got, tt.want)
			}
		})
	}
}

// No key outside the binding table may produce an action in NORMAL mode.
func TestNormalModeClosedTable(t *testing.T) {
	bound := map[rune]bool{'i': true, 'h': true, 'l': true, 'j': true, 'k': true, 'G': true, 'q': true, 'a': true, 'g': true}
	for r := rune(' '); r <= '~'; r++ {
		e := NewEngine(0)
		got := e.Handle(types.ModeNormal, rune_(r, t0))
		if bound[r] {
			continue
		}
		if len(got) != 0 {
			t.Errorf("unbound key %q produced actions %#v", r, got)
		}
	}
}

func TestGGJumpsTop(t *testing.T) {
	e := NewEngine(0)

	got := e.Handle(types.ModeNormal, rune_('g', t0))
	if len(got) != 0 {
		t.Fatalf("first g emitted %#v, want nothing", got)
	}
	if !e.PendingG() {
		t.Fatal("first g did not arm the pending buffer")
	}

	got = e.Handle(types.ModeNormal, rune_('g', t0.Add(100*time.Millisecond)))
	want := []types.Action{types.JumpTop{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("second g emitted %#v, want %#v", got, want)
	}
	if e.PendingG() {
		t.Fatal("pending buffer still armed after gg")
	}
}

func TestLoneGExpires(t *testing.T) {
	e := NewEngine(500 * time.Millisecond)

	e.Handle(types.ModeNormal, rune_('g', t0))

	// Past the deadline the second g must re-arm, not jump.
	got := e.Handle(types.ModeNormal, rune_('g', t0.Add(time.Second)))
	if len(got) != 0 {
		t.Fatalf("stale g sequence emitted %#v", got)
	}
	if !e.PendingG() {
		t.Fatal("second g after expiry did not re-arm")
	}
}

func TestNonGKeyCancelsPending(t *testing.T) {
	e := NewEngine(0)
	e.Handle(types.ModeNormal, rune_('g', t0))
	e.Handle(types.ModeNormal, rune_('j', t0.Add(10*time.Millisecond)))
	if e.PendingG() {
		t.Fatal("pending g survived an unrelated key")
	}

	// and the following g starts a fresh sequence
	got := e.Handle(types.ModeNormal, rune_('g', t0.Add(20*time.Millisecond)))
	if len(got) != 0 {
		t.Fatalf("fresh g emitted %#v", got)
	}
}
