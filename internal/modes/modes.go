// Package modes interprets normalized key events according to the
// current input mode and produces Actions for the reducer. The engine
// itself never mutates application state: mode transitions are Actions
// too, applied by the reducer like everything else.
//
// The only engine-local state is the one-key lookahead buffer for the
// `g g` sequence, with a deadline judged on event timestamps so tests
// need no real sleeps.
package modes

import (
	"time"
	"unicode"

	"github.com/roelfdiedericks/wavi/internal/types"
)

// DefaultPendingTimeout is how long a lone `g` stays armed.
const DefaultPendingTimeout = 500 * time.Millisecond

// Engine is the modal key interpreter.
type Engine struct {
	timeout time.Duration

	pendingG  bool
	pendingAt time.Time
}

// NewEngine creates an engine. A non-positive timeout selects the default.
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultPendingTimeout
	}
	return &Engine{timeout: timeout}
}

// Handle maps one key event to zero or more actions, given the mode the
// application is currently in.
func (e *Engine) Handle(mode types.Mode, key types.KeyEvent) []types.Action {
	// Ctrl+C always quits, regardless of mode.
	if key.Kind == types.KeyCtrlC {
		e.reset()
		return []types.Action{types.Quit{}}
	}

	if mode == types.ModeInsert {
		return e.handleInsert(key)
	}
	return e.handleNormal(key)
}

func (e *Engine) handleNormal(key types.KeyEvent) []types.Action {
	// A stale pending `g` is discarded before the new key is judged.
	if e.pendingG && key.When.Sub(e.pendingAt) > e.timeout {
		e.reset()
	}

	if key.Kind == types.KeyRune && key.Rune == 'g' {
		if e.pendingG {
			e.reset()
			return []types.Action{types.JumpTop{}}
		}
		e.pendingG = true
		e.pendingAt = key.When
		return nil
	}

	// Any other key cancels an armed sequence.
	e.reset()

	switch key.Kind {
	case types.KeyDown:
		return []types.Action{types.MoveCursor{Dir: types.DirDown}}
	case types.KeyUp:
		return []types.Action{types.MoveCursor{Dir: types.DirUp}}
	case types.KeyLeft, types.KeyRight:
		return []types.Action{types.SwitchPanel{}}
	case types.KeyRune:
		switch key.Rune {
		case 'j':
			return []types.Action{types.MoveCursor{Dir: types.DirDown}}
		case 'k':
			return []types.Action{types.MoveCursor{Dir: types.DirUp}}
		case 'h', 'l':
			return []types.Action{types.SwitchPanel{}}
		case 'G':
			return []types.Action{types.JumpBottom{}}
		case 'i':
			return []types.Action{types.EnterInsert{}}
		case 'a':
			return []types.Action{types.DraftReply{}}
		case 'q':
			return []types.Action{types.Quit{}}
		}
	}
	return nil
}

func (e *Engine) handleInsert(key types.KeyEvent) []types.Action {
	switch key.Kind {
	case types.KeyEsc:
		return []types.Action{types.ExitInsert{}}
	case types.KeyEnter:
		return []types.Action{types.SendMessage{}}
	case types.KeyBackspace:
		return []types.Action{types.Backspace{}}
	case types.KeyRune:
		if unicode.IsPrint(key.Rune) {
			return []types.Action{types.ComposeChar{Rune: key.Rune}}
		}
	}
	return nil
}

// PendingG reports whether a `g` is armed, for tests.
func (e *Engine) PendingG() bool {
	return e.pendingG
}

func (e *Engine) reset() {
	e.pendingG = false
	e.pendingAt = time.Time{}
}
