// Package term owns the terminal: raw key capture on one side, frame
// drawing on the other, both over a single tcell screen. It knows
// nothing about application state: it consumes render.Frame values and
// produces normalized types.KeyEvent values.
package term

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/roelfdiedericks/wavi/internal/render"
	"github.com/roelfdiedericks/wavi/internal/types"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

const sidebarRatio = 3 // sidebar takes width/sidebarRatio columns

// Styles
var (
	styleDefault  = tcell.StyleDefault
	styleSelected = tcell.StyleDefault.Reverse(true)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleUnread   = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleMe       = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleFailed   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleMode     = tcell.StyleDefault.Foreground(tcell.ColorDodgerBlue).Bold(true)
	styleNotice   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

// Screen wraps a tcell screen as both the input and render adapter.
type Screen struct {
	scr tcell.Screen
}

// New initializes the terminal in raw mode.
func New() (*Screen, error) {
	scr, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := scr.Init(); err != nil {
		return nil, fmt.Errorf("failed to init screen: %w", err)
	}
	scr.Clear()
	return &Screen{scr: scr}, nil
}

// Close restores the terminal. Must run before process exit, even on
// failure paths, or the shell is left in raw mode.
func (s *Screen) Close() {
	s.scr.Fini()
}

// Size implements render.Renderer.
func (s *Screen) Size() (int, int) {
	return s.scr.Size()
}

// PollKeys is the input producer loop: it normalizes tcell key events
// and hands them to push until push reports the core is gone or the
// screen is torn down. Resize events call onResize so the core can
// schedule a redraw.
func (s *Screen) PollKeys(push func(types.KeyEvent) error, onResize func()) {
	for {
		ev := s.scr.PollEvent()
		if ev == nil {
			// Fini was called
			return
		}
		switch tev := ev.(type) {
		case *tcell.EventKey:
			key, ok := normalizeKey(tev)
			if !ok {
				continue
			}
			if err := push(key); err != nil {
				L_debug("term: key intake closed, stopping poll")
				return
			}
		case *tcell.EventResize:
			s.scr.Sync()
			if onResize != nil {
				onResize()
			}
		}
	}
}

// normalizeKey maps a tcell key event onto the core's KeyEvent union.
// Keys outside the table are reported as printable runes when they are
// runes, and swallowed otherwise.
func normalizeKey(ev *tcell.EventKey) (types.KeyEvent, bool) {
	k := types.KeyEvent{When: ev.When()}
	switch ev.Key() {
	case tcell.KeyRune:
		k.Kind = types.KeyRune
		k.Rune = ev.Rune()
	case tcell.KeyEnter:
		k.Kind = types.KeyEnter
	case tcell.KeyEscape:
		k.Kind = types.KeyEsc
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		k.Kind = types.KeyBackspace
	case tcell.KeyCtrlC:
		k.Kind = types.KeyCtrlC
	case tcell.KeyUp:
		k.Kind = types.KeyUp
	case tcell.KeyDown:
		k.Kind = types.KeyDown
	case tcell.KeyLeft:
		k.Kind = types.KeyLeft
	case tcell.KeyRight:
		k.Kind = types.KeyRight
	default:
		return types.KeyEvent{}, false
	}
	return k, true
}

// Render implements render.Renderer: draw the frame, then flush.
func (s *Screen) Render(f render.Frame) error {
	w, h := s.scr.Size()
	if w < 10 || h < 5 {
		return fmt.Errorf("terminal too small: %dx%d", w, h)
	}
	s.scr.Clear()

	sidebarW := w / sidebarRatio
	bodyH := h - 3

	// sidebar
	for row, c := range f.Chats {
		if row >= bodyH {
			break
		}
		style := styleDefault
		if c.Selected {
			style = styleSelected
		}
		name := c.Name
		if c.Unread > 0 {
			name = fmt.Sprintf("%s (%d)", name, c.Unread)
		}
		st := style
		if c.Unread > 0 && !c.Selected {
			st = styleUnread
		}
		drawText(s.scr, 0, row, sidebarW-1, st, name)
	}

	// separator
	for row := 0; row < bodyH; row++ {
		s.scr.SetContent(sidebarW, row, '│', nil, styleDim)
	}

	// messages
	for row, m := range f.Messages {
		if row >= bodyH {
			break
		}
		style := styleDefault
		switch {
		case m.Selected:
			style = styleSelected
		case m.Marker == "✗":
			style = styleFailed
		case m.FromMe:
			style = styleMe
		}
		line := m.Line()
		if m.Marker != "" {
			line = m.Marker + " " + line
		}
		drawText(s.scr, sidebarW+2, row, w-1, style, line)
	}

	// status line
	drawText(s.scr, 0, h-3, w-1, styleDim, "wavi · "+f.Status)

	// mode + input line
	prompt := fmt.Sprintf("-- %s --", f.Mode)
	drawText(s.scr, 0, h-2, w-1, styleMode, prompt)
	if f.Mode == "INSERT" {
		drawText(s.scr, len(prompt)+2, h-2, w-1, styleDefault, f.Input+"▏")
	}

	// notice line
	if f.Notice != "" {
		drawText(s.scr, 0, h-1, w-1, styleNotice, f.Notice)
	}

	s.scr.Show()
	return nil
}

func drawText(scr tcell.Screen, x, y, maxX int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		if col > maxX {
			break
		}
		scr.SetContent(col, y, r, nil, style)
		col++
	}
}

// RunTicker drives the render clock: one push per interval until stop
// closes. The mux coalesces ticks, so a slow consumer never backs this
// producer up.
func RunTicker(stop <-chan struct{}, interval time.Duration, push func(time.Time)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case at := <-t.C:
			push(at)
		}
	}
}
