// Package render turns state snapshots into immutable frames and
// schedules their drawing: at most one frame per debounce interval on
// state changes, with ticks retrying anything the adapter failed.
package render

import (
	"fmt"
	"time"

	"github.com/roelfdiedericks/wavi/internal/state"
	"github.com/roelfdiedericks/wavi/internal/types"
)

// noticeTTL is how long a transient notice stays on screen.
const noticeTTL = 5 * time.Second

// ChatLine is one sidebar row.
type ChatLine struct {
	Name     string
	Unread   int
	Selected bool
}

// MessageLine is one conversation row.
type MessageLine struct {
	Sender   string
	Text     string
	Marker   string // delivery marker for own messages: "…", "✓", "✗"
	FromMe   bool
	Selected bool
}

// Frame is a pure projection of the visible slice of AppState, ready
// for drawing. Rendering never reads AppState directly.
type Frame struct {
	Width, Height int

	Chats    []ChatLine
	Messages []MessageLine

	Focus  types.Panel
	Mode   string
	Status string // connection status line
	Input  string // compose buffer, shown in INSERT mode
	Notice string
}

// Project computes the frame for a snapshot at the given terminal size.
// It is pure: same snapshot, size and clock reading give the same frame.
func Project(s *state.AppState, width, height int, now time.Time) Frame {
	f := Frame{
		Width:  width,
		Height: height,
		Focus:  s.Focus,
		Mode:   s.Mode.String(),
		Status: s.ConnStatus.String(),
		Input:  s.InputBuf,
	}
	if s.Notice != "" && now.Sub(s.NoticeAt) < noticeTTL {
		f.Notice = s.Notice
	}

	// Three rows go to status, mode/input and notice.
	rows := height - 3
	if rows < 1 {
		rows = 1
	}

	chatLo, chatHi := window(s.Cursor.ChatIndex, len(s.Chats), rows)
	for i := chatLo; i < chatHi; i++ {
		c := s.Chats[i]
		f.Chats = append(f.Chats, ChatLine{
			Name:     c.Name,
			Unread:   c.Unread,
			Selected: i == s.Cursor.ChatIndex,
		})
	}

	msgs := s.ActiveMessages()
	msgLo, msgHi := window(s.Cursor.MsgIndex, len(msgs), rows)
	for i := msgLo; i < msgHi; i++ {
		m := msgs[i]
		f.Messages = append(f.Messages, MessageLine{
			Sender:   m.Sender,
			Text:     m.Text,
			Marker:   deliveryMarker(m),
			FromMe:   m.FromMe,
			Selected: i == s.Cursor.MsgIndex,
		})
	}
	return f
}

// window centers a cursor inside a viewport of the given size and
// returns the [lo, hi) slice bounds.
func window(cursor, total, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	lo := cursor - size/2
	if lo < 0 {
		lo = 0
	}
	hi := lo + size
	if hi > total {
		hi = total
		lo = hi - size
	}
	return lo, hi
}

func deliveryMarker(m types.Message) string {
	if !m.FromMe {
		return ""
	}
	switch m.Delivery {
	case types.DeliverySent:
		return "✓"
	case types.DeliveryFailed:
		return "✗"
	default:
		return "…"
	}
}

// Line renders a message row as "Sender: text", the form used by the
// message panel and by draft context building.
func (m MessageLine) Line() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Text)
}
