// Package state defines AppState, the single source of truth for the
// client. Exactly one goroutine (the reducer loop) writes it; everyone
// else reads immutable snapshots taken between reducer steps, so no lock
// guards any of these fields.
package state

import (
	"time"

	"github.com/roelfdiedericks/wavi/internal/types"
)

// Cursor addresses the selection: a chat in the sidebar and a message
// within the active chat.
type Cursor struct {
	ChatIndex int
	MsgIndex  int
}

// AppState is the exclusively-owned application root.
//
// Invariants (maintained by every reducer step):
//   - ChatIndex is a valid index into Chats whenever Chats is non-empty
//   - ActiveChat is the id at ChatIndex ("" when Chats is empty)
//   - MsgIndex is a valid index into Messages[ActiveChat] when non-empty
type AppState struct {
	Chats    []types.Chat                     // most-recent-activity first
	Messages map[types.ChatID][]types.Message // arrival order per chat

	Cursor     Cursor
	Focus      types.Panel
	Mode       types.Mode
	ActiveChat types.ChatID
	InputBuf   string
	ConnStatus types.ConnStatus

	Notice   string    // one-line transient status text
	NoticeAt time.Time // when the notice was set, for expiry in projection

	Quitting bool // terminal: no further events are applied
}

// New returns the startup state: empty, NORMAL mode, connecting.
func New() *AppState {
	return &AppState{
		Messages:   make(map[types.ChatID][]types.Message),
		Mode:       types.ModeNormal,
		ConnStatus: types.StatusConnecting,
	}
}

// Snapshot returns a deep copy safe to read concurrently with further
// reducer mutations. Message structs are values, so copying the slices
// is sufficient.
func (s *AppState) Snapshot() *AppState {
	cp := *s
	cp.Chats = make([]types.Chat, len(s.Chats))
	copy(cp.Chats, s.Chats)
	cp.Messages = make(map[types.ChatID][]types.Message, len(s.Messages))
	for id, msgs := range s.Messages {
		m := make([]types.Message, len(msgs))
		copy(m, msgs)
		cp.Messages[id] = m
	}
	return &cp
}

// ActiveMessages returns the message sequence of the active chat.
func (s *AppState) ActiveMessages() []types.Message {
	if s.ActiveChat == "" {
		return nil
	}
	return s.Messages[s.ActiveChat]
}

// ChatIndexOf returns the position of a chat in the activity order, -1
// if absent.
func (s *AppState) ChatIndexOf(id types.ChatID) int {
	for i := range s.Chats {
		if s.Chats[i].ID == id {
			return i
		}
	}
	return -1
}

// ClampCursor restores the cursor invariants after any structural
// change. It never wraps: out-of-range indexes stick to the nearest end.
func (s *AppState) ClampCursor() {
	if len(s.Chats) == 0 {
		s.Cursor = Cursor{}
		s.ActiveChat = ""
		return
	}
	if s.Cursor.ChatIndex < 0 {
		s.Cursor.ChatIndex = 0
	}
	if s.Cursor.ChatIndex >= len(s.Chats) {
		s.Cursor.ChatIndex = len(s.Chats) - 1
	}
	s.ActiveChat = s.Chats[s.Cursor.ChatIndex].ID

	msgs := s.Messages[s.ActiveChat]
	if len(msgs) == 0 {
		s.Cursor.MsgIndex = 0
		return
	}
	if s.Cursor.MsgIndex < 0 {
		s.Cursor.MsgIndex = 0
	}
	if s.Cursor.MsgIndex >= len(msgs) {
		s.Cursor.MsgIndex = len(msgs) - 1
	}
}
