// Package reducer is the single mutation point of the application.
// Apply* methods are total: they always produce a valid next state, and
// error inputs become state (Failed delivery, Disconnected status, a
// notice line) rather than errors out of the loop.
//
// Side effects (protocol sends, draft requests) are handed to injected
// collaborators whose results return later as ordinary updates, so a
// replay with a fixed id source and no collaborators is deterministic.
package reducer

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roelfdiedericks/wavi/internal/state"
	"github.com/roelfdiedericks/wavi/internal/types"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

// Sender issues a protocol send. Implementations are asynchronous: the
// outcome arrives later as MessageDelivered or MessageFailed.
type Sender interface {
	Send(chatID types.ChatID, text string, correlation types.MessageID)
}

// Drafter requests an AI reply draft. The outcome arrives later as
// DraftReady or DraftFailed.
type Drafter interface {
	Draft(chatID types.ChatID, history []types.Message)
}

// Reducer applies actions and updates to AppState.
type Reducer struct {
	sender  Sender
	drafter Drafter

	newID func() types.MessageID
	now   func() time.Time
}

// Option customizes a Reducer (used by tests to pin the id source and
// clock for replay determinism).
type Option func(*Reducer)

// WithIDSource replaces the uuid-based correlation id generator.
func WithIDSource(f func() types.MessageID) Option {
	return func(r *Reducer) { r.newID = f }
}

// WithClock replaces the wall clock.
func WithClock(f func() time.Time) Option {
	return func(r *Reducer) { r.now = f }
}

// New creates a reducer. sender and drafter may be nil, in which case
// the corresponding effects are skipped (the optimistic state change
// still happens, which is what replay tests exercise).
func New(sender Sender, drafter Drafter, opts ...Option) *Reducer {
	r := &Reducer{
		sender:  sender,
		drafter: drafter,
		newID:   func() types.MessageID { return types.MessageID(uuid.New().String()) },
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ApplyAction applies one user intent.
func (r *Reducer) ApplyAction(s *state.AppState, a types.Action) {
	if s.Quitting {
		return
	}
	switch act := a.(type) {
	case types.MoveCursor:
		r.moveCursor(s, act.Dir)
	case types.SwitchPanel:
		if s.Focus == types.PanelChats {
			s.Focus = types.PanelMessages
		} else {
			s.Focus = types.PanelChats
		}
	case types.JumpTop:
		r.jump(s, true)
	case types.JumpBottom:
		r.jump(s, false)
	case types.EnterInsert:
		s.Mode = types.ModeInsert
	case types.ExitInsert:
		s.Mode = types.ModeNormal
	case types.ComposeChar:
		s.InputBuf += string(act.Rune)
	case types.Backspace:
		if s.InputBuf != "" {
			runes := []rune(s.InputBuf)
			s.InputBuf = string(runes[:len(runes)-1])
		}
	case types.SendMessage:
		r.sendMessage(s)
	case types.DraftReply:
		r.draftReply(s)
	case types.Quit:
		s.Quitting = true
	}
}

// ApplyUpdate applies one protocol/assist update.
func (r *Reducer) ApplyUpdate(s *state.AppState, u types.Update) {
	if s.Quitting {
		return
	}
	switch up := u.(type) {
	case types.NewMessage:
		r.newMessage(s, up.Message)
	case types.MessageDelivered:
		r.delivered(s, up)
	case types.MessageFailed:
		r.failed(s, up)
	case types.ConnectionStateChanged:
		s.ConnStatus = up.Status
	case types.ChatSynced:
		r.chatSynced(s, up.Chat)
	case types.DraftReady:
		r.draftReady(s, up)
	case types.DraftFailed:
		r.setNotice(s, "draft failed: "+up.Err)
	}
}

// --- navigation ---

func (r *Reducer) moveCursor(s *state.AppState, dir types.Direction) {
	delta := 1
	if dir == types.DirUp {
		delta = -1
	}
	if s.Focus == types.PanelChats {
		r.selectChat(s, s.Cursor.ChatIndex+delta)
		return
	}
	s.Cursor.MsgIndex += delta
	s.ClampCursor()
}

func (r *Reducer) jump(s *state.AppState, top bool) {
	if s.Focus == types.PanelChats {
		if top {
			r.selectChat(s, 0)
		} else {
			r.selectChat(s, len(s.Chats)-1)
		}
		return
	}
	if top {
		s.Cursor.MsgIndex = 0
	} else {
		s.Cursor.MsgIndex = len(s.ActiveMessages()) - 1
	}
	s.ClampCursor()
}

// selectChat moves the chat cursor, keeps the message cursor at the
// bottom of the newly active chat and clears its unread badge.
func (r *Reducer) selectChat(s *state.AppState, idx int) {
	prev := s.ActiveChat
	s.Cursor.ChatIndex = idx
	s.ClampCursor()
	if s.ActiveChat != prev {
		s.Cursor.MsgIndex = len(s.ActiveMessages()) - 1
		s.ClampCursor()
	}
	if i := s.ChatIndexOf(s.ActiveChat); i >= 0 {
		s.Chats[i].Unread = 0
	}
}

// --- composing and sending ---

func (r *Reducer) sendMessage(s *state.AppState) {
	if s.InputBuf == "" || s.ActiveChat == "" {
		return
	}
	text := s.InputBuf
	s.InputBuf = ""

	msg := types.Message{
		ID:        r.newID(),
		ChatID:    s.ActiveChat,
		Sender:    "me",
		Text:      text,
		Timestamp: r.now(),
		Delivery:  types.DeliveryPending,
		FromMe:    true,
	}
	s.Messages[msg.ChatID] = append(s.Messages[msg.ChatID], msg)
	r.touchChat(s, msg.ChatID, msg.Timestamp, false)

	// follow our own message
	s.Cursor.MsgIndex = len(s.Messages[msg.ChatID]) - 1
	s.ClampCursor()

	if r.sender != nil {
		r.sender.Send(msg.ChatID, text, msg.ID)
	}
	L_debug("reducer: optimistic send", "chat", msg.ChatID, "correlation", msg.ID)
}

func (r *Reducer) draftReply(s *state.AppState) {
	if r.drafter == nil {
		r.setNotice(s, "AI drafting not configured (set ai.apiKey or WAVI_AI_KEY)")
		return
	}
	if s.ActiveChat == "" {
		r.setNotice(s, "no active chat to draft for")
		return
	}
	history := s.ActiveMessages()
	cp := make([]types.Message, len(history))
	copy(cp, history)
	r.drafter.Draft(s.ActiveChat, cp)
	r.setNotice(s, "drafting reply…")
}

// --- protocol updates ---

func (r *Reducer) newMessage(s *state.AppState, m types.Message) {
	atBottom := s.ActiveChat == m.ChatID &&
		s.Cursor.MsgIndex >= len(s.Messages[m.ChatID])-1

	s.Messages[m.ChatID] = append(s.Messages[m.ChatID], m)
	// No unread badge for own messages, for the active chat, or for the
	// very first chat (which is about to become the active one).
	bumpUnread := !m.FromMe && s.ActiveChat != "" && s.ActiveChat != m.ChatID
	r.touchChat(s, m.ChatID, m.Timestamp, bumpUnread)

	if atBottom {
		s.Cursor.MsgIndex = len(s.Messages[m.ChatID]) - 1
	}
	s.ClampCursor()
}

// delivered transitions a pending message to Sent, rewriting its id to
// the server-confirmed one. A second delivery for the same correlation
// finds nothing and changes nothing.
func (r *Reducer) delivered(s *state.AppState, up types.MessageDelivered) {
	msg, idx, chatID := findMessage(s, up.ID)
	if msg == nil || msg.Delivery != types.DeliveryPending {
		return
	}
	msg.Delivery = types.DeliverySent
	if up.ServerID != "" {
		msg.ID = up.ServerID
	}
	s.Messages[chatID][idx] = *msg
}

func (r *Reducer) failed(s *state.AppState, up types.MessageFailed) {
	msg, idx, chatID := findMessage(s, up.ID)
	if msg == nil || msg.Delivery != types.DeliveryPending {
		return
	}
	msg.Delivery = types.DeliveryFailed
	s.Messages[chatID][idx] = *msg
	r.setNotice(s, "send failed: "+up.Err)
	L_warn("reducer: send failed", "correlation", up.ID, "error", up.Err)
}

func (r *Reducer) chatSynced(s *state.AppState, c types.Chat) {
	if i := s.ChatIndexOf(c.ID); i >= 0 {
		s.Chats[i].Name = c.Name
		if c.LastActivity.After(s.Chats[i].LastActivity) {
			s.Chats[i].LastActivity = c.LastActivity
		}
	} else {
		s.Chats = append(s.Chats, c)
	}
	sortChats(s)
	s.ClampCursor()
}

func (r *Reducer) draftReady(s *state.AppState, up types.DraftReady) {
	if up.ChatID != s.ActiveChat {
		// user moved on; a draft for another chat is stale
		r.setNotice(s, "discarded stale draft")
		return
	}
	s.InputBuf = up.Text
	s.Mode = types.ModeInsert
	r.setNotice(s, "draft ready: edit and press Enter to send")
}

// --- helpers ---

// touchChat updates activity metadata and moves the chat to the front
// of the most-recent-activity order, creating it if unknown. Cursor
// identity (the active chat) survives the reorder.
func (r *Reducer) touchChat(s *state.AppState, id types.ChatID, at time.Time, bumpUnread bool) {
	i := s.ChatIndexOf(id)
	if i < 0 {
		s.Chats = append(s.Chats, types.Chat{ID: id, Name: string(id)})
		i = len(s.Chats) - 1
	}
	if at.After(s.Chats[i].LastActivity) {
		s.Chats[i].LastActivity = at
	}
	if bumpUnread {
		s.Chats[i].Unread++
	}

	// move to front, preserving relative order of the rest
	c := s.Chats[i]
	copy(s.Chats[1:i+1], s.Chats[:i])
	s.Chats[0] = c

	if s.ActiveChat != "" {
		if idx := s.ChatIndexOf(s.ActiveChat); idx >= 0 {
			s.Cursor.ChatIndex = idx
		}
	} else {
		// first chat ever becomes active
		s.Cursor.ChatIndex = 0
	}
	s.ClampCursor()
}

func sortChats(s *state.AppState) {
	active := s.ActiveChat
	sort.SliceStable(s.Chats, func(a, b int) bool {
		return s.Chats[a].LastActivity.After(s.Chats[b].LastActivity)
	})
	if active != "" {
		if idx := s.ChatIndexOf(active); idx >= 0 {
			s.Cursor.ChatIndex = idx
		}
	}
}

func findMessage(s *state.AppState, id types.MessageID) (*types.Message, int, types.ChatID) {
	for chatID, msgs := range s.Messages {
		for i := range msgs {
			if msgs[i].ID == id {
				m := msgs[i]
				return &m, i, chatID
			}
		}
	}
	return nil, 0, ""
}

func (r *Reducer) setNotice(s *state.AppState, text string) {
	s.Notice = text
	s.NoticeAt = r.now()
}
