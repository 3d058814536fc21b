// Package types holds the shared data model and the closed event unions
// flowing through the core: Update (protocol boundary), KeyEvent
// (terminal boundary), Action (mode engine output) and Event (the unit
// the multiplexer delivers to the reducer).
//
// The unions are sealed with unexported marker methods so every consumer
// is a type switch over a known set of variants; adding a variant forces
// review of each switch.
package types

import "time"

// ChatID identifies a chat (for WhatsApp, the JID string).
type ChatID string

// MessageID identifies a message. Optimistic sends carry a locally
// generated id until the server confirms one.
type MessageID string

// Mode is the modal input state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeInsert
)

func (m Mode) String() string {
	if m == ModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// ConnStatus is the protocol connection state as surfaced to the UI.
type ConnStatus int

const (
	StatusConnecting ConnStatus = iota
	StatusOnline
	StatusReconnecting
	StatusDisconnected
)

func (s ConnStatus) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "connecting"
	}
}

// DeliveryState tracks a message through the optimistic-send lifecycle.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliverySent
	DeliveryFailed
)

// Chat is one conversation. Only Unread and LastActivity mutate, and
// only inside the reducer.
type Chat struct {
	ID           ChatID
	Name         string
	Unread       int
	LastActivity time.Time
}

// Message is one chat message. Text and Sender are immutable once
// created; only Delivery mutates.
type Message struct {
	ID        MessageID
	ChatID    ChatID
	Sender    string
	Text      string
	Timestamp time.Time
	Delivery  DeliveryState
	FromMe    bool
}

// --- KeyEvent ---

// KeyKind classifies a normalized keyboard event.
type KeyKind int

const (
	KeyRune KeyKind = iota
	KeyEnter
	KeyEsc
	KeyBackspace
	KeyCtrlC
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// KeyEvent is a normalized keyboard input event. When carries the
// arrival time so multi-key sequence expiry is decided on the event
// clock rather than wall-clock reads inside the engine.
type KeyEvent struct {
	Kind KeyKind
	Rune rune // set when Kind == KeyRune
	When time.Time
}

// --- Update: protocol boundary -> core ---

// Update is an event emitted by the protocol or assist boundary.
type Update interface{ isUpdate() }

// NewMessage announces a message that arrived (or was restored) for a chat.
type NewMessage struct{ Message Message }

// MessageDelivered confirms a previously sent message by correlation id.
type MessageDelivered struct {
	ID       MessageID // local correlation id of the pending message
	ServerID MessageID // id assigned by the server, may be empty
}

// MessageFailed reports that a send could not be completed.
type MessageFailed struct {
	ID  MessageID
	Err string
}

// ConnectionStateChanged reports a transport state transition.
type ConnectionStateChanged struct{ Status ConnStatus }

// ChatSynced seeds or refreshes a chat entry from the store without
// touching unread counts.
type ChatSynced struct{ Chat Chat }

// DraftReady delivers an AI reply draft for the given chat.
type DraftReady struct {
	ChatID ChatID
	Text   string
}

// DraftFailed reports that drafting failed; surfaced as a notice.
type DraftFailed struct{ Err string }

func (NewMessage) isUpdate()             {}
func (MessageDelivered) isUpdate()       {}
func (MessageFailed) isUpdate()          {}
func (ConnectionStateChanged) isUpdate() {}
func (ChatSynced) isUpdate()             {}
func (DraftReady) isUpdate()             {}
func (DraftFailed) isUpdate()            {}

// --- Action: mode engine -> reducer ---

// Direction for cursor movement.
type Direction int

const (
	DirUp Direction = iota
	DirDown
)

// Panel identifies a focusable region.
type Panel int

const (
	PanelChats Panel = iota
	PanelMessages
)

// Action is a user intent derived from input.
type Action interface{ isAction() }

type MoveCursor struct{ Dir Direction }
type SwitchPanel struct{}
type JumpTop struct{}
type JumpBottom struct{}
type EnterInsert struct{}
type ExitInsert struct{}
type ComposeChar struct{ Rune rune }
type Backspace struct{}
type SendMessage struct{}
type DraftReply struct{}
type Quit struct{}

func (MoveCursor) isAction()  {}
func (SwitchPanel) isAction() {}
func (JumpTop) isAction()     {}
func (JumpBottom) isAction()  {}
func (EnterInsert) isAction() {}
func (ExitInsert) isAction()  {}
func (ComposeChar) isAction() {}
func (Backspace) isAction()   {}
func (SendMessage) isAction() {}
func (DraftReply) isAction()  {}
func (Quit) isAction()        {}

// --- Event: the unit flowing through the multiplexer ---

// Event wraps one of {Update, KeyEvent, Tick}.
type Event interface{ isEvent() }

type UpdateEvent struct{ Update Update }
type KeyPressed struct{ Key KeyEvent }
type Tick struct{ At time.Time }

func (UpdateEvent) isEvent() {}
func (KeyPressed) isEvent()  {}
func (Tick) isEvent()        {}
