// Package whatsapp is the protocol boundary: it wraps a whatsmeow
// client and surfaces everything the core needs as normalized Update
// values pushed into the multiplexer. Reconnection is handled here
// (whatsmeow reconnects with its own backoff) and reaches the core only
// as ConnectionStateChanged transitions.
package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	watypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/roelfdiedericks/wavi/internal/paths"
	"github.com/roelfdiedericks/wavi/internal/types"

	. "github.com/roelfdiedericks/wavi/internal/logging"
)

const sendTimeout = 30 * time.Second

// waviLogger bridges whatsmeow's waLog.Logger to our L_* functions
type waviLogger struct {
	module string
}

func (l *waviLogger) Debugf(msg string, args ...interface{}) {
	L_debug(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waviLogger) Infof(msg string, args ...interface{}) {
	L_info(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waviLogger) Warnf(msg string, args ...interface{}) {
	L_warn(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waviLogger) Errorf(msg string, args ...interface{}) {
	L_error(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waviLogger) Sub(module string) waLog.Logger {
	return &waviLogger{module: l.module + "/" + module}
}

// Adapter is the update adapter: one whatsmeow client, one push
// function into the core. It owns its goroutines exclusively; no state
// is shared with the reducer except through pushed updates.
type Adapter struct {
	client *whatsmeow.Client
	store  *sqlstore.Container
	push   func(types.Update) error

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// openContainer opens the session store shared by the running adapter
// and the link/unlink subcommands.
func openContainer() (*sqlstore.Container, error) {
	dbPath, err := paths.SessionDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session db path: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	container := sqlstore.NewWithDB(db, "sqlite3", &waviLogger{module: "store"})
	if err := container.Upgrade(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to upgrade session store: %w", err)
	}
	return container, nil
}

// New loads the persisted session and builds the client. A missing
// pairing is an auth failure: fatal here, fixed by `wavi link`.
func New(push func(types.Update) error) (*Adapter, error) {
	container, err := openContainer()
	if err != nil {
		return nil, err
	}

	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if device == nil || device.ID == nil {
		return nil, fmt.Errorf("no WhatsApp device paired, run 'wavi link' first")
	}

	client := whatsmeow.NewClient(device, &waviLogger{module: "client"})

	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		client: client,
		store:  container,
		push:   push,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start connects and begins producing updates.
func (a *Adapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	a.client.AddEventHandler(a.handleEvent)
	a.pushUpdate(types.ConnectionStateChanged{Status: types.StatusConnecting})

	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: failed to connect: %w", err)
	}
	a.running = true
	L_info("whatsapp: connecting", "jid", a.client.Store.ID)
	return nil
}

// Stop disconnects and stops producing. In-flight sends get their
// normal timeout; their results are dropped by the closed multiplexer.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	L_info("whatsapp: disconnecting")
	a.cancel()
	a.client.Disconnect()
	a.running = false
}

// Send implements reducer.Sender: fire the wire send off-loop and push
// the outcome back as a delivery update keyed by the correlation id.
func (a *Adapter) Send(chatID types.ChatID, text string, correlation types.MessageID) {
	go func() {
		jid, err := watypes.ParseJID(string(chatID))
		if err != nil {
			a.pushUpdate(types.MessageFailed{ID: correlation, Err: "bad chat id: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(a.ctx, sendTimeout)
		defer cancel()

		resp, err := a.client.SendMessage(ctx, jid, &waE2E.Message{
			Conversation: proto.String(text),
		})
		if err != nil {
			L_warn("whatsapp: send failed", "chat", chatID, "error", err)
			a.pushUpdate(types.MessageFailed{ID: correlation, Err: err.Error()})
			return
		}
		a.pushUpdate(types.MessageDelivered{ID: correlation, ServerID: types.MessageID(resp.ID)})
	}()
}

// handleEvent is the whatsmeow event handler
func (a *Adapter) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		a.handleMessage(v)
	case *events.Connected:
		L_info("whatsapp: connected to server")
		a.pushUpdate(types.ConnectionStateChanged{Status: types.StatusOnline})
		go a.seedChats()
	case *events.Disconnected:
		L_warn("whatsapp: disconnected, client will reconnect")
		a.pushUpdate(types.ConnectionStateChanged{Status: types.StatusReconnecting})
	case *events.LoggedOut:
		L_error("whatsapp: logged out, re-pair with 'wavi link'", "reason", v.Reason)
		a.pushUpdate(types.ConnectionStateChanged{Status: types.StatusDisconnected})
	}
}

// handleMessage normalizes an incoming message into a NewMessage update.
func (a *Adapter) handleMessage(evt *events.Message) {
	text := ""
	if evt.Message.GetConversation() != "" {
		text = evt.Message.GetConversation()
	} else if evt.Message.GetExtendedTextMessage() != nil {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		// media and protocol messages are out of scope
		L_debug("whatsapp: ignoring non-text message", "chat", evt.Info.Chat)
		return
	}

	sender := evt.Info.PushName
	if sender == "" {
		sender = evt.Info.Sender.User
	}
	if evt.Info.IsFromMe {
		sender = "me"
	}

	a.pushUpdate(types.NewMessage{Message: types.Message{
		ID:        types.MessageID(evt.Info.ID),
		ChatID:    types.ChatID(evt.Info.Chat.String()),
		Sender:    sender,
		Text:      text,
		Timestamp: evt.Info.Timestamp,
		Delivery:  types.DeliverySent,
		FromMe:    evt.Info.IsFromMe,
	}})
}

// seedChats pushes a ChatSynced update per stored contact so the
// sidebar is populated before any message arrives.
func (a *Adapter) seedChats() {
	contacts, err := a.client.Store.Contacts.GetAllContacts(a.ctx)
	if err != nil {
		L_warn("whatsapp: failed to load contacts", "error", err)
		return
	}
	for jid, info := range contacts {
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		if name == "" {
			name = jid.User
		}
		a.pushUpdate(types.ChatSynced{Chat: types.Chat{
			ID:   types.ChatID(jid.String()),
			Name: name,
		}})
	}
	L_info("whatsapp: chats seeded", "count", len(contacts))
}

func (a *Adapter) pushUpdate(u types.Update) {
	if err := a.push(u); err != nil {
		L_debug("whatsapp: core gone, dropping update")
	}
}
