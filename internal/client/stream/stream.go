// Package stream provides the goroutine-based Transport implementation.
// One connection task owns the read loop and a keep-alive task runs beside
// it; both terminate when the connection drops or Disconnect is called.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
	"github.com/prsnlassistant/client/pkg/protocol"
)

// Transport is the multi-goroutine transport variant.
type Transport struct {
	bus  *event.Bus
	opts client.Options

	mu        sync.Mutex // guards conn; serializes frame writes
	conn      *websocket.Conn
	connected atomic.Bool
	shutdown  atomic.Bool
	running   atomic.Bool

	stopMu sync.Mutex
	stop   chan struct{}
}

// New creates a stream transport publishing on bus.
func New(bus *event.Bus, opts client.Options) *Transport {
	return &Transport{
		bus:  bus,
		opts: opts.WithDefaults(),
		stop: make(chan struct{}),
	}
}

// Connect dials url and runs the connection loop until Disconnect or until
// the reconnect attempts are exhausted. Run it in its own goroutine.
func (t *Transport) Connect(url string) error {
	if !t.running.CompareAndSwap(false, true) {
		return nil
	}
	defer t.running.Store(false)

	t.shutdown.Store(false)
	t.stopMu.Lock()
	t.stop = make(chan struct{})
	stop := t.stop
	t.stopMu.Unlock()

	slog.Info("connecting", "url", url)
	t.bus.Publish(event.ConnectionChanged{Status: types.StatusConnecting})

	attempts := 0
	delay := t.opts.InitialBackoff

	for {
		conn, _, err := websocket.Dial(context.Background(), url, nil)
		if err != nil {
			slog.Warn("handshake failed", "url", url, "err", err)
			t.bus.Publish(event.ConnectionChanged{Status: types.StatusDisconnected})
		} else {
			// Allow large frames; history payloads can carry images.
			conn.SetReadLimit(16 << 20)

			t.mu.Lock()
			t.conn = conn
			t.mu.Unlock()
			t.connected.Store(true)
			attempts = 0
			delay = t.opts.InitialBackoff

			slog.Info("connected", "url", url)
			t.bus.Publish(event.ConnectionChanged{Status: types.StatusConnected})
			t.bootstrap()

			pingDone := make(chan struct{})
			go t.keepAlive(pingDone)

			t.readLoop(conn)
			close(pingDone)

			t.mu.Lock()
			t.conn = nil
			t.mu.Unlock()
			t.connected.Store(false)
			t.bus.Publish(event.ConnectionChanged{Status: types.StatusDisconnected})
		}

		if t.shutdown.Load() {
			return nil
		}

		attempts++
		if attempts > t.opts.MaxAttempts {
			slog.Warn("giving up", "attempts", t.opts.MaxAttempts)
			return fmt.Errorf("failed to connect after %d attempts", t.opts.MaxAttempts)
		}

		slog.Info("reconnecting", "delay", delay, "attempt", attempts, "max", t.opts.MaxAttempts)
		t.bus.Publish(event.ConnectionChanged{Status: types.StatusConnecting})

		select {
		case <-time.After(delay):
		case <-stop:
			return nil
		}
		delay = t.opts.NextBackoff(delay)
	}
}

// Disconnect requests shutdown and closes any live connection. Safe to call
// whether or not a connection is open, repeatedly.
func (t *Transport) Disconnect() {
	t.shutdown.Store(true)

	t.stopMu.Lock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	t.stopMu.Unlock()

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	t.connected.Store(false)
}

// IsConnected reports current connection liveness.
func (t *Transport) IsConnected() bool {
	return t.connected.Load()
}

// SendChat sends a user message under the caller's message id.
func (t *Transport) SendChat(convID, msgID, body string, image *protocol.ImagePayload) error {
	return t.send(protocol.Chat{
		ID:             msgID,
		Timestamp:      time.Now().UnixMilli(),
		ConversationID: convID,
		Body:           body,
		Image:          image,
	})
}

// SendListConversations requests the conversation summaries.
func (t *Transport) SendListConversations() error {
	return t.send(protocol.ListConversations{ID: uuid.NewString(), Timestamp: time.Now().UnixMilli()})
}

// SendGetHistory requests up to limit stored messages of a conversation.
func (t *Transport) SendGetHistory(convID string, limit int) error {
	msg := protocol.GetHistory{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
		ConversationID: convID,
	}
	if limit > 0 {
		msg.Limit = &limit
	}
	return t.send(msg)
}

// SendCreateConversation requests a new conversation.
func (t *Transport) SendCreateConversation(title string) error {
	msg := protocol.CreateConversation{ID: uuid.NewString(), Timestamp: time.Now().UnixMilli()}
	if title != "" {
		msg.Title = &title
	}
	return t.send(msg)
}

// SendDeleteConversation requests removal of a conversation.
func (t *Transport) SendDeleteConversation(convID string) error {
	return t.send(protocol.DeleteConversation{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
		ConversationID: convID,
	})
}

// send serializes msg and writes it to the live connection under the write
// lock, so frames are never interleaved.
func (t *Transport) send(msg protocol.ClientMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return client.ErrNotConnected
	}

	data, err := protocol.EncodeClient(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := t.conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// bootstrap issues the two post-handshake requests: subscribe to
// notification categories, then request the conversation list.
func (t *Transport) bootstrap() {
	err := t.send(protocol.Subscribe{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Events:    client.SubscribeEvents,
	})
	if err != nil {
		slog.Warn("subscribe request failed", "err", err)
	}
	if err := t.SendListConversations(); err != nil {
		slog.Warn("list_conversations request failed", "err", err)
	}
}

// keepAlive sends an application-level ping every PingInterval. A write
// failure ends the task; the read loop detects the broken connection on its
// own. Transport-framing pings from the peer are answered by the websocket
// library during reads.
func (t *Transport) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := t.send(protocol.Ping{ID: uuid.NewString(), Timestamp: time.Now().UnixMilli()})
			if err != nil {
				slog.Debug("keep-alive write failed", "err", err)
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop dispatches every inbound frame until the connection fails or is
// closed. Malformed frames are logged and dropped, never fatal.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			if !t.shutdown.Load() {
				slog.Info("connection closed", "err", err)
			}
			return
		}

		msg, err := protocol.DecodeServer(data)
		if err != nil {
			slog.Warn("dropping malformed frame", "err", err)
			continue
		}
		client.Dispatch(msg, t.bus)
	}
}
