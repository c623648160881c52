// Package loop provides the callback-driven Transport implementation. All
// connection state is confined to a single host loop goroutine; network
// callbacks and timers post tasks onto that loop instead of sharing state,
// and reconnection is scheduled with a timer rather than a blocking sleep.
// It mirrors the behavior of the stream variant exactly: state transitions,
// backoff policy, and bootstrap requests.
package loop

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
	"github.com/prsnlassistant/client/pkg/protocol"
)

// Transport is the single-threaded transport variant.
type Transport struct {
	bus  *event.Bus
	opts client.Options

	tasks     chan func()
	connected atomic.Bool
	running   atomic.Bool

	// Everything below is touched only from the loop goroutine.
	url        string
	conn       *lockedConn
	shutdown   bool
	connecting bool
	gen        int
	result     chan<- error
}

// lockedConn serializes frame writes. The read pump answers transport-level
// pings by writing pong frames, so it shares the write path with sends.
type lockedConn struct {
	mu   sync.Mutex
	conn net.Conn
	r    io.Reader
}

// newLockedConn wraps conn for reading and writing. The dial may hand back a
// reader holding frames the server coalesced with its handshake response;
// those buffered bytes are consumed before the connection itself so no
// inbound frame is lost.
func newLockedConn(conn net.Conn, br *bufio.Reader) *lockedConn {
	c := &lockedConn{conn: conn, r: conn}
	if br != nil {
		if n := br.Buffered(); n > 0 {
			early, _ := br.Peek(n)
			buffered := append([]byte(nil), early...)
			c.r = io.MultiReader(bytes.NewReader(buffered), conn)
		}
	}
	return c
}

func (c *lockedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *lockedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(p)
}

func (c *lockedConn) Close() error { return c.conn.Close() }

// New creates a loop transport publishing on bus and starts its host loop.
func New(bus *event.Bus, opts client.Options) *Transport {
	t := &Transport{
		bus:   bus,
		opts:  opts.WithDefaults(),
		tasks: make(chan func(), 128),
	}
	go t.run()
	return t
}

// run is the host loop: it executes every posted task in order. No other
// goroutine touches connection state.
func (t *Transport) run() {
	for task := range t.tasks {
		task()
	}
}

func (t *Transport) post(task func()) {
	t.tasks <- task
}

// Connect dials url and blocks until Disconnect resolves the connection
// loop or the reconnect attempts are exhausted, matching the stream
// variant's contract. Internally nothing blocks the host loop.
func (t *Transport) Connect(url string) error {
	if !t.running.CompareAndSwap(false, true) {
		return nil
	}
	defer t.running.Store(false)

	result := make(chan error, 1)
	t.post(func() {
		t.url = url
		t.shutdown = false
		t.result = result
		slog.Info("connecting", "url", url)
		t.bus.Publish(event.ConnectionChanged{Status: types.StatusConnecting})
		t.startConnect(0, t.opts.InitialBackoff)
	})
	return <-result
}

// startConnect begins one handshake attempt unless one is already in
// flight. The guard matters here: a timer-scheduled reconnect and an
// explicit connect request may otherwise race into the dial.
func (t *Transport) startConnect(attempts int, delay time.Duration) {
	if t.shutdown {
		t.finish(nil)
		return
	}
	if t.connecting || t.conn != nil {
		return
	}
	t.connecting = true

	url := t.url
	go func() {
		conn, br, _, err := ws.Dial(context.Background(), url)
		t.post(func() { t.onDialDone(conn, br, err, attempts, delay) })
	}()
}

func (t *Transport) onDialDone(conn net.Conn, br *bufio.Reader, err error, attempts int, delay time.Duration) {
	t.connecting = false

	if t.shutdown {
		if conn != nil {
			_ = conn.Close()
		}
		t.finish(nil)
		return
	}

	if err != nil {
		slog.Warn("handshake failed", "url", t.url, "err", err)
		t.bus.Publish(event.ConnectionChanged{Status: types.StatusDisconnected})
		t.scheduleReconnect(attempts, delay)
		return
	}

	t.gen++
	gen := t.gen
	t.conn = newLockedConn(conn, br)
	t.connected.Store(true)

	slog.Info("connected", "url", t.url)
	t.bus.Publish(event.ConnectionChanged{Status: types.StatusConnected})
	t.bootstrap()

	go t.readPump(t.conn, gen)
	t.schedulePing(gen)
}

// scheduleReconnect arms the backoff timer for the next attempt or resolves
// Connect with a terminal error once the attempts are exhausted.
func (t *Transport) scheduleReconnect(attempts int, delay time.Duration) {
	attempts++
	if attempts > t.opts.MaxAttempts {
		slog.Warn("giving up", "attempts", t.opts.MaxAttempts)
		t.finish(fmt.Errorf("failed to connect after %d attempts", t.opts.MaxAttempts))
		return
	}

	slog.Info("reconnecting", "delay", delay, "attempt", attempts, "max", t.opts.MaxAttempts)
	t.bus.Publish(event.ConnectionChanged{Status: types.StatusConnecting})

	next := t.opts.NextBackoff(delay)
	time.AfterFunc(delay, func() {
		t.post(func() { t.startConnect(attempts, next) })
	})
}

// readPump reads frames off the wire and posts them onto the loop, the way
// a host runtime delivers socket callbacks. Transport-level pings are
// answered with pongs by the wsutil reader through the locked writer.
func (t *Transport) readPump(conn *lockedConn, gen int) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			t.post(func() { t.onReadError(gen, err) })
			return
		}
		frame := data
		t.post(func() { t.onFrame(gen, frame) })
	}
}

func (t *Transport) onFrame(gen int, data []byte) {
	if gen != t.gen || t.conn == nil {
		return
	}
	msg, err := protocol.DecodeServer(data)
	if err != nil {
		slog.Warn("dropping malformed frame", "err", err)
		return
	}
	client.Dispatch(msg, t.bus)
}

func (t *Transport) onReadError(gen int, err error) {
	if gen != t.gen || t.conn == nil {
		return
	}
	if err != io.EOF && !t.shutdown {
		slog.Info("connection closed", "err", err)
	}

	_ = t.conn.Close()
	t.conn = nil
	t.connected.Store(false)
	t.bus.Publish(event.ConnectionChanged{Status: types.StatusDisconnected})

	if t.shutdown {
		t.finish(nil)
		return
	}
	t.scheduleReconnect(0, t.opts.InitialBackoff)
}

// schedulePing arms the next keep-alive send. The chain stops when the
// connection generation moves on or a write fails.
func (t *Transport) schedulePing(gen int) {
	time.AfterFunc(t.opts.PingInterval, func() {
		t.post(func() {
			if gen != t.gen || t.conn == nil || t.shutdown {
				return
			}
			err := t.write(protocol.Ping{ID: uuid.NewString(), Timestamp: time.Now().UnixMilli()})
			if err != nil {
				slog.Debug("keep-alive write failed", "err", err)
				return
			}
			t.schedulePing(gen)
		})
	})
}

// finish resolves the pending Connect call exactly once.
func (t *Transport) finish(err error) {
	if t.result == nil {
		return
	}
	t.result <- err
	t.result = nil
}

// Disconnect requests shutdown, closes any live connection, and suppresses
// further reconnection. Safe to call repeatedly.
func (t *Transport) Disconnect() {
	done := make(chan struct{})
	t.post(func() {
		defer close(done)
		t.shutdown = true

		if t.conn != nil {
			t.gen++ // invalidate the read pump's callbacks
			_ = ws.WriteFrame(t.conn, ws.MaskFrame(ws.NewCloseFrame(nil)))
			_ = t.conn.Close()
			t.conn = nil
			t.connected.Store(false)
			t.bus.Publish(event.ConnectionChanged{Status: types.StatusDisconnected})
		}
		t.finish(nil)
	})
	<-done
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

// send routes the message through the loop so connection state is only ever
// read there, and waits for the outcome.
func (t *Transport) send(msg protocol.ClientMessage) error {
	errCh := make(chan error, 1)
	t.post(func() { errCh <- t.write(msg) })
	return <-errCh
}

// write runs on the loop.
func (t *Transport) write(msg protocol.ClientMessage) error {
	if t.conn == nil {
		return client.ErrNotConnected
	}
	data, err := protocol.EncodeClient(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := wsutil.WriteClientText(t.conn, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// bootstrap issues the two post-handshake requests: subscribe to
// notification categories, then request the conversation list.
func (t *Transport) bootstrap() {
	err := t.write(protocol.Subscribe{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Events:    client.SubscribeEvents,
	})
	if err != nil {
		slog.Warn("subscribe request failed", "err", err)
	}
	err = t.write(protocol.ListConversations{ID: uuid.NewString(), Timestamp: time.Now().UnixMilli()})
	if err != nil {
		slog.Warn("list_conversations request failed", "err", err)
	}
}
