// Package client defines the common contract for assistant server
// transports and the shared inbound message dispatch.
//
// Two implementations satisfy the Transport interface: stream (one goroutine
// per connection task, blocking I/O) and loop (single-threaded,
// callback-driven). Both reproduce the same external behavior: state
// transitions, exponential backoff, and bootstrap requests.
package client

import (
	"errors"
	"time"

	"github.com/prsnlassistant/client/pkg/protocol"
)

// ErrNotConnected is returned by send operations when no connection is open.
var ErrNotConnected = errors.New("not connected to server")

// SubscribeEvents are the notification categories requested right after a
// successful handshake.
var SubscribeEvents = []string{"notifications", "reminders"}

// HistoryLimit is the default number of messages requested per history load.
const HistoryLimit = 50

// Transport owns the network connection to the assistant server. Connect
// runs the connection state machine until an explicit Disconnect or until
// the reconnect attempts are exhausted; callers normally run it in its own
// goroutine. Send operations are safe for concurrent use.
type Transport interface {
	// Connect dials url and runs the connection loop. It returns nil after
	// Disconnect, or an error once the maximum reconnect attempts are
	// exhausted. Status transitions are published on the event bus.
	Connect(url string) error

	// Disconnect requests shutdown, closes any live connection, and
	// suppresses further reconnection. Safe to call at any time, repeatedly.
	Disconnect()

	// IsConnected reports current liveness without blocking.
	IsConnected() bool

	// SendChat sends a user message. msgID is the caller's message id; it
	// rides the wire so the server's error replies correlate back to the
	// optimistic local message.
	SendChat(convID, msgID, body string, image *protocol.ImagePayload) error

	// SendListConversations requests the conversation summaries.
	SendListConversations() error

	// SendGetHistory requests up to limit stored messages of a conversation.
	SendGetHistory(convID string, limit int) error

	// SendCreateConversation requests a new conversation. An empty title
	// lets the server pick one.
	SendCreateConversation(title string) error

	// SendDeleteConversation requests removal of a conversation.
	SendDeleteConversation(convID string) error
}

// Options are the reconnection and keep-alive policy knobs. The zero value
// selects the defaults.
type Options struct {
	// InitialBackoff is the delay before the first reconnect attempt.
	// Defaults to 1s. Each failure doubles the delay up to MaxBackoff.
	InitialBackoff time.Duration
	// MaxBackoff caps the reconnect delay. Defaults to 30s.
	MaxBackoff time.Duration
	// MaxAttempts is the number of consecutive failures tolerated before
	// Connect gives up. Defaults to 5.
	MaxAttempts int
	// PingInterval is the keep-alive period. Defaults to 30s.
	PingInterval time.Duration
}

// WithDefaults fills unset fields with the default policy.
func (o Options) WithDefaults() Options {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// NextBackoff doubles the current delay, capped at MaxBackoff.
func (o Options) NextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > o.MaxBackoff {
		next = o.MaxBackoff
	}
	return next
}
