package loop_test

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"nhooyr.io/websocket"

	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/client/loop"
	"github.com/prsnlassistant/client/internal/devserver"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
	"github.com/prsnlassistant/client/pkg/protocol"
)

func testOptions() client.Options {
	return client.Options{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		MaxAttempts:    2,
		PingInterval:   time.Hour,
	}
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitEvent(t *testing.T, sub *event.Subscription, match func(event.AppEvent) bool) event.AppEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub.Events():
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func waitStatus(t *testing.T, sub *event.Subscription, want types.ConnectionStatus) {
	t.Helper()
	waitEvent(t, sub, func(ev event.AppEvent) bool {
		changed, ok := ev.(event.ConnectionChanged)
		return ok && changed.Status == want
	})
}

func TestConnectLifecycle(t *testing.T) {
	ts := httptest.NewServer(devserver.New(nil))
	defer ts.Close()

	bus := event.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	tr := loop.New(bus, testOptions())
	done := make(chan error, 1)
	go func() { done <- tr.Connect(wsURL(ts)) }()

	waitStatus(t, sub, types.StatusConnecting)
	waitStatus(t, sub, types.StatusConnected)
	if !tr.IsConnected() {
		t.Error("IsConnected should report true after the handshake")
	}

	tr.Disconnect()
	waitStatus(t, sub, types.StatusDisconnected)
	if err := <-done; err != nil {
		t.Errorf("deliberate disconnect should resolve cleanly, got %v", err)
	}
	if tr.IsConnected() {
		t.Error("IsConnected should report false after Disconnect")
	}
}

func TestBootstrapSendsSubscribeThenList(t *testing.T) {
	frames := make(chan protocol.ClientMessage, 16)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if msg, err := protocol.DecodeClient(data); err == nil {
				frames <- msg
			}
		}
	}))
	defer ts.Close()

	tr := loop.New(event.NewBus(), testOptions())
	go tr.Connect(wsURL(ts))
	defer tr.Disconnect()

	recv := func() protocol.ClientMessage {
		select {
		case msg := <-frames:
			return msg
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a frame")
			return nil
		}
	}

	if _, ok := recv().(protocol.Subscribe); !ok {
		t.Fatal("first frame must be the subscribe request")
	}
	if _, ok := recv().(protocol.ListConversations); !ok {
		t.Fatal("second frame must be the list_conversations request")
	}
}

func TestChatRoundTrip(t *testing.T) {
	srv := devserver.New(func(convID, body string) string { return "echo " + body })
	convID := srv.CreateConversation("")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	bus := event.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	tr := loop.New(bus, testOptions())
	go tr.Connect(wsURL(ts))
	defer tr.Disconnect()
	waitStatus(t, sub, types.StatusConnected)

	if err := tr.SendChat(convID, "m-1", "hello", nil); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	got := waitEvent(t, sub, func(ev event.AppEvent) bool {
		_, ok := ev.(event.MessageReceived)
		return ok
	}).(event.MessageReceived)
	if got.Message.Body != "echo hello" {
		t.Errorf("want assistant echo, got %q", got.Message.Body)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	tr := loop.New(event.NewBus(), testOptions())
	if err := tr.SendChat("conv-1", "m-1", "hi", nil); !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("want ErrNotConnected, got %v", err)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	tr := loop.New(event.NewBus(), testOptions())
	start := time.Now()
	err = tr.Connect("ws://" + addr)
	if err == nil {
		t.Fatal("want terminal error once attempts are exhausted")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("want attempt count in error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("backoff waits missing, connect resolved in %v", elapsed)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	tr := loop.New(event.NewBus(), testOptions())
	tr.Disconnect()
	tr.Disconnect()
	if tr.IsConnected() {
		t.Error("never-connected transport must report disconnected")
	}
}

// TestFrameCoalescedWithHandshake covers a server that pushes a frame in the
// same TCP segment as its 101 response. The bytes land in the handshake
// reader rather than on the connection, and must still be dispatched.
func TestFrameCoalescedWithHandshake(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		var key string
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			if strings.HasPrefix(strings.ToLower(line), "sec-websocket-key:") {
				key = strings.TrimSpace(line[len("sec-websocket-key:"):])
			}
		}
		sum := sha1.Sum([]byte(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))

		payload, err := protocol.EncodeServer(protocol.ConversationDeleted{
			ID: "srv-1", Timestamp: 1, ConversationID: "conv-1",
		})
		if err != nil {
			return
		}

		var out bytes.Buffer
		fmt.Fprintf(&out, "HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: %s\r\n\r\n",
			base64.StdEncoding.EncodeToString(sum[:]))
		_ = ws.WriteFrame(&out, ws.NewTextFrame(payload))

		// Handshake response and frame leave in a single write.
		if _, err := conn.Write(out.Bytes()); err != nil {
			return
		}
		_, _ = io.Copy(io.Discard, conn)
	}()

	bus := event.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	tr := loop.New(bus, testOptions())
	go tr.Connect("ws://" + l.Addr().String())
	defer tr.Disconnect()

	waitEvent(t, sub, func(ev event.AppEvent) bool {
		deleted, ok := ev.(event.ConversationDeleted)
		return ok && deleted.ID == "conv-1"
	})
}

func TestServerDropTriggersReconnect(t *testing.T) {
	srv := devserver.New(nil)
	ts := httptest.NewServer(srv)

	bus := event.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	tr := loop.New(bus, testOptions())
	done := make(chan error, 1)
	go func() { done <- tr.Connect(wsURL(ts)) }()
	waitStatus(t, sub, types.StatusConnected)

	ts.CloseClientConnections()
	ts.Close()

	waitStatus(t, sub, types.StatusDisconnected)
	waitStatus(t, sub, types.StatusConnecting)

	select {
	case err := <-done:
		if err == nil {
			t.Error("want terminal error after retries against a dead server")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connect never resolved")
	}
}
