package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/prsnlassistant/client/pkg/protocol"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *Server) *wsClient {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msg protocol.ClientMessage) {
	c.t.Helper()
	data, err := protocol.EncodeClient(msg)
	if err != nil {
		c.t.Fatalf("failed to encode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.t.Fatalf("failed to write: %v", err)
	}
}

func (c *wsClient) recv() protocol.ServerMessage {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		c.t.Fatalf("failed to read: %v", err)
	}
	msg, err := protocol.DecodeServer(data)
	if err != nil {
		c.t.Fatalf("failed to decode: %v", err)
	}
	return msg
}

func TestPingPong(t *testing.T) {
	c := dial(t, New(nil))
	c.send(protocol.Ping{ID: "p1", Timestamp: 1})
	if _, ok := c.recv().(protocol.Pong); !ok {
		t.Fatal("want pong")
	}
}

func TestConversationLifecycle(t *testing.T) {
	c := dial(t, New(nil))

	title := "Plans"
	c.send(protocol.CreateConversation{ID: "c1", Timestamp: 1, Title: &title})
	created, ok := c.recv().(protocol.ConversationCreated)
	if !ok {
		t.Fatal("want conversation_created")
	}
	if created.Title == nil || *created.Title != "Plans" {
		t.Errorf("want title echoed back, got %v", created.Title)
	}

	c.send(protocol.ListConversations{ID: "l1", Timestamp: 2})
	list, ok := c.recv().(protocol.ConversationsList)
	if !ok {
		t.Fatal("want conversations_list")
	}
	if len(list.Conversations) != 1 || list.Conversations[0].ID != created.ConversationID {
		t.Fatalf("want the created conversation listed, got %+v", list.Conversations)
	}
	if list.Conversations[0].MessageCount != 0 {
		t.Errorf("want empty conversation, got count %d", list.Conversations[0].MessageCount)
	}

	c.send(protocol.DeleteConversation{ID: "d1", Timestamp: 3, ConversationID: created.ConversationID})
	deleted, ok := c.recv().(protocol.ConversationDeleted)
	if !ok {
		t.Fatal("want conversation_deleted")
	}
	if deleted.ConversationID != created.ConversationID {
		t.Errorf("want deletion ack for %s, got %s", created.ConversationID, deleted.ConversationID)
	}

	c.send(protocol.ListConversations{ID: "l2", Timestamp: 4})
	list, ok = c.recv().(protocol.ConversationsList)
	if !ok {
		t.Fatal("want conversations_list")
	}
	if len(list.Conversations) != 0 {
		t.Errorf("want empty list after deletion, got %+v", list.Conversations)
	}
}

func TestChatGetsTypingThenResponse(t *testing.T) {
	srv := New(func(convID, body string) string { return "pong: " + body })
	convID := srv.CreateConversation("")
	c := dial(t, srv)

	c.send(protocol.Chat{ID: "m1", Timestamp: 1, ConversationID: convID, Body: "hello"})

	typing, ok := c.recv().(protocol.Typing)
	if !ok {
		t.Fatal("want typing before the response")
	}
	if !typing.IsTyping || typing.ReplyTo != "m1" {
		t.Errorf("unexpected typing message: %+v", typing)
	}

	resp, ok := c.recv().(protocol.Response)
	if !ok {
		t.Fatal("want response")
	}
	if resp.Body != "pong: hello" || resp.ReplyTo != "m1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ConversationID == nil || *resp.ConversationID != convID {
		t.Errorf("response must carry the conversation id, got %v", resp.ConversationID)
	}
}

func TestHistoryWrapsUserMessages(t *testing.T) {
	srv := New(nil)
	convID := srv.CreateConversation("")
	c := dial(t, srv)

	c.send(protocol.Chat{ID: "m1", Timestamp: 1, ConversationID: convID, Body: "remember this"})
	c.recv() // typing
	c.recv() // response

	c.send(protocol.GetHistory{ID: "h1", Timestamp: 2, ConversationID: convID})
	hist, ok := c.recv().(protocol.History)
	if !ok {
		t.Fatal("want history")
	}
	if len(hist.Messages) != 2 {
		t.Fatalf("want user and assistant records, got %d", len(hist.Messages))
	}
	if hist.Messages[0].Role != "user" {
		t.Errorf("want user record first, got %q", hist.Messages[0].Role)
	}
	if !strings.HasPrefix(hist.Messages[0].Content, "Current Date:") {
		t.Errorf("user record must carry the date preamble, got %q", hist.Messages[0].Content)
	}
	if !strings.Contains(hist.Messages[0].Content, "\nBody: remember this") {
		t.Errorf("user record must embed the body, got %q", hist.Messages[0].Content)
	}
	if hist.Messages[1].Role != "assistant" {
		t.Errorf("want assistant record second, got %q", hist.Messages[1].Role)
	}
}

func TestHistoryLimit(t *testing.T) {
	srv := New(nil)
	convID := srv.CreateConversation("")
	for i := 0; i < 5; i++ {
		srv.SeedMessage(convID, "assistant", "old")
	}
	srv.SeedMessage(convID, "assistant", "newest")
	c := dial(t, srv)

	limit := 2
	c.send(protocol.GetHistory{ID: "h1", Timestamp: 1, ConversationID: convID, Limit: &limit})
	hist := c.recv().(protocol.History)
	if len(hist.Messages) != 2 {
		t.Fatalf("want limit applied, got %d", len(hist.Messages))
	}
	if hist.Messages[1].Content != "newest" {
		t.Errorf("want the most recent messages, got %q", hist.Messages[1].Content)
	}
}

func TestUnknownConversationErrors(t *testing.T) {
	c := dial(t, New(nil))

	c.send(protocol.Chat{ID: "m1", Timestamp: 1, ConversationID: "conv-missing", Body: "hi"})
	errMsg, ok := c.recv().(protocol.ErrorMessage)
	if !ok {
		t.Fatal("want error")
	}
	if errMsg.Code != "conversation_not_found" {
		t.Errorf("want conversation_not_found, got %q", errMsg.Code)
	}
	if errMsg.ReplyTo == nil || *errMsg.ReplyTo != "m1" {
		t.Errorf("error must correlate to the request, got %v", errMsg.ReplyTo)
	}
}

func TestNotifyReachesOnlySubscribers(t *testing.T) {
	srv := New(nil)
	subscriber := dial(t, srv)
	bystander := dial(t, srv)

	subscriber.send(protocol.Subscribe{ID: "s1", Timestamp: 1, Events: []string{"reminders"}})
	// Subscribe has no acknowledgment; ping to know it was processed.
	subscriber.send(protocol.Ping{ID: "p1", Timestamp: 2})
	subscriber.recv()

	srv.Notify("Reminder", "stand up", "reminders")

	note, ok := subscriber.recv().(protocol.Notification)
	if !ok {
		t.Fatal("want notification")
	}
	if note.Category != "reminders" || note.Body != "stand up" {
		t.Errorf("unexpected notification: %+v", note)
	}

	// The bystander never subscribed; a ping round-trip proves nothing else
	// was queued ahead of the pong.
	bystander.send(protocol.Ping{ID: "p2", Timestamp: 3})
	if _, ok := bystander.recv().(protocol.Pong); !ok {
		t.Error("bystander should only see its pong")
	}
}
