package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/prsnlassistant/client/pkg/protocol"
)

// Responder produces the assistant's reply to a user message.
type Responder func(convID, body string) string

// EchoResponder repeats the user's message back.
func EchoResponder(convID, body string) string {
	return fmt.Sprintf("You said: %s", body)
}

// Server is the development endpoint. The zero value is not usable; create
// one with New.
type Server struct {
	store     *store
	responder Responder

	mu    sync.Mutex
	conns map[*clientConn]struct{}

	httpServer *http.Server
	listener   net.Listener
}

// clientConn is one connected websocket client with its subscriptions.
type clientConn struct {
	mu         sync.Mutex // serializes frame writes
	conn       *websocket.Conn
	categories map[string]struct{}
}

func (c *clientConn) send(msg protocol.ServerMessage) error {
	data, err := protocol.EncodeServer(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *clientConn) subscribed(category string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.categories[category]
	return ok
}

func (c *clientConn) subscribe(categories []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range categories {
		c.categories[cat] = struct{}{}
	}
}

// New creates a server that answers user messages through responder. A nil
// responder echoes.
func New(responder Responder) *Server {
	if responder == nil {
		responder = EchoResponder
	}
	return &Server{
		store:     newStore(),
		responder: responder,
		conns:     make(map[*clientConn]struct{}),
	}
}

// Start listens on addr and serves until Stop.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("serve failed", "err", err)
		}
	}()
	slog.Info("listening", "addr", listener.Addr())
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the listener down and drops open connections.
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.conn.Close(websocket.StatusGoingAway, "server stopping")
	}
	s.mu.Unlock()
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("accept failed", "err", err)
		return
	}
	conn.SetReadLimit(16 << 20)

	c := &clientConn{conn: conn, categories: make(map[string]struct{})}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClient(data)
		if err != nil {
			slog.Warn("dropping malformed frame", "err", err)
			continue
		}
		s.handle(c, msg)
	}
}

// Notify pushes a notification to every client subscribed to category.
func (s *Server) Notify(title, body, category string) {
	msg := protocol.Notification{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Title:     title,
		Body:      body,
		Category:  category,
	}
	s.mu.Lock()
	conns := make([]*clientConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if !c.subscribed(category) {
			continue
		}
		if err := c.send(msg); err != nil {
			slog.Debug("notification write failed", "err", err)
		}
	}
}

// CreateConversation seeds a conversation outside the protocol, for tests
// and demo data.
func (s *Server) CreateConversation(title string) string {
	var t *string
	if title != "" {
		t = &title
	}
	return s.store.create(t)
}

// SeedMessage stores a finished exchange in a conversation.
func (s *Server) SeedMessage(convID, role, content string) {
	s.store.append(convID, role, content)
}

func (s *Server) handle(c *clientConn, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.Ping:
		s.reply(c, protocol.Pong{ID: uuid.NewString(), Timestamp: time.Now().UnixMilli()})

	case protocol.Subscribe:
		c.subscribe(m.Events)

	case protocol.ListConversations:
		s.reply(c, protocol.ConversationsList{
			ID:            uuid.NewString(),
			Timestamp:     time.Now().UnixMilli(),
			Conversations: s.store.list(),
		})

	case protocol.GetHistory:
		limit := 0
		if m.Limit != nil {
			limit = *m.Limit
		}
		msgs, ok := s.store.history(m.ConversationID, limit)
		if !ok {
			s.sendError(c, m.ID, m.ConversationID, "conversation_not_found")
			return
		}
		s.reply(c, protocol.History{
			ID:             uuid.NewString(),
			Timestamp:      time.Now().UnixMilli(),
			ConversationID: m.ConversationID,
			Messages:       msgs,
		})

	case protocol.CreateConversation:
		id := s.store.create(m.Title)
		s.reply(c, protocol.ConversationCreated{
			ID:             uuid.NewString(),
			Timestamp:      time.Now().UnixMilli(),
			ConversationID: id,
			Title:          m.Title,
		})

	case protocol.DeleteConversation:
		if !s.store.delete(m.ConversationID) {
			s.sendError(c, m.ID, m.ConversationID, "conversation_not_found")
			return
		}
		s.reply(c, protocol.ConversationDeleted{
			ID:             uuid.NewString(),
			Timestamp:      time.Now().UnixMilli(),
			ConversationID: m.ConversationID,
		})

	case protocol.Chat:
		s.handleChat(c, m)
	}
}

func (s *Server) handleChat(c *clientConn, m protocol.Chat) {
	if !s.store.appendUser(m.ConversationID, m.Body) {
		s.sendError(c, m.ID, m.ConversationID, "conversation_not_found")
		return
	}

	convID := m.ConversationID
	s.reply(c, protocol.Typing{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
		ReplyTo:        m.ID,
		ConversationID: &convID,
		IsTyping:       true,
	})

	body := s.responder(m.ConversationID, m.Body)
	s.store.appendAssistant(m.ConversationID, body)
	s.reply(c, protocol.Response{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
		ReplyTo:        m.ID,
		ConversationID: &convID,
		Body:           body,
	})
}

func (s *Server) sendError(c *clientConn, replyTo, convID, code string) {
	s.reply(c, protocol.ErrorMessage{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
		ReplyTo:        &replyTo,
		ConversationID: &convID,
		Code:           code,
		Message:        code,
	})
}

func (s *Server) reply(c *clientConn, msg protocol.ServerMessage) {
	if err := c.send(msg); err != nil {
		slog.Debug("reply write failed", "tag", msg.ServerTag(), "err", err)
	}
}
