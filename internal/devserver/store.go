// Package devserver is an in-memory assistant endpoint for development and
// tests. It speaks the full wire protocol over websockets: conversation
// management, history, typing indicators, and canned assistant replies.
package devserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prsnlassistant/client/pkg/protocol"
)

type storedMessage struct {
	role      string
	content   string
	timestamp int64
}

type conversation struct {
	id       string
	title    *string
	messages []storedMessage
}

// store holds the conversations of one server instance.
type store struct {
	mu            sync.Mutex
	conversations map[string]*conversation
	order         []string
}

func newStore() *store {
	return &store{conversations: make(map[string]*conversation)}
}

func (s *store) create(title *string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "conv-" + uuid.NewString()
	s.conversations[id] = &conversation{id: id, title: title}
	s.order = append(s.order, id)
	return id
}

func (s *store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false
	}
	delete(s.conversations, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// appendUser records a user message the way the production store does: the
// body is wrapped with the date preamble clients strip on history load.
func (s *store) appendUser(convID, body string) bool {
	content := fmt.Sprintf("Current Date: %s\nBody: %s",
		time.Now().Format("2006-01-02"), body)
	return s.append(convID, "user", content)
}

func (s *store) appendAssistant(convID, body string) bool {
	return s.append(convID, "assistant", body)
}

func (s *store) append(convID, role, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return false
	}
	conv.messages = append(conv.messages, storedMessage{
		role:      role,
		content:   content,
		timestamp: time.Now().UnixMilli(),
	})
	return true
}

func (s *store) list() []protocol.ConversationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]protocol.ConversationInfo, 0, len(s.order))
	for _, id := range s.order {
		conv := s.conversations[id]
		info := protocol.ConversationInfo{
			ID:           conv.id,
			MessageCount: len(conv.messages),
		}
		if n := len(conv.messages); n > 0 {
			last := conv.messages[n-1]
			content := last.content
			info.LastMessage = &content
			ts := last.timestamp
			info.LastMessageTime = &ts
		}
		infos = append(infos, info)
	}
	return infos
}

// history returns up to limit most recent messages, oldest first. A limit of
// zero or less means everything.
func (s *store) history(convID string, limit int) ([]protocol.HistoryMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, false
	}
	msgs := conv.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]protocol.HistoryMessage, len(msgs))
	for i, m := range msgs {
		ts := m.timestamp
		out[i] = protocol.HistoryMessage{Role: m.role, Content: m.content, Timestamp: &ts}
	}
	return out, true
}
