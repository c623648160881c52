// Package chat maintains per-conversation message history and the
// optimistic-send lifecycle.
package chat

import (
	"sync"

	"github.com/prsnlassistant/client/internal/types"
)

// State is the chat feature state. The service is its only mutator;
// readers may call the accessors from any goroutine.
type State struct {
	mu       sync.RWMutex
	messages map[string][]types.Message
	activeID string
	isTyping bool
	pending  map[string]struct{}
}

// NewState creates an empty chat state.
func NewState() *State {
	return &State{
		messages: make(map[string][]types.Message),
		pending:  make(map[string]struct{}),
	}
}

// CurrentMessages returns a copy of the active conversation's messages.
func (s *State) CurrentMessages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages[s.activeID])
}

// MessagesFor returns a copy of one conversation's messages.
func (s *State) MessagesFor(convID string) []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages[convID])
}

// IsTyping reports whether the assistant is composing a reply in the
// active conversation.
func (s *State) IsTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isTyping
}

// CurrentConversationID returns the active conversation id, if any.
func (s *State) CurrentConversationID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// IsPending reports whether a message still awaits server acknowledgment.
func (s *State) IsPending(msgID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[msgID]
	return ok
}

func (s *State) setCurrentConversation(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = convID
	// Typing never carries over between conversations.
	s.isTyping = false
}

func (s *State) setTyping(convID string, isTyping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == convID {
		s.isTyping = isTyping
	}
}

func (s *State) addUserMessage(convID string, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[msg.ID] = struct{}{}
	s.messages[convID] = append(s.messages[convID], msg)
}

// lastPending returns the most recent pending message id in a conversation.
// The protocol does not guarantee a usable replyTo on responses, so
// reconciliation correlates by reverse scan instead.
func (s *State) lastPending(convID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[convID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if _, ok := s.pending[msgs[i].ID]; ok {
			return msgs[i].ID
		}
	}
	return ""
}

func (s *State) addReceivedMessage(convID, replyTo string, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, replyTo)

	msgs := s.messages[convID]
	for i := range msgs {
		if msgs[i].ID == replyTo {
			msgs[i].Status = types.StatusDelivered
			break
		}
	}

	if s.activeID == convID {
		s.isTyping = false
	}
	s.messages[convID] = append(msgs, msg)
}

func (s *State) markMessageError(convID, msgID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, msgID)

	msgs := s.messages[convID]
	for i := range msgs {
		if msgs[i].ID == msgID {
			msgs[i].Status = types.StatusError
			msgs[i].Error = reason
			break
		}
	}
}

// setHistory replaces the conversation's messages wholesale.
func (s *State) setHistory(convID string, msgs []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[convID] = msgs
}

func (s *State) clearConversation(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, convID)
	if s.activeID == convID {
		s.activeID = ""
	}
}

func copyMessages(msgs []types.Message) []types.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out
}
