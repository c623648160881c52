package conversations

import (
	"log/slog"

	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/event"
)

// Service reacts to bus events to keep State in sync and issues protocol
// requests through the transport.
type Service struct {
	state     *State
	bus       *event.Bus
	transport client.Transport
	sub       *event.Subscription
}

// NewService creates a conversations service over state.
func NewService(state *State, bus *event.Bus, transport client.Transport) *Service {
	return &Service{state: state, bus: bus, transport: transport}
}

// Start subscribes to the bus and runs the background listener.
func (s *Service) Start() {
	s.sub = s.bus.Subscribe()
	go s.listen(s.sub)
}

// Stop ends the background listener.
func (s *Service) Stop() {
	if s.sub != nil {
		s.sub.Close()
	}
}

func (s *Service) listen(sub *event.Subscription) {
	for ev := range sub.Events() {
		switch e := ev.(type) {
		case event.ConversationsLoaded:
			s.state.setConversations(e.Conversations)
		case event.ConversationCreated:
			s.state.createConversation(e.ID, e.Title)
		case event.ConversationDeleted:
			s.state.deleteConversation(e.ID)
		case event.MessageSent:
			s.state.recordMessage(e.ConvID, e.Message.Body, e.Message.Timestamp)
		case event.MessageReceived:
			s.state.recordMessage(e.ConvID, e.Message.Body, e.Message.Timestamp)
		case event.NavigateToList:
			s.state.goToList()
		case event.NavigateToChat:
			s.state.openConversation(e.ConvID)
		}
	}
}

// SelectConversation opens a conversation and requests its recent history.
func (s *Service) SelectConversation(id string) {
	slog.Info("opening conversation", "id", id)
	s.state.openConversation(id)
	s.bus.Publish(event.ConversationSelected{ConvID: id})

	go func() {
		if err := s.transport.SendGetHistory(id, client.HistoryLimit); err != nil {
			slog.Warn("history request failed", "id", id, "err", err)
		}
	}()
}

// CreateConversation asks the server for a new conversation. The state is
// updated when the acknowledgment arrives.
func (s *Service) CreateConversation(title string) {
	slog.Info("creating conversation")
	go func() {
		if err := s.transport.SendCreateConversation(title); err != nil {
			slog.Warn("create request failed", "err", err)
		}
	}()
}

// DeleteConversation asks the server to remove a conversation.
func (s *Service) DeleteConversation(id string) {
	slog.Info("deleting conversation", "id", id)
	go func() {
		if err := s.transport.SendDeleteConversation(id); err != nil {
			slog.Warn("delete request failed", "id", id, "err", err)
		}
	}()
}

// GoBack returns to the conversation list.
func (s *Service) GoBack() {
	s.state.goToList()
	s.bus.Publish(event.NavigateToList{})
}

// State returns the state this service maintains.
func (s *Service) State() *State {
	return s.state
}
