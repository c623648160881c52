package chat

import (
	"log/slog"
	"strings"

	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
	"github.com/prsnlassistant/client/pkg/protocol"
)

// Service reacts to bus events to reconcile chat state and sends user
// messages through the transport.
type Service struct {
	state     *State
	bus       *event.Bus
	transport client.Transport
	sub       *event.Subscription
}

// NewService creates a chat service over state.
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
		case event.ConversationSelected:
			s.state.setCurrentConversation(e.ConvID)
		case event.MessageReceived:
			// Correlate to the most recent pending message in the
			// conversation. Responses do not reliably carry a replyTo that
			// maps onto a local message id.
			replyTo := s.state.lastPending(e.ConvID)
			s.state.addReceivedMessage(e.ConvID, replyTo, e.Message)
		case event.MessageError:
			s.state.markMessageError(e.ConvID, e.MsgID, e.Error)
		case event.TypingChanged:
			s.state.setTyping(e.ConvID, e.IsTyping)
		case event.HistoryLoaded:
			s.state.setHistory(e.ConvID, e.Messages)
		case event.ConversationDeleted:
			s.state.clearConversation(e.ID)
		case event.NavigateToList:
			s.state.setCurrentConversation("")
		}
	}
}

// SendMessage sends text and/or an image into the active conversation. The
// message is visible locally with StatusSending before any network I/O
// happens. Invalid intents (nothing to send, no active conversation) are
// ignored without any observable side effect.
func (s *Service) SendMessage(text string, image *types.ImageData) {
	if strings.TrimSpace(text) == "" && image == nil {
		return
	}
	convID, ok := s.state.CurrentConversationID()
	if !ok {
		return
	}

	msg := types.NewUserMessage(text, image)
	s.state.addUserMessage(convID, msg)
	s.bus.Publish(event.MessageSent{ConvID: convID, Message: msg})

	go func() {
		var payload *protocol.ImagePayload
		if image != nil {
			payload = &protocol.ImagePayload{Data: image.Data, Mimetype: image.Mimetype}
		}
		if err := s.transport.SendChat(convID, msg.ID, text, payload); err != nil {
			slog.Warn("chat send failed", "conv", convID, "err", err)
		}
	}()
}

// LoadHistory requests the recent history of a conversation.
func (s *Service) LoadHistory(convID string) {
	go func() {
		if err := s.transport.SendGetHistory(convID, client.HistoryLimit); err != nil {
			slog.Warn("history request failed", "conv", convID, "err", err)
		}
	}()
}

// State returns the state this service maintains.
func (s *Service) State() *State {
	return s.state
}
