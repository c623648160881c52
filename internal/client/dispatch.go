package client

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
	"github.com/prsnlassistant/client/pkg/protocol"
)

// Dispatch maps one inbound server message to zero or one application
// event. Both transport variants call it from their read path. Frames that
// carry no event (pong, notification) are handled here too.
func Dispatch(msg protocol.ServerMessage, bus *event.Bus) {
	switch m := msg.(type) {
	case protocol.Response:
		if m.ConversationID == nil {
			slog.Debug("response without conversation id dropped", "replyTo", m.ReplyTo)
			return
		}
		message := types.NewAssistantMessage(m.ID, m.Body, imageData(m.Image))
		bus.Publish(event.MessageReceived{ConvID: *m.ConversationID, Message: message})

	case protocol.Typing:
		if m.ConversationID == nil {
			return
		}
		bus.Publish(event.TypingChanged{ConvID: *m.ConversationID, IsTyping: m.IsTyping})

	case protocol.ErrorMessage:
		slog.Warn("server error", "code", m.Code, "message", m.Message)
		if m.ReplyTo == nil || m.ConversationID == nil {
			return
		}
		bus.Publish(event.MessageError{ConvID: *m.ConversationID, MsgID: *m.ReplyTo, Error: m.Message})

	case protocol.ConversationsList:
		convs := make([]*types.Conversation, 0, len(m.Conversations))
		for _, info := range m.Conversations {
			var lastMessage string
			if info.LastMessage != nil {
				lastMessage = *info.LastMessage
			}
			var lastTime time.Time
			if info.LastMessageTime != nil {
				lastTime = time.UnixMilli(*info.LastMessageTime)
			}
			convs = append(convs, types.ConversationFromServer(info.ID, lastMessage, lastTime, info.MessageCount))
		}
		bus.Publish(event.ConversationsLoaded{Conversations: convs})

	case protocol.History:
		messages := make([]types.Message, 0, len(m.Messages))
		for _, record := range m.Messages {
			parsed, ok := parseHistoryMessage(record)
			if !ok {
				slog.Debug("history record with unknown role dropped", "role", record.Role)
				continue
			}
			messages = append(messages, parsed)
		}
		bus.Publish(event.HistoryLoaded{ConvID: m.ConversationID, Messages: messages})

	case protocol.ConversationCreated:
		var title string
		if m.Title != nil {
			title = *m.Title
		}
		bus.Publish(event.ConversationCreated{ID: m.ConversationID, Title: title})

	case protocol.ConversationDeleted:
		bus.Publish(event.ConversationDeleted{ID: m.ConversationID})

	case protocol.Notification:
		// No event in the current scope; notifications are surfaced by the
		// host platform, not this layer.
		slog.Info("notification", "category", m.Category, "title", m.Title, "body", m.Body)

	case protocol.Pong:
		// Heartbeat acknowledgment.
	}
}

// bodyPrefix marks user history records that carry request metadata ahead
// of the actual text.
const bodyPrefix = "Body: "

// parseHistoryMessage converts one stored record into a Message. Records
// with an unrecognized role are rejected. User records may embed metadata
// ("Current Date: ...\nBody: ..."); only the text after "Body: " is kept.
func parseHistoryMessage(m protocol.HistoryMessage) (types.Message, bool) {
	var sender types.Sender
	switch m.Role {
	case "user":
		sender = types.SenderUser
	case "assistant":
		sender = types.SenderAssistant
	case "system":
		sender = types.SenderSystem
	default:
		return types.Message{}, false
	}

	body := m.Content
	if sender == types.SenderUser && strings.HasPrefix(body, "Current Date:") {
		for _, line := range strings.Split(body, "\n") {
			if strings.HasPrefix(line, bodyPrefix) {
				body = strings.TrimPrefix(line, bodyPrefix)
				break
			}
		}
	}

	timestamp := time.Now()
	if m.Timestamp != nil {
		timestamp = time.UnixMilli(*m.Timestamp)
	}

	return types.Message{
		ID:        uuid.NewString(),
		Body:      body,
		Timestamp: timestamp,
		Sender:    sender,
		Status:    types.StatusDelivered,
	}, true
}

func imageData(p *protocol.ImagePayload) *types.ImageData {
	if p == nil {
		return nil
	}
	return &types.ImageData{Data: p.Data, Mimetype: p.Mimetype}
}
