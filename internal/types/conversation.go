package types

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionStatus is the externally visible state of the server link.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// DefaultTitle is used for conversations created without an explicit title.
const DefaultTitle = "New Chat"

// Conversation mirrors one server-side conversation. The Messages slice is
// append-only except for wholesale replacement on history load. Pending
// holds ids of user messages still awaiting a server correlation; every id
// in Pending references a message in Messages with StatusSending.
type Conversation struct {
	ID                 string
	Title              string
	Messages           []Message
	LastMessageTime    time.Time
	LastMessagePreview string
	MessageCount       int
	Pending            map[string]struct{}
}

// NewConversation creates an empty conversation. An empty title falls back
// to DefaultTitle.
func NewConversation(id, title string) *Conversation {
	if title == "" {
		title = DefaultTitle
	}
	return &Conversation{
		ID:      id,
		Title:   title,
		Pending: make(map[string]struct{}),
	}
}

// ConversationFromServer builds a conversation from a list summary. The
// display title is derived from the id since summaries carry none.
func ConversationFromServer(id, lastMessage string, lastMessageTime time.Time, messageCount int) *Conversation {
	shortID := id
	if parts := strings.SplitN(id, "-", 3); len(parts) > 1 {
		shortID = parts[1]
	}
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return &Conversation{
		ID:                 id,
		Title:              fmt.Sprintf("Chat %s", shortID),
		LastMessageTime:    lastMessageTime,
		LastMessagePreview: lastMessage,
		MessageCount:       messageCount,
		Pending:            make(map[string]struct{}),
	}
}

// AddUserMessage appends an optimistic user message and marks it pending.
func (c *Conversation) AddUserMessage(msg Message) {
	if c.Pending == nil {
		c.Pending = make(map[string]struct{})
	}
	c.Pending[msg.ID] = struct{}{}
	c.LastMessageTime = msg.Timestamp
	c.LastMessagePreview = msg.Body
	c.MessageCount++
	c.Messages = append(c.Messages, msg)
}

// AddResponse appends a server response, resolving the pending message it
// correlates to.
func (c *Conversation) AddResponse(replyTo string, response Message) {
	delete(c.Pending, replyTo)
	for i := range c.Messages {
		if c.Messages[i].ID == replyTo {
			c.Messages[i].Status = StatusDelivered
			break
		}
	}
	c.LastMessageTime = response.Timestamp
	c.LastMessagePreview = response.Body
	c.MessageCount++
	c.Messages = append(c.Messages, response)
}

// MarkMessageError resolves a pending message as failed.
func (c *Conversation) MarkMessageError(id, reason string) {
	delete(c.Pending, id)
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].Status = StatusError
			c.Messages[i].Error = reason
			break
		}
	}
}

// MarkMessageSent records that the server accepted a message.
func (c *Conversation) MarkMessageSent(id string) {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].Status = StatusSent
			break
		}
	}
}

// SetMessages replaces the message list wholesale (history load).
func (c *Conversation) SetMessages(messages []Message) {
	c.Messages = messages
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		c.LastMessageTime = last.Timestamp
		c.LastMessagePreview = last.Body
	}
}
