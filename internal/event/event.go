// Package event defines the application events exchanged between the
// transport and the feature services, and the bus that carries them.
package event

import "github.com/prsnlassistant/client/internal/types"

// AppEvent is the closed set of application events. It carries data copies
// only; no ownership passes through the bus.
type AppEvent interface {
	isAppEvent()
}

// ConnectionChanged reports a transition of the server link.
type ConnectionChanged struct {
	Status types.ConnectionStatus
}

// ConversationSelected reports that a conversation was opened.
type ConversationSelected struct {
	ConvID string
}

// ConversationCreated reports a server acknowledgment of a new conversation.
type ConversationCreated struct {
	ID    string
	Title string
}

// ConversationDeleted reports a server acknowledgment of a deletion.
type ConversationDeleted struct {
	ID string
}

// ConversationsLoaded carries the server's conversation list.
type ConversationsLoaded struct {
	Conversations []*types.Conversation
}

// MessageSent reports an optimistic local send.
type MessageSent struct {
	ConvID  string
	Message types.Message
}

// MessageReceived carries an inbound assistant message.
type MessageReceived struct {
	ConvID  string
	Message types.Message
}

// MessageError reports a server error correlated to a sent message.
type MessageError struct {
	ConvID string
	MsgID  string
	Error  string
}

// TypingChanged reports the assistant's typing indicator.
type TypingChanged struct {
	ConvID   string
	IsTyping bool
}

// HistoryLoaded carries a conversation's stored messages.
type HistoryLoaded struct {
	ConvID   string
	Messages []types.Message
}

// ServerURLChanged reports a settings change of the endpoint URL.
type ServerURLChanged struct {
	URL string
}

// SettingsModalToggled reports the settings modal opening or closing.
type SettingsModalToggled struct {
	Open bool
}

// NavigateToList requests navigation back to the conversation list.
type NavigateToList struct{}

// NavigateToChat requests navigation into a conversation.
type NavigateToChat struct {
	ConvID string
}

func (ConnectionChanged) isAppEvent()    {}
func (ConversationSelected) isAppEvent() {}
func (ConversationCreated) isAppEvent()  {}
func (ConversationDeleted) isAppEvent()  {}
func (ConversationsLoaded) isAppEvent()  {}
func (MessageSent) isAppEvent()          {}
func (MessageReceived) isAppEvent()      {}
func (MessageError) isAppEvent()         {}
func (TypingChanged) isAppEvent()        {}
func (HistoryLoaded) isAppEvent()        {}
func (ServerURLChanged) isAppEvent()     {}
func (SettingsModalToggled) isAppEvent() {}
func (NavigateToList) isAppEvent()       {}
func (NavigateToChat) isAppEvent()       {}
