package protocol

import "errors"

// Client->server message tags.
const (
	TagChat               = "chat"
	TagPing               = "ping"
	TagSubscribe          = "subscribe"
	TagListConversations  = "list_conversations"
	TagGetHistory         = "get_history"
	TagCreateConversation = "create_conversation"
	TagDeleteConversation = "delete_conversation"
)

// ClientMessage is a message sent from the client to the server.
type ClientMessage interface {
	// ClientTag returns the wire tag identifying the message variant.
	ClientTag() string
}

// Chat sends a user message into a conversation.
type Chat struct {
	ID             string        `json:"id"`
	Timestamp      int64         `json:"timestamp"`
	ConversationID string        `json:"conversationId"`
	Body           string        `json:"body"`
	Image          *ImagePayload `json:"image,omitempty"`
	ReplyTo        *string       `json:"replyTo,omitempty"`
}

// Ping is the application-level keep-alive probe.
type Ping struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Subscribe registers interest in server-pushed event categories.
type Subscribe struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Events    []string `json:"events"`
}

// ListConversations requests the conversation summaries.
type ListConversations struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// GetHistory requests up to Limit messages of a conversation's history.
type GetHistory struct {
	ID             string `json:"id"`
	Timestamp      int64  `json:"timestamp"`
	ConversationID string `json:"conversationId"`
	Limit          *int   `json:"limit,omitempty"`
}

// CreateConversation requests a new conversation.
type CreateConversation struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Title     *string `json:"title,omitempty"`
}

// DeleteConversation requests removal of a conversation.
type DeleteConversation struct {
	ID             string `json:"id"`
	Timestamp      int64  `json:"timestamp"`
	ConversationID string `json:"conversationId"`
}

func (Chat) ClientTag() string               { return TagChat }
func (Ping) ClientTag() string               { return TagPing }
func (Subscribe) ClientTag() string          { return TagSubscribe }
func (ListConversations) ClientTag() string  { return TagListConversations }
func (GetHistory) ClientTag() string         { return TagGetHistory }
func (CreateConversation) ClientTag() string { return TagCreateConversation }
func (DeleteConversation) ClientTag() string { return TagDeleteConversation }

// EncodeClient serializes a client message into its tagged JSON form.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return encode(msg.ClientTag(), msg)
}

// DecodeClient deserializes a tagged JSON frame into a client message.
// Unknown tags and malformed payloads are reported as a ParseError.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := decodeInto("", data, &env); err != nil {
		return nil, err
	}
	var msg ClientMessage
	var err error
	switch env.Type {
	case TagChat:
		var m Chat
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagPing:
		var m Ping
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagSubscribe:
		var m Subscribe
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagListConversations:
		var m ListConversations
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagGetHistory:
		var m GetHistory
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagCreateConversation:
		var m CreateConversation
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagDeleteConversation:
		var m DeleteConversation
		err = decodeInto(env.Type, data, &m)
		msg = m
	default:
		return nil, &ParseError{Tag: env.Type, Err: errors.New("unknown client message type")}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}
