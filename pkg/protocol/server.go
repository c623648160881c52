package protocol

import "errors"

// Server->client message tags.
const (
	TagResponse            = "response"
	TagPong                = "pong"
	TagNotification        = "notification"
	TagError               = "error"
	TagTyping              = "typing"
	TagConversationsList   = "conversations_list"
	TagHistory             = "history"
	TagConversationCreated = "conversation_created"
	TagConversationDeleted = "conversation_deleted"
)

// ServerMessage is a message received from the server.
type ServerMessage interface {
	// ServerTag returns the wire tag identifying the message variant.
	ServerTag() string
}

// Response carries the assistant's reply to a chat message.
type Response struct {
	ID             string        `json:"id"`
	Timestamp      int64         `json:"timestamp"`
	ReplyTo        string        `json:"replyTo"`
	ConversationID *string       `json:"conversationId,omitempty"`
	Body           string        `json:"body"`
	Image          *ImagePayload `json:"image,omitempty"`
}

// Pong acknowledges an application-level ping.
type Pong struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is a server-pushed notice in a subscribed category.
type Notification struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Category  string `json:"category"`
}

// ErrorMessage reports a failed request, optionally correlated to it.
type ErrorMessage struct {
	ID             string  `json:"id"`
	Timestamp      int64   `json:"timestamp"`
	ReplyTo        *string `json:"replyTo,omitempty"`
	ConversationID *string `json:"conversationId,omitempty"`
	Code           string  `json:"code"`
	Message        string  `json:"message"`
}

// Typing signals that the assistant started or stopped composing a reply.
type Typing struct {
	ID             string  `json:"id"`
	Timestamp      int64   `json:"timestamp"`
	ReplyTo        string  `json:"replyTo"`
	ConversationID *string `json:"conversationId,omitempty"`
	IsTyping       bool    `json:"isTyping"`
}

// ConversationInfo is a summary entry in a conversations_list message.
type ConversationInfo struct {
	ID              string  `json:"id"`
	LastMessage     *string `json:"lastMessage,omitempty"`
	LastMessageTime *int64  `json:"lastMessageTime,omitempty"`
	MessageCount    int     `json:"messageCount"`
}

// ConversationsList carries the server's conversation summaries.
type ConversationsList struct {
	ID            string             `json:"id"`
	Timestamp     int64              `json:"timestamp"`
	Conversations []ConversationInfo `json:"conversations"`
}

// HistoryMessage is a single record in a history message.
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// History carries stored messages for one conversation.
type History struct {
	ID             string           `json:"id"`
	Timestamp      int64            `json:"timestamp"`
	ConversationID string           `json:"conversationId"`
	Messages       []HistoryMessage `json:"messages"`
}

// ConversationCreated acknowledges a create_conversation request.
type ConversationCreated struct {
	ID             string  `json:"id"`
	Timestamp      int64   `json:"timestamp"`
	ConversationID string  `json:"conversationId"`
	Title          *string `json:"title,omitempty"`
}

// ConversationDeleted acknowledges a delete_conversation request.
type ConversationDeleted struct {
	ID             string `json:"id"`
	Timestamp      int64  `json:"timestamp"`
	ConversationID string `json:"conversationId"`
}

func (Response) ServerTag() string            { return TagResponse }
func (Pong) ServerTag() string                { return TagPong }
func (Notification) ServerTag() string        { return TagNotification }
func (ErrorMessage) ServerTag() string        { return TagError }
func (Typing) ServerTag() string              { return TagTyping }
func (ConversationsList) ServerTag() string   { return TagConversationsList }
func (History) ServerTag() string             { return TagHistory }
func (ConversationCreated) ServerTag() string { return TagConversationCreated }
func (ConversationDeleted) ServerTag() string { return TagConversationDeleted }

// EncodeServer serializes a server message into its tagged JSON form.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	return encode(msg.ServerTag(), msg)
}

// DecodeServer deserializes a tagged JSON frame into a server message.
// Unknown tags and malformed payloads are reported as a ParseError.
func DecodeServer(data []byte) (ServerMessage, error) {
	var env envelope
	if err := decodeInto("", data, &env); err != nil {
		return nil, err
	}
	var msg ServerMessage
	var err error
	switch env.Type {
	case TagResponse:
		var m Response
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagPong:
		var m Pong
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagNotification:
		var m Notification
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagError:
		var m ErrorMessage
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagTyping:
		var m Typing
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagConversationsList:
		var m ConversationsList
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagHistory:
		var m History
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagConversationCreated:
		var m ConversationCreated
		err = decodeInto(env.Type, data, &m)
		msg = m
	case TagConversationDeleted:
		var m ConversationDeleted
		err = decodeInto(env.Type, data, &m)
		msg = m
	default:
		return nil, &ParseError{Tag: env.Type, Err: errors.New("unknown server message type")}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}
