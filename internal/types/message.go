// Package types holds the client-side data model shared by the transport
// and the feature services.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender int

const (
	SenderUser Sender = iota
	SenderAssistant
	SenderSystem
)

// String returns the string representation of Sender.
func (s Sender) String() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderAssistant:
		return "assistant"
	case SenderSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Status is the delivery state of a message.
type Status int

const (
	StatusSending Status = iota
	StatusSent
	StatusDelivered
	StatusError
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ImageData is a base64-encoded image attached to a message.
type ImageData struct {
	Data     string
	Mimetype string
}

// Message is a single chat message. Once created it is immutable except for
// Status and Error, which reconciliation updates.
type Message struct {
	ID        string
	Body      string
	Timestamp time.Time
	Sender    Sender
	Status    Status
	// Error holds the failure reason when Status is StatusError.
	Error string
	Image *ImageData
}

// NewUserMessage creates a message authored locally, awaiting delivery.
func NewUserMessage(body string, image *ImageData) Message {
	return Message{
		ID:        uuid.NewString(),
		Body:      body,
		Timestamp: time.Now(),
		Sender:    SenderUser,
		Status:    StatusSending,
		Image:     image,
	}
}

// NewAssistantMessage creates a delivered message from the assistant,
// keeping the server-assigned id.
func NewAssistantMessage(id, body string, image *ImageData) Message {
	return Message{
		ID:        id,
		Body:      body,
		Timestamp: time.Now(),
		Sender:    SenderAssistant,
		Status:    StatusDelivered,
		Image:     image,
	}
}

// NewSystemMessage creates a delivered system message.
func NewSystemMessage(body string) Message {
	return Message{
		ID:        uuid.NewString(),
		Body:      body,
		Timestamp: time.Now(),
		Sender:    SenderSystem,
		Status:    StatusDelivered,
	}
}
