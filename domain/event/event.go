package event

import (
	"time"

	"veilchat/domain"
)

// DomainEvent is anything the relay pushes to a live connection.
// Name is the wire-level event name.
type DomainEvent interface {
	Name() string
}

// NewMessage is fanned out to every live connection of the receiver
// and to the sender's other devices after a message is persisted.
// The ciphertext travels through unchanged.
type NewMessage struct {
	ID         domain.MessageID   `json:"id"`
	SenderID   domain.UserID      `json:"sender_id"`
	ReceiverID domain.UserID      `json:"receiver_id"`
	Ciphertext string             `json:"encrypted_content"`
	Type       domain.MessageType `json:"message_type"`
	MediaRef   *string            `json:"media_url"`
	ReplyTo    *domain.MessageID  `json:"reply_to_message_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Read       bool               `json:"is_read"`
}

func (NewMessage) Name() string { return "new_message" }

// MessageSent acknowledges a successful send to the origin connection
// only, carrying the server-assigned message id.
type MessageSent struct {
	MessageID domain.MessageID `json:"message_id"`
}

func (MessageSent) Name() string { return "message_sent" }

// Error reports a scoped failure to the origin connection. The reason
// is one of the wire taxonomy values; the connection stays alive.
type Error struct {
	Reason string `json:"reason"`
}

func (Error) Name() string { return "error" }

// Typing is a best-effort ephemeral signal. It may be dropped or
// coalesced without consequence.
type Typing struct {
	SenderID domain.UserID `json:"sender_id"`
	IsTyping bool          `json:"is_typing"`
}

func (Typing) Name() string { return "typing" }

// MessagesRead tells a sender's devices that the reader has committed
// read flags for the listed messages.
type MessagesRead struct {
	MessageIDs []domain.MessageID `json:"message_ids"`
	ReaderID   domain.UserID      `json:"reader_id"`
}

func (MessagesRead) Name() string { return "messages_read" }

// FromMessage builds the fan-out representation of a stored message.
func FromMessage(m domain.Message) NewMessage {
	return NewMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Ciphertext: m.Ciphertext,
		Type:       m.Type,
		MediaRef:   m.MediaRef,
		ReplyTo:    m.ReplyTo,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}
