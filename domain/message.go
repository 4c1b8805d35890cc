// Package domain contains core concepts of the messenger.
// This file defines Message records and related invariants.
// Ciphertext is opaque to the server: stored and forwarded, never
// inspected or transformed.
package domain

import "time"

type MessageID int64

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message represents a persisted end-to-end-encrypted message.
// Content is never mutated after creation; only the Read flag flips,
// and only through the mark-read collaborator.
type Message struct {
	ID         MessageID
	SenderID   UserID
	ReceiverID UserID
	Ciphertext string
	Type       MessageType
	MediaRef   *string
	ReplyTo    *MessageID
	Timestamp  time.Time
	Read       bool
}
