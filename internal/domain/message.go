package domain

import (
	"context"
	"time"
)

// Message is a single direct message between two identities. The ID and
// CreatedAt are assigned by the message store at creation and never change.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	MediaRef   string    `json:"mediaRef,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Less reports whether m sorts before other in conversation order:
// creation time first, ties broken by ID so every client observes the
// same stable ordering.
func (m *Message) Less(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Involves reports whether identity is one of the two participants.
func (m *Message) Involves(identity string) bool {
	return m.SenderID == identity || m.ReceiverID == identity
}

// Between reports whether the message belongs to the conversation
// between a and b, in either direction.
func (m *Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}

// MessageRepository is the durable record of messages. Create assigns the
// ID and CreatedAt; Delete is a hard delete; ListBetween returns the live
// messages of one conversation in conversation order.
type MessageRepository interface {
	Create(ctx context.Context, senderID, receiverID, text, mediaRef string) (*Message, error)
	GetByID(ctx context.Context, id string) (*Message, error)
	Delete(ctx context.Context, id string) error
	ListBetween(ctx context.Context, a, b string) ([]*Message, error)
}
