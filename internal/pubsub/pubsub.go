package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g. "chat.message.created").
	Topic string
	// Identity names the user the message concerns, when there is one.
	Identity string
	// Payload contains the raw message data (JSON).
	Payload []byte
	// Metadata can carry arbitrary key-value pairs for context (e.g. conversation key).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
// Subscribe registers the handler and returns; delivery happens on a
// background goroutine, one message at a time per subscription, so a
// single subscriber observes messages in publish order.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
