package chat

import (
	"github.com/nfrund/courier/internal/domain"
	"github.com/nfrund/courier/internal/topics"
)

// TopicMessageEvents carries store-confirmed message mutations to the
// dispatcher. Creates and deletes share one topic on purpose: a single
// subscription consumes them sequentially in publish order, which is what
// makes per-conversation delivery order equal persistence-confirmation
// order, so a delete can never overtake the create it follows.
var TopicMessageEvents = topics.Define(topics.Config{
	Name:        "chat.message.events",
	Description: "Store-confirmed message creates and deletes, in persistence order",
	Example:     `{"kind":"created","message":{"id":"m1","senderId":"a","receiverId":"b"}}`,
})

// Notice kinds.
const (
	KindCreated = "created"
	KindDeleted = "deleted"
)

// Notice is the internal bus payload for a message mutation. It always
// carries both participant identities so the dispatcher can resolve
// connections without a store read.
type Notice struct {
	Kind       string          `json:"kind"`
	Message    *domain.Message `json:"message,omitempty"`
	MessageID  string          `json:"messageId,omitempty"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
}

// RegisterTopics registers the chat topics with the default registry.
func RegisterTopics() error {
	return topics.Default().Register(TopicMessageEvents)
}
