// Package chat implements the message operations: validate, persist, then
// notify. The two steps are not transactional. The store write must be
// acknowledged before any event is published, and a publish failure never
// rolls the write back. A message that was stored but not announced is
// picked up by the recipient's next history fetch.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nfrund/courier/internal/domain"
	"github.com/nfrund/courier/internal/pubsub"
)

// Service orchestrates message creation, deletion, and history reads.
type Service struct {
	store     domain.MessageRepository
	users     domain.UserRepository
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewService creates a chat service.
func NewService(store domain.MessageRepository, users domain.UserRepository, publisher pubsub.Publisher) *Service {
	return &Service{
		store:     store,
		users:     users,
		publisher: publisher,
		logger:    slog.Default().With("service", "chat"),
	}
}

// Send validates and persists a new message, then announces it on the bus.
// Persistence errors are returned to the caller; announcement errors are
// not, because by then the message is durable and live delivery is
// best-effort.
func (s *Service) Send(ctx context.Context, senderID, receiverID, text, mediaRef string) (*domain.Message, error) {
	text = strings.TrimSpace(text)

	if senderID == "" || receiverID == "" || senderID == receiverID {
		return nil, domain.ErrValidation
	}
	if text == "" && mediaRef == "" {
		return nil, domain.ErrValidation
	}

	for _, id := range []string{senderID, receiverID} {
		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrUnknownUser
		}
	}

	msg, err := s.store.Create(ctx, senderID, receiverID, text, mediaRef)
	if err != nil {
		return nil, err
	}

	s.announce(ctx, Notice{
		Kind:       KindCreated,
		Message:    msg,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
	})

	return msg, nil
}

// Delete removes a message if the requester is one of its participants,
// then announces the deletion. The delete is hard; nothing of the message
// survives in the store.
func (s *Service) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := s.store.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if !msg.Involves(requesterID) {
		return domain.ErrNotParticipant
	}

	if err := s.store.Delete(ctx, messageID); err != nil {
		return err
	}

	s.announce(ctx, Notice{
		Kind:       KindDeleted,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
	})

	return nil
}

// History returns the live messages between the requester and a peer, in
// conversation order. This is the client's catch-up path after connecting
// or switching conversations.
func (s *Service) History(ctx context.Context, selfID, peerID string) ([]*domain.Message, error) {
	ok, err := s.users.Exists(ctx, peerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUnknownUser
	}

	return s.store.ListBetween(ctx, selfID, peerID)
}

// Peers returns every other user, for the conversation sidebar.
func (s *Service) Peers(ctx context.Context, selfID string) ([]*domain.User, error) {
	return s.users.List(ctx, selfID)
}

// announce publishes a store-confirmed mutation. Failure is logged and
// swallowed: the requester already has a durable result and recipients
// recover through their next history fetch.
func (s *Service) announce(ctx context.Context, notice Notice) {
	payload, err := json.Marshal(notice)
	if err != nil {
		s.logger.Error("Failed to marshal message notice", "error", err, "kind", notice.Kind)
		return
	}

	err = s.publisher.Publish(ctx, pubsub.Message{
		Topic:    TopicMessageEvents.Name(),
		Identity: notice.SenderID,
		Payload:  payload,
	})
	if err != nil {
		s.logger.Error("Failed to announce message event",
			"error", err,
			"kind", notice.Kind,
			"message_id", notice.MessageID)
	}
}
