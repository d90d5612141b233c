package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/courier/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

// messageRow is the SELECT shape for messages. The record ID is projected
// to a plain string with meta::id so the rest of the system never sees a
// SurrealDB record handle.
type messageRow struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	MediaRef   string    `json:"mediaRef"`
	CreatedAt  time.Time `json:"createdAt"`
}

const messageFields = "meta::id(id) AS id, senderId, receiverId, text, mediaRef, createdAt"

func (r *messageRow) toDomain() *domain.Message {
	return &domain.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Text:       r.Text,
		MediaRef:   r.MediaRef,
		CreatedAt:  r.CreatedAt,
	}
}

// MessageStore is the SurrealDB implementation of domain.MessageRepository.
type MessageStore struct {
	db *surrealdb.DB
}

// NewMessageStore creates a message store on an established connection.
func NewMessageStore(db *surrealdb.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Create persists a new message. The ID is assigned here and createdAt by
// the database, so ordering within a conversation follows the database
// clock, not the caller's.
func (s *MessageStore) Create(ctx context.Context, senderID, receiverID, text, mediaRef string) (*domain.Message, error) {
	id := uuid.NewString()

	query := `CREATE type::thing('message', $id) SET
		senderId = $senderId,
		receiverId = $receiverId,
		text = $text,
		mediaRef = $mediaRef,
		createdAt = time::now()
	RETURN NONE`
	params := map[string]any{
		"id":         id,
		"senderId":   senderID,
		"receiverId": receiverID,
		"text":       text,
		"mediaRef":   mediaRef,
	}

	if err := Execute(ctx, s.db, query, params); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	// Read the record back so the returned message carries the createdAt
	// the database assigned.
	created, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created message: %w", err)
	}
	return created, nil
}

// GetByID returns a message or domain.ErrNotFound.
func (s *MessageStore) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	query := "SELECT " + messageFields + " FROM type::thing('message', $id)"
	row, err := QueryOne[messageRow](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return row.toDomain(), nil
}

// Delete hard-deletes a message or returns domain.ErrNotFound.
func (s *MessageStore) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	query := "DELETE type::thing('message', $id)"
	if err := Execute(ctx, s.db, query, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ListBetween returns the conversation between a and b, oldest first with
// ID tie-breaks.
func (s *MessageStore) ListBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	query := "SELECT " + messageFields + ` FROM message
		WHERE (senderId = $a AND receiverId = $b) OR (senderId = $b AND receiverId = $a)
		ORDER BY createdAt ASC, id ASC`
	rows, err := Query[messageRow](ctx, s.db, query, map[string]any{"a": a, "b": b})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]*domain.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}
