// Package testutils provides in-memory implementations of the domain
// repositories for tests. They honor the same contracts as the SurrealDB
// stores: the message repo assigns IDs and creation times, deletes hard,
// and lists conversations in creation order with ID tie-breaks.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/courier/internal/domain"
)

// MemMessageRepo is an in-memory domain.MessageRepository.
type MemMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	clock    time.Time

	// FailCreate makes the next Create return this error, for testing the
	// no-dispatch-without-persistence property.
	FailCreate error
}

// NewMemMessageRepo creates an empty in-memory message repository.
func NewMemMessageRepo() *MemMessageRepo {
	return &MemMessageRepo{
		messages: make(map[string]*domain.Message),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Create assigns an ID and a strictly increasing creation time.
func (r *MemMessageRepo) Create(ctx context.Context, senderID, receiverID, text, mediaRef string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreate != nil {
		err := r.FailCreate
		r.FailCreate = nil
		return nil, err
	}

	r.clock = r.clock.Add(time.Millisecond)
	msg := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		MediaRef:   mediaRef,
		CreatedAt:  r.clock,
	}
	r.messages[msg.ID] = msg
	return msg, nil
}

// GetByID returns a message or domain.ErrNotFound.
func (r *MemMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

// Delete removes a message or returns domain.ErrNotFound.
func (r *MemMessageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

// ListBetween returns the conversation between a and b in stable order.
func (r *MemMessageRepo) ListBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Message
	for _, msg := range r.messages {
		if msg.Between(a, b) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// MemUserRepo is an in-memory domain.UserRepository seeded with fixed users.
type MemUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewMemUserRepo creates a user repository holding the given identities.
func NewMemUserRepo(ids ...string) *MemUserRepo {
	r := &MemUserRepo{users: make(map[string]*domain.User)}
	for _, id := range ids {
		r.users[id] = &domain.User{ID: id, Email: id + "@example.com"}
	}
	return r
}

// Exists reports whether the identity is known.
func (r *MemUserRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.users[id]
	return ok, nil
}

// GetByID returns a user or domain.ErrNotFound.
func (r *MemUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Ensure upserts a user, mirroring the SurrealDB store's login path.
func (r *MemUserRepo) Ensure(ctx context.Context, id, email string, name *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[id] = &domain.User{ID: id, Email: email, Name: name}
	return nil
}

// List returns every user except excludeID, sorted by ID.
func (r *MemUserRepo) List(ctx context.Context, excludeID string) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.User
	for id, u := range r.users {
		if id == excludeID {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
