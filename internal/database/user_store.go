package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/nfrund/courier/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

type userRow struct {
	ID     string  `json:"id"`
	Email  string  `json:"email"`
	Name   *string `json:"name"`
	Avatar string  `json:"avatar"`
}

const userFields = "meta::id(id) AS id, email, name, avatar"

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:     r.ID,
		Email:  r.Email,
		Name:   r.Name,
		Avatar: r.Avatar,
	}
}

// UserStore is the SurrealDB implementation of domain.UserRepository.
type UserStore struct {
	db *surrealdb.DB
}

// NewUserStore creates a user store on an established connection.
func NewUserStore(db *surrealdb.DB) *UserStore {
	return &UserStore{db: db}
}

// Exists reports whether the identity is known.
func (s *UserStore) Exists(ctx context.Context, id string) (bool, error) {
	query := "SELECT meta::id(id) AS id FROM type::thing('user', $id)"
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return row != nil, nil
}

// GetByID returns a user or domain.ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := "SELECT " + userFields + " FROM type::thing('user', $id)"
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return row.toDomain(), nil
}

// List returns every user except excludeID, sorted by ID so the sidebar is
// stable across fetches.
func (s *UserStore) List(ctx context.Context, excludeID string) ([]*domain.User, error) {
	query := "SELECT " + userFields + " FROM user WHERE meta::id(id) != $exclude"
	rows, err := Query[userRow](ctx, s.db, query, map[string]any{"exclude": excludeID})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]*domain.User, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Ensure upserts a user record. The login handler calls it so an identity
// asserted by the session provider always has a row to reference.
func (s *UserStore) Ensure(ctx context.Context, id, email string, name *string) error {
	query := `UPSERT type::thing('user', $id) SET
		email = $email,
		name = $name`
	params := map[string]any{
		"id":    id,
		"email": email,
		"name":  name,
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
