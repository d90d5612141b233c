package domain

import "context"

// User is the account a chat identity belongs to. The ID is the opaque
// identity used as the connection registry key; it is issued by the auth
// collaborator and never re-validated here.
type User struct {
	ID     string  `json:"id"`
	Email  string  `json:"email"`
	Name   *string `json:"name,omitempty"`
	Avatar string  `json:"avatar,omitempty"`
}

// UserRepository defines the user lookups the messaging core needs. It
// lives in the domain because it's a requirement OF the domain, not of
// the database implementation.
type UserRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// List returns every user except the given one, for the peer sidebar.
	List(ctx context.Context, excludeID string) ([]*User, error)
}
