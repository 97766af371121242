// Package auth resolves transport-layer tokens to authenticated users.
// The relay invokes it once per connection at announce time; it is not
// re-verified per message.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/workforge/relay/internal/models"
	"github.com/workforge/relay/internal/store"
)

// Error is the auth failure taxonomy entry: the connection is refused
// registration and no further relay operations are possible on it.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "auth: " + e.Reason
}

// Resolver turns a presented token into a user, or fails with *Error.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// StoreResolver looks tokens up in the user table by SHA-256 digest.
type StoreResolver struct {
	db store.DataStore
}

// NewStoreResolver creates a resolver backed by the given store.
func NewStoreResolver(db store.DataStore) *StoreResolver {
	return &StoreResolver{db: db}
}

// Resolve validates the token against the user table.
func (r *StoreResolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &Error{Reason: "token required"}
	}

	user, err := r.db.GetUserByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &Error{Reason: "unknown token"}
	}
	return user, nil
}

// HashToken returns the hex SHA-256 digest under which tokens are
// stored. Tokens are random bearer secrets minted by the CRUD layer,
// so a plain digest lookup is sufficient.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
