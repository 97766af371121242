package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a Work Forge account visible to the relay.
// Accounts are created and managed by the CRUD layer; the relay only
// reads them to resolve tokens and to label chat messages.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	TokenHash string    `json:"-"` // SHA-256 of the API token, never serialized
	CreatedAt time.Time `json:"created_at"`
}
