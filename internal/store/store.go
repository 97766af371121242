package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/workforge/relay/internal/models"
)

// DataStore defines the interface for durable storage of users and
// call attendance. Both PostgresStore and SQLiteStore implement this
// interface; the relay writes through it and never reads it on the
// hot path.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
	CreateUser(ctx context.Context, name, email, tokenHash string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Attendance operations
	AppendAttendance(ctx context.Context, callID, userID string, joinedAt time.Time) error
	CloseAttendance(ctx context.Context, callID, userID string, leftAt time.Time, durationMinutes int) error
	GetAttendance(ctx context.Context, callID string) ([]models.Attendance, error)
	CountCalls(ctx context.Context) (int64, error)
}
