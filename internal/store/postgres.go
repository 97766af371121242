package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workforge/relay/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection
// pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		token_hash TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS call_attendance (
		id BIGSERIAL PRIMARY KEY,
		call_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL,
		left_at TIMESTAMPTZ,
		duration_minutes INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_users_token_hash ON users(token_hash);
	CREATE INDEX IF NOT EXISTS idx_attendance_call ON call_attendance(call_id, joined_at);
	CREATE INDEX IF NOT EXISTS idx_attendance_open ON call_attendance(call_id, user_id) WHERE left_at IS NULL;
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, token_hash, created_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.TokenHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByTokenHash retrieves a user by the SHA-256 hash of their API token.
func (s *PostgresStore) GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, token_hash, created_at
		FROM users WHERE token_hash = $1
	`, tokenHash).Scan(&user.ID, &user.Name, &user.Email, &user.TokenHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, tokenHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, token_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, token_hash, created_at
	`, name, email, tokenHash).Scan(&user.ID, &user.Name, &user.Email, &user.TokenHash, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CountUsers returns the number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendAttendance records that a user joined a call. An already-open
// attendance for the same (call, user) pair is left untouched so a
// duplicate join never produces a second timestamp.
func (s *PostgresStore) AppendAttendance(ctx context.Context, callID, userID string, joinedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO call_attendance (call_id, user_id, joined_at)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM call_attendance
			WHERE call_id = $1 AND user_id = $2 AND left_at IS NULL
		)
	`, callID, userID, joinedAt)
	return err
}

// CloseAttendance stamps left_at and the computed duration onto the
// open attendance record, if one exists.
func (s *PostgresStore) CloseAttendance(ctx context.Context, callID, userID string, leftAt time.Time, durationMinutes int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE call_attendance
		SET left_at = $3, duration_minutes = $4
		WHERE call_id = $1 AND user_id = $2 AND left_at IS NULL
	`, callID, userID, leftAt, durationMinutes)
	return err
}

// GetAttendance returns all attendance records for a call, oldest first.
func (s *PostgresStore) GetAttendance(ctx context.Context, callID string) ([]models.Attendance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT call_id, user_id, joined_at, left_at, duration_minutes
		FROM call_attendance
		WHERE call_id = $1
		ORDER BY joined_at ASC
	`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Attendance
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.CallID, &a.UserID, &a.JoinedAt, &a.LeftAt, &a.DurationMinutes); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// CountCalls returns the number of distinct calls with attendance.
func (s *PostgresStore) CountCalls(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT call_id) FROM call_attendance`).Scan(&count)
	return count, err
}
