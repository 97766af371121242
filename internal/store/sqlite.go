package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/workforge/relay/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the
// development stand-in for PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/workforge.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/workforge.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' || substr(hex(randomblob(2)),2) || '-' || substr('89ab',abs(random()) % 4 + 1, 1) || substr(hex(randomblob(2)),2) || '-' || hex(randomblob(6)))),
		name TEXT DEFAULT '',
		email TEXT DEFAULT '',
		token_hash TEXT UNIQUE NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS call_attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		call_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		left_at DATETIME,
		duration_minutes INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_users_token_hash ON users(token_hash);
	CREATE INDEX IF NOT EXISTS idx_attendance_call ON call_attendance(call_id, joined_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, token_hash, created_at
		FROM users WHERE id = ?
	`, id.String()).Scan(&idStr, &user.Name, &user.Email, &user.TokenHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByTokenHash retrieves a user by the SHA-256 hash of their API token.
func (s *SQLiteStore) GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, token_hash, created_at
		FROM users WHERE token_hash = ?
	`, tokenHash).Scan(&idStr, &user.Name, &user.Email, &user.TokenHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, tokenHash string) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, token_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), name, email, tokenHash, now)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Name: name, Email: email, TokenHash: tokenHash, CreatedAt: now}, nil
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendAttendance records that a user joined a call, unless an open
// record for the pair already exists.
func (s *SQLiteStore) AppendAttendance(ctx context.Context, callID, userID string, joinedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_attendance (call_id, user_id, joined_at)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM call_attendance
			WHERE call_id = ? AND user_id = ? AND left_at IS NULL
		)
	`, callID, userID, joinedAt.UTC(), callID, userID)
	return err
}

// CloseAttendance stamps left_at and the computed duration onto the
// open attendance record, if one exists.
func (s *SQLiteStore) CloseAttendance(ctx context.Context, callID, userID string, leftAt time.Time, durationMinutes int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE call_attendance
		SET left_at = ?, duration_minutes = ?
		WHERE call_id = ? AND user_id = ? AND left_at IS NULL
	`, leftAt.UTC(), durationMinutes, callID, userID)
	return err
}

// GetAttendance returns all attendance records for a call, oldest first.
func (s *SQLiteStore) GetAttendance(ctx context.Context, callID string) ([]models.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, user_id, joined_at, left_at, duration_minutes
		FROM call_attendance
		WHERE call_id = ?
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
func (s *SQLiteStore) CountCalls(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT call_id) FROM call_attendance`).Scan(&count)
	return count, err
}
