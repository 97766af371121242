package models

import "time"

// Attendance is one user's persisted presence window in a call.
// JoinedAt is written when the user first joins; LeftAt and
// DurationMinutes are written when they leave or disconnect.
type Attendance struct {
	CallID          string     `json:"call_id"`
	UserID          string     `json:"user_id"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}
