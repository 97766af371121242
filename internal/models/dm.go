package models

// DirectMessage represents a persisted direct message between users.
// The CRUD layer owns creation; the relay only attaches best-effort
// live delivery to the recipient's open connections.
type DirectMessage struct {
	ID        string `json:"id"`
	FromID    string `json:"from"`
	ToID      string `json:"to"`
	Content   string `json:"content"`
	Timestamp int64  `json:"ts"` // Unix ms
	Read      bool   `json:"read"`
}
