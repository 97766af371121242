package models

// ChatEntry is one line of a call's durable transcript, stored in Redis.
type ChatEntry struct {
	ID        string `json:"id"` // ULID
	CallID    string `json:"call_id"`
	UserID    string `json:"from"`
	UserName  string `json:"from_name,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"` // Unix ms
}
