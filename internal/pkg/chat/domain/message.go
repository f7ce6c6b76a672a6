package chat

import (
	"errors"
	"time"
)

// Sentinel errors shared by the persistence adapters.
var (
	ErrThreadNotFound = errors.New("chat: thread not found")
	ErrThreadExists   = errors.New("chat: thread already exists for pair")
)

// Message is one stored chat message. Content holds ciphertext at rest; the
// plaintext only ever exists transiently in memory. Delivered transitions
// from false to true exactly once and never reverses. Read is tracked but not
// mutated by the delivery engine.
type Message struct {
	ID         string    `db:"id"`
	ThreadID   string    `db:"thread_id"`
	FromUserID string    `db:"from_user_id"`
	ToUserID   string    `db:"to_user_id"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
	Delivered  bool      `db:"delivered"`
	Read       bool      `db:"read"`
}

// Envelope is the wire representation of one message: decrypted content and
// an ISO-8601 timestamp string. It exists only for the duration of a
// transmission.
type Envelope struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
	Delivered  bool   `json:"delivered"`
	Read       bool   `json:"read"`
}
