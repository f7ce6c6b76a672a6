package repository

import (
	"context"

	chat "chatwire/internal/pkg/chat/domain"
)

// ChatRepository defines persistence for threads and messages. The store is
// treated as an external stateful service behind this narrow interface; no
// in-process locking responsibility leaks past it.
type ChatRepository interface {
	// FindThreadByPair looks up the thread for a canonical (low, high) pair.
	// Returns chat.ErrThreadNotFound when no thread exists.
	FindThreadByPair(ctx context.Context, low, high string) (*chat.Thread, error)

	// SaveThread inserts t. The unique (participant_low, participant_high)
	// constraint rejects a duplicate pair with chat.ErrThreadExists, which is
	// how concurrent first-contact races are resolved.
	SaveThread(ctx context.Context, t chat.Thread) error

	// SaveMessage persists m and returns the store-assigned id.
	SaveMessage(ctx context.Context, m chat.Message) (string, error)

	// MessagesByThread returns a thread's messages ascending by created_at.
	MessagesByThread(ctx context.Context, threadID string) ([]chat.Message, error)

	// PendingForUser returns undelivered messages addressed to userID,
	// ascending by created_at.
	PendingForUser(ctx context.Context, userID string) ([]chat.Message, error)

	// MarkDelivered sets delivered=true for the given message ids. Marking an
	// already-delivered message is a no-op, so the call is idempotent.
	MarkDelivered(ctx context.Context, ids []string) error

	// RawMessagesByThread returns a thread's messages as loosely-typed
	// column-keyed records, ascending by created_at, for schema-tolerant
	// read-back of rows that may predate the current Message shape.
	RawMessagesByThread(ctx context.Context, threadID string) ([]map[string]any, error)
}
