package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	chat "chatwire/internal/pkg/chat/domain"
	repository "chatwire/internal/pkg/chat/persistence/repository/port"
)

// MemChatRepository is an in-memory chat repository used by tests and local
// development. It enforces the same pair-uniqueness discipline as the
// Postgres adapter so race handling stays observable without a database.
type MemChatRepository struct {
	mu       sync.RWMutex
	threads  map[string]chat.Thread // keyed by "low:high"
	messages []chat.Message
	raw      map[string][]map[string]any // extra raw records per thread, for tolerant reads
	seq      int64
}

func NewMemChatRepository() *MemChatRepository {
	return &MemChatRepository{
		threads: make(map[string]chat.Thread),
		raw:     make(map[string][]map[string]any),
	}
}

var _ repository.ChatRepository = (*MemChatRepository)(nil)

func pairKey(low, high string) string { return low + ":" + high }

func (r *MemChatRepository) FindThreadByPair(_ context.Context, low, high string) (*chat.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.threads[pairKey(low, high)]
	if !ok {
		return nil, chat.ErrThreadNotFound
	}
	return &t, nil
}

func (r *MemChatRepository) SaveThread(_ context.Context, t chat.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(t.ParticipantLow, t.ParticipantHigh)
	if _, ok := r.threads[key]; ok {
		return chat.ErrThreadExists
	}
	r.threads[key] = t
	return nil
}

func (r *MemChatRepository) SaveMessage(_ context.Context, m chat.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.NewString()
	r.seq++
	r.messages = append(r.messages, m)
	return m.ID, nil
}

func (r *MemChatRepository) MessagesByThread(_ context.Context, threadID string) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []chat.Message
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *MemChatRepository) PendingForUser(_ context.Context, userID string) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []chat.Message
	for _, m := range r.messages {
		if m.ToUserID == userID && !m.Delivered {
			out = append(out, m)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *MemChatRepository) MarkDelivered(_ context.Context, ids []string) error {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if _, ok := wanted[r.messages[i].ID]; ok {
			r.messages[i].Delivered = true
		}
	}
	return nil
}

func (r *MemChatRepository) RawMessagesByThread(_ context.Context, threadID string) ([]map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs, _ := r.messagesByThreadLocked(threadID)
	out := make([]map[string]any, 0, len(msgs)+len(r.raw[threadID]))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"id":           m.ID,
			"thread_id":    m.ThreadID,
			"from_user_id": m.FromUserID,
			"to_user_id":   m.ToUserID,
			"content":      m.Content,
			"created_at":   m.CreatedAt,
			"delivered":    m.Delivered,
			"read":         m.Read,
		})
	}
	out = append(out, r.raw[threadID]...)
	return out, nil
}

// SeedRaw injects a loosely-typed record for threadID, emulating a row whose
// schema predates the current Message shape.
func (r *MemChatRepository) SeedRaw(threadID string, record map[string]any) {
	r.mu.Lock()
	r.raw[threadID] = append(r.raw[threadID], record)
	r.mu.Unlock()
}

func (r *MemChatRepository) messagesByThreadLocked(threadID string) ([]chat.Message, error) {
	var out []chat.Message
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func sortByCreatedAt(msgs []chat.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
