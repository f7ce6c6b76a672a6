package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"chatwire/internal/pkg/chat/crypto"
	chat "chatwire/internal/pkg/chat/domain"
	repository "chatwire/internal/pkg/chat/persistence/repository/port"
)

// ErrPersistence wraps repository failures inside the chat service.
var ErrPersistence = errors.New("chat service: persistence error")

// ChatService owns thread identity and the encrypted message store: content
// is encrypted before every write that crosses the persistence boundary and
// decrypted only when an Envelope is produced for the wire.
type ChatService struct {
	repo  repository.ChatRepository
	codec *crypto.Codec
	log   *logrus.Entry
}

func NewChatService(repo repository.ChatRepository, codec *crypto.Codec, log *logrus.Entry) *ChatService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ChatService{repo: repo, codec: codec, log: log}
}

// ThreadID returns the deterministic thread identifier for a pair of users.
func (s *ChatService) ThreadID(a, b string) string {
	return chat.ThreadID(a, b)
}

// EnsureThread returns the thread for the pair, creating it on first
// contact. Creation races resolve through the store's unique pair
// constraint: the losing insert gets chat.ErrThreadExists and re-reads the
// winner's row.
func (s *ChatService) EnsureThread(ctx context.Context, a, b string) (*chat.Thread, error) {
	low, high := chat.CanonicalPair(a, b)

	t, err := s.repo.FindThreadByPair(ctx, low, high)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, chat.ErrThreadNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	fresh := chat.NewThread(a, b, time.Now().UTC())
	err = s.repo.SaveThread(ctx, fresh)
	if err == nil {
		return &fresh, nil
	}
	if errors.Is(err, chat.ErrThreadExists) {
		t, err = s.repo.FindThreadByPair(ctx, low, high)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
}

// SaveMessage encrypts plaintext and persists a new undelivered message.
// The returned record carries ciphertext; callers needing the plaintext
// convert through ToEnvelope.
func (s *ChatService) SaveMessage(ctx context.Context, threadID, from, to, plaintext string) (*chat.Message, error) {
	encrypted, err := s.codec.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("chat service: encrypt: %w", err)
	}

	m := chat.Message{
		ThreadID:   threadID,
		FromUserID: from,
		ToUserID:   to,
		Content:    encrypted,
		CreatedAt:  time.Now().UTC(),
		Delivered:  false,
		Read:       false,
	}
	id, err := s.repo.SaveMessage(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	m.ID = id
	return &m, nil
}

// History returns a thread's messages ascending by creation time.
func (s *ChatService) History(ctx context.Context, threadID string) ([]chat.Message, error) {
	msgs, err := s.repo.MessagesByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

// PendingFor returns the undelivered messages addressed to userID, ascending
// by creation time.
func (s *ChatService) PendingFor(ctx context.Context, userID string) ([]chat.Message, error) {
	msgs, err := s.repo.PendingForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

// MarkDelivered flags the batch as delivered. Delivered never reverts, and
// re-marking an already delivered message has no effect.
func (s *ChatService) MarkDelivered(ctx context.Context, msgs []chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if err := s.repo.MarkDelivered(ctx, ids); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ToEnvelope decrypts a stored message into its wire representation. A zero
// creation time is replaced with the current time rather than failing.
func (s *ChatService) ToEnvelope(m chat.Message) chat.Envelope {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return chat.Envelope{
		ID:         m.ID,
		ChatID:     m.ThreadID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		Content:    s.codec.Decrypt(m.Content),
		CreatedAt:  created.UTC().Format(time.RFC3339Nano),
		Delivered:  m.Delivered,
		Read:       m.Read,
	}
}

// HistoryTolerant reads a thread's history from raw records, coercing
// loosely-typed fields so rows written under older schemas still decode.
func (s *ChatService) HistoryTolerant(ctx context.Context, threadID string) ([]chat.Envelope, error) {
	records, err := s.repo.RawMessagesByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	out := make([]chat.Envelope, 0, len(records))
	for _, rec := range records {
		out = append(out, chat.Envelope{
			ID:         coerceString(rec["id"]),
			ChatID:     coerceString(rec["thread_id"]),
			FromUserID: coerceString(rec["from_user_id"]),
			ToUserID:   coerceString(rec["to_user_id"]),
			Content:    s.codec.Decrypt(coerceString(rec["content"])),
			CreatedAt:  coerceISOTime(rec["created_at"]),
			Delivered:  coerceBool(rec["delivered"]),
			Read:       coerceBool(rec["read"]),
		})
	}
	return out, nil
}
