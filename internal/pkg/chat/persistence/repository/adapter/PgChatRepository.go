package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "chatwire/internal/pkg/chat/domain"
	repository "chatwire/internal/pkg/chat/persistence/repository/port"
)

const pgUniqueViolation = "23505"

// PgChatRepository implements the chat repository over Postgres via pgx.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

func (r *PgChatRepository) FindThreadByPair(ctx context.Context, low, high string) (*chat.Thread, error) {
	var t chat.Thread
	err := r.pool.QueryRow(ctx, `
		SELECT id, participant_low, participant_high, participants, created_at
		FROM chat.thread
		WHERE participant_low = $1 AND participant_high = $2
	`, low, high).Scan(&t.ID, &t.ParticipantLow, &t.ParticipantHigh, &t.Participants, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgChatRepository) SaveThread(ctx context.Context, t chat.Thread) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.thread (id, participant_low, participant_high, participants, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.ParticipantLow, t.ParticipantHigh, t.Participants, t.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return chat.ErrThreadExists
	}
	return err
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat.message (thread_id, from_user_id, to_user_id, content, created_at, delivered, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text
	`, m.ThreadID, m.FromUserID, m.ToUserID, m.Content, m.CreatedAt, m.Delivered, m.Read).Scan(&id)
	return id, err
}

func (r *PgChatRepository) MessagesByThread(ctx context.Context, threadID string) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, thread_id, from_user_id, to_user_id, content, created_at, delivered, read
		FROM chat.message
		WHERE thread_id = $1
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PgChatRepository) PendingForUser(ctx context.Context, userID string) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, thread_id, from_user_id, to_user_id, content, created_at, delivered, read
		FROM chat.message
		WHERE to_user_id = $1 AND delivered = false
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PgChatRepository) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.message SET delivered = true WHERE id::text = ANY($1)
	`, ids)
	return err
}

func (r *PgChatRepository) RawMessagesByThread(ctx context.Context, threadID string) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, thread_id, from_user_id, to_user_id, content, created_at, delivered, read
		FROM chat.message
		WHERE thread_id = $1
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(map[string]any, len(fields))
		for i, f := range fields {
			record[string(f.Name)] = values[i]
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanMessages(rows pgx.Rows) ([]chat.Message, error) {
	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.FromUserID, &m.ToUserID, &m.Content, &m.CreatedAt, &m.Delivered, &m.Read); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
