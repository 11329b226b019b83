package repository

import (
	"context"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// HistoryRepository reads the message_history log written by
// QueueRepository.MarkSent.
type HistoryRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewHistoryRepository(pool PgxPool, tracer trace.Tracer) *HistoryRepository {
	return &HistoryRepository{pool: pool, tracer: tracer}
}

func (r *HistoryRepository) ListForUser(ctx context.Context, userID string, limit int) ([]domain.MessageHistory, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "history-repo.list-for-user")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, message_id, user_id, message_type, channel, recipient, content, sent_at
		 FROM message_history
		 WHERE user_id = $1
		 ORDER BY sent_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MessageHistory, 0, limit)
	for rows.Next() {
		var h domain.MessageHistory
		var messageType, channel string
		if err := rows.Scan(
			&h.ID,
			&h.MessageID,
			&h.UserID,
			&messageType,
			&channel,
			&h.Recipient,
			&h.Content,
			&h.SentAt,
		); err != nil {
			return nil, err
		}
		h.MessageType = domain.MessageType(messageType)
		h.Channel = domain.Channel(channel)
		h.SentAt = h.SentAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}
