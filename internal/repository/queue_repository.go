package repository

import (
	"context"
	"errors"
	"time"

	"recession-pulse/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS message_queue (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    message_type  TEXT NOT NULL,
    channel       TEXT NOT NULL,
    recipient     TEXT NOT NULL,
    subject       TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    attempts      INTEGER NOT NULL DEFAULT 0,
    max_attempts  INTEGER NOT NULL DEFAULT 3,
    scheduled_for TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at       TIMESTAMPTZ,
    error         TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_message_queue_due ON message_queue (status, scheduled_for, created_at);
CREATE INDEX IF NOT EXISTS idx_message_queue_recipient_day ON message_queue (recipient, channel, message_type, created_at);

CREATE TABLE IF NOT EXISTS message_history (
    id           BIGSERIAL PRIMARY KEY,
    message_id   TEXT NOT NULL REFERENCES message_queue(id),
    user_id      TEXT NOT NULL,
    message_type TEXT NOT NULL,
    channel      TEXT NOT NULL,
    recipient    TEXT NOT NULL,
    content      TEXT NOT NULL,
    sent_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_message_history_user ON message_history (user_id, sent_at DESC);
`

const queueColumns = `id, user_id, message_type, channel, recipient, subject, content, status,
       attempts, max_attempts, scheduled_for, sent_at, error, created_at, updated_at`

type QueueRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewQueueRepository(pool PgxPool, tracer trace.Tracer) *QueueRepository {
	return &QueueRepository{pool: pool, tracer: tracer}
}

func (r *QueueRepository) RunMigrations(ctx context.Context) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, queueSchema)
	return err
}

// Insert persists msg as a new pending row. A missing id is filled with a
// fresh UUID; created_at and updated_at come back from the database.
func (r *QueueRepository) Insert(ctx context.Context, msg *domain.QueuedMessage) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.insert")
	defer span.End()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Status = domain.MessagePending
	msg.Attempts = 0

	return r.pool.QueryRow(ctx,
		`INSERT INTO message_queue (
		     id, user_id, message_type, channel, recipient, subject, content,
		     status, attempts, max_attempts, scheduled_for
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 0, $8, $9)
		 RETURNING created_at, updated_at`,
		msg.ID,
		msg.UserID,
		string(msg.MessageType),
		string(msg.Channel),
		msg.Recipient,
		msg.Subject,
		msg.Content,
		msg.MaxAttempts,
		msg.ScheduledFor.UTC(),
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
}

func (r *QueueRepository) Get(ctx context.Context, id string) (*domain.QueuedMessage, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.get")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT `+queueColumns+` FROM message_queue WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, domain.ErrMessageNotFound
	}
	return &msgs[0], nil
}

// ListDue returns pending rows whose scheduled time has passed, oldest
// first.
func (r *QueueRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.QueuedMessage, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.list-due")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+queueColumns+`
		 FROM message_queue
		 WHERE status = 'pending' AND scheduled_for <= $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// ClaimPending moves a pending row to processing and counts the attempt.
// It reports false when the row was no longer pending, which happens when
// another dispatcher picked it up first.
func (r *QueueRepository) ClaimPending(ctx context.Context, id string) (int, bool, error) {
	if r.pool == nil {
		return 0, false, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.claim-pending")
	defer span.End()

	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE message_queue
		 SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING attempts`,
		id,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return attempts, true, nil
}

// MarkSent finalizes msg and appends its history row. Both statements go in
// one batch, which pgx runs in a single implicit transaction.
func (r *QueueRepository) MarkSent(ctx context.Context, msg domain.QueuedMessage, sentAt time.Time) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.mark-sent")
	defer span.End()

	batch := &pgx.Batch{}
	batch.Queue(
		`UPDATE message_queue
		 SET status = 'sent', sent_at = $2, error = NULL, updated_at = NOW()
		 WHERE id = $1`,
		msg.ID, sentAt.UTC(),
	)
	batch.Queue(
		`INSERT INTO message_history (message_id, user_id, message_type, channel, recipient, content, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID,
		msg.UserID,
		string(msg.MessageType),
		string(msg.Channel),
		msg.Recipient,
		msg.Content,
		sentAt.UTC(),
	)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// MarkRetry puts a processing row back to pending with the last error.
func (r *QueueRepository) MarkRetry(ctx context.Context, id, errText string) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.mark-retry")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE message_queue SET status = 'pending', error = $2, updated_at = NOW() WHERE id = $1`,
		id, errText,
	)
	return err
}

func (r *QueueRepository) MarkFailed(ctx context.Context, id, errText string) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.mark-failed")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE message_queue SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1`,
		id, errText,
	)
	return err
}

// Stats counts rows per status. Processing rows untouched for longer than
// stuckAfter are also reported as stuck.
func (r *QueueRepository) Stats(ctx context.Context, stuckAfter time.Duration) (domain.QueueStats, error) {
	if r.pool == nil {
		return domain.QueueStats{}, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.stats")
	defer span.End()

	var out domain.QueueStats
	err := r.pool.QueryRow(ctx,
		`SELECT
		     COUNT(*) FILTER (WHERE status = 'pending'),
		     COUNT(*) FILTER (WHERE status = 'processing'),
		     COUNT(*) FILTER (WHERE status = 'sent'),
		     COUNT(*) FILTER (WHERE status = 'failed'),
		     COUNT(*) FILTER (WHERE status = 'processing' AND updated_at < NOW() - ($1 * INTERVAL '1 second'))
		 FROM message_queue`,
		stuckAfter.Seconds(),
	).Scan(&out.Pending, &out.Processing, &out.Sent, &out.Failed, &out.StuckProcessing)
	return out, err
}

// ClaimDaily reports whether no message for key has been queued yet on the
// key's calendar day. It is the database fallback for the Redis dedup guard
// and is not atomic across concurrent cycles.
func (r *QueueRepository) ClaimDaily(ctx context.Context, key domain.DedupKey) (bool, error) {
	if r.pool == nil {
		return false, ErrNoDatabase
	}

	_, span := r.tracer.Start(ctx, "queue-repo.claim-daily")
	defer span.End()

	day := domain.DateOf(key.Date)
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM message_queue
		     WHERE recipient = $1 AND channel = $2 AND message_type = $3
		       AND created_at >= $4 AND created_at < $5
		 )`,
		key.Recipient, string(key.Channel), string(key.MessageType), day, day.AddDate(0, 0, 1),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func scanMessages(rows pgx.Rows) ([]domain.QueuedMessage, error) {
	defer rows.Close()

	var out []domain.QueuedMessage
	for rows.Next() {
		var m domain.QueuedMessage
		var messageType, channel, status string
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&messageType,
			&channel,
			&m.Recipient,
			&m.Subject,
			&m.Content,
			&status,
			&m.Attempts,
			&m.MaxAttempts,
			&m.ScheduledFor,
			&m.SentAt,
			&m.Error,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.MessageType = domain.MessageType(messageType)
		m.Channel = domain.Channel(channel)
		m.Status = domain.MessageStatus(status)
		m.ScheduledFor = m.ScheduledFor.UTC()
		if m.SentAt != nil {
			t := m.SentAt.UTC()
			m.SentAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
