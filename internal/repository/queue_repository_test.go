package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"recession-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

func newQueueRepo(pool *stubPool) *QueueRepository {
	return NewQueueRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))
}

func TestQueueRunMigrationsCreatesQueueAndHistory(t *testing.T) {
	pool := &stubPool{}
	if err := newQueueRepo(pool).RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != 1 {
		t.Fatalf("expected one Exec call, got %d", len(pool.execSQL))
	}
	for _, table := range []string{"message_queue", "message_history"} {
		if !strings.Contains(pool.execSQL[0], table) {
			t.Fatalf("expected schema to create %s", table)
		}
	}
}

func TestQueueInsertAssignsIDAndTimestamps(t *testing.T) {
	created := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	pool := &stubPool{rowValues: []any{created, created}}
	msg := &domain.QueuedMessage{
		UserID:       "u1",
		MessageType:  domain.MessageRecessionAlert,
		Channel:      domain.ChannelSMS,
		Recipient:    "+15550100",
		Content:      "body",
		MaxAttempts:  3,
		ScheduledFor: created,
	}

	if err := newQueueRepo(pool).Insert(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", msg.ID)
	}
	if msg.Status != domain.MessagePending || msg.Attempts != 0 {
		t.Fatalf("expected pending with 0 attempts, got %s/%d", msg.Status, msg.Attempts)
	}
	if !msg.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at from RETURNING, got %s", msg.CreatedAt)
	}
	if pool.rowArgs[0] != msg.ID {
		t.Fatalf("expected id to be inserted, got %v", pool.rowArgs[0])
	}
}

func TestQueueClaimPendingReturnsAttempts(t *testing.T) {
	pool := &stubPool{rowValues: []any{2}}
	attempts, ok, err := newQueueRepo(pool).ClaimPending(context.Background(), "m1")
	if err != nil || !ok || attempts != 2 {
		t.Fatalf("expected claim with 2 attempts, got %d %v %v", attempts, ok, err)
	}
	if !strings.Contains(pool.rowSQL, "status = 'pending'") {
		t.Fatalf("expected conditional claim, got %s", pool.rowSQL)
	}
}

func TestQueueClaimPendingLostRace(t *testing.T) {
	pool := &stubPool{rowErr: pgx.ErrNoRows}
	_, ok, err := newQueueRepo(pool).ClaimPending(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected claim to be reported as lost")
	}
}

func TestQueueMarkSentBatchesUpdateAndHistory(t *testing.T) {
	pool := &stubPool{batchResults: &stubBatchResults{}}
	msg := domain.QueuedMessage{ID: "m1", UserID: "u1", MessageType: domain.MessageWelcome, Channel: domain.ChannelEmail, Recipient: "a@example.com", Content: "hi"}

	if err := newQueueRepo(pool).MarkSent(context.Background(), msg, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch.Len() != 2 || pool.batchResults.execCalls != 2 {
		t.Fatalf("expected update and history insert, got %d queued %d executed", pool.queuedBatch.Len(), pool.batchResults.execCalls)
	}
	if !strings.Contains(pool.queuedBatch.QueuedQueries[1].SQL, "INSERT INTO message_history") {
		t.Fatalf("expected history insert, got %s", pool.queuedBatch.QueuedQueries[1].SQL)
	}
}

func TestQueueMarkSentPropagatesHistoryFailure(t *testing.T) {
	pool := &stubPool{batchResults: &stubBatchResults{failAt: 2, err: errors.New("fk violation")}}
	if err := newQueueRepo(pool).MarkSent(context.Background(), domain.QueuedMessage{ID: "m1"}, time.Now()); err == nil {
		t.Fatal("expected history insert error")
	}
}

func TestQueueMarkRetryAndFailed(t *testing.T) {
	pool := &stubPool{}
	repo := newQueueRepo(pool)
	if err := repo.MarkRetry(context.Background(), "m1", "timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.MarkFailed(context.Background(), "m1", "timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.execSQL[0], "status = 'pending'") || !strings.Contains(pool.execSQL[1], "status = 'failed'") {
		t.Fatalf("unexpected statements: %v", pool.execSQL)
	}
	if pool.execArgs[1][1] != "timeout" {
		t.Fatalf("expected error text to be stored, got %v", pool.execArgs[1])
	}
}

func TestQueueListDueScansRows(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-time.Minute)
	pool := &stubPool{rowsData: [][]any{
		{"m1", "u1", "recession_alert", "sms", "+1555", "", "body", "pending", 1, 3, now, nil, "timeout", now, now},
		{"m2", "u2", "welcome", "email", "b@example.com", "Welcome", "hi", "pending", 0, 3, now, sent, nil, now, now},
	}}

	got, err := newQueueRepo(pool).ListDue(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Error == nil || *got[0].Error != "timeout" || got[0].SentAt != nil {
		t.Fatalf("unexpected nullable fields on first message: %+v", got[0])
	}
	if got[1].Channel != domain.ChannelEmail || got[1].SentAt == nil || got[1].Error != nil {
		t.Fatalf("unexpected second message: %+v", got[1])
	}
	if pool.queryArgs[1] != 100 {
		t.Fatalf("expected default limit 100, got %v", pool.queryArgs[1])
	}
	if !strings.Contains(pool.querySQL, "ORDER BY created_at ASC") {
		t.Fatalf("expected oldest-first ordering, got %s", pool.querySQL)
	}
}

func TestQueueGetMissingReturnsSentinel(t *testing.T) {
	pool := &stubPool{}
	if _, err := newQueueRepo(pool).Get(context.Background(), "nope"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestQueueStatsScansCounts(t *testing.T) {
	pool := &stubPool{rowValues: []any{4, 1, 10, 2, 1}}
	stats, err := newQueueRepo(pool).Stats(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.QueueStats{Pending: 4, Processing: 1, Sent: 10, Failed: 2, StuckProcessing: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
	if pool.rowArgs[0] != float64(900) {
		t.Fatalf("expected stuck bound in seconds, got %v", pool.rowArgs[0])
	}
}

func TestQueueClaimDailyInvertsExistence(t *testing.T) {
	key := domain.DedupKey{Recipient: "+1555", Channel: domain.ChannelSMS, MessageType: domain.MessageRecessionAlert, Date: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)}

	pool := &stubPool{rowValues: []any{true}}
	ok, err := newQueueRepo(pool).ClaimDaily(context.Background(), key)
	if err != nil || ok {
		t.Fatalf("expected existing message to block claim, got %v %v", ok, err)
	}
	if start := pool.rowArgs[3].(time.Time); !start.Equal(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected day start bound, got %s", start)
	}

	pool = &stubPool{rowValues: []any{false}}
	ok, err = newQueueRepo(pool).ClaimDaily(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected claim to succeed, got %v %v", ok, err)
	}
}
