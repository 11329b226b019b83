// Package queue drives the persisted delivery queue: enqueue, claim, send
// through a channel transport, then settle each row as sent, pending again
// or failed.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultDrainLimit = 100
	DefaultSendDelay  = 500 * time.Millisecond
)

// Store is the queue table as the dispatcher sees it.
type Store interface {
	Insert(ctx context.Context, msg *domain.QueuedMessage) error
	Get(ctx context.Context, id string) (*domain.QueuedMessage, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.QueuedMessage, error)
	ClaimPending(ctx context.Context, id string) (int, bool, error)
	MarkSent(ctx context.Context, msg domain.QueuedMessage, sentAt time.Time) error
	MarkRetry(ctx context.Context, id, errText string) error
	MarkFailed(ctx context.Context, id, errText string) error
}

// Transport delivers one message over one channel.
type Transport interface {
	Deliver(ctx context.Context, msg domain.QueuedMessage) domain.SendResult
}

type TransportFunc func(ctx context.Context, msg domain.QueuedMessage) domain.SendResult

func (f TransportFunc) Deliver(ctx context.Context, msg domain.QueuedMessage) domain.SendResult {
	return f(ctx, msg)
}

type Config struct {
	MaxAttempts int
	DrainLimit  int
	SendDelay   time.Duration
}

// Outcome is what happened to a message during one dispatch.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeRequeued Outcome = "requeued"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

type Result struct {
	MessageID string  `json:"message_id"`
	Outcome   Outcome `json:"outcome"`
	Attempts  int     `json:"attempts"`
	Error     string  `json:"error,omitempty"`
}

type Dispatcher struct {
	store      Store
	transports map[domain.Channel]Transport
	tracer     trace.Tracer
	cfg        Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(store Store, transports map[domain.Channel]Transport, tracer trace.Tracer, cfg Config) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = domain.DefaultMaxAttempts
	}
	if cfg.DrainLimit <= 0 {
		cfg.DrainLimit = DefaultDrainLimit
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = 0
	}
	return &Dispatcher{
		store:      store,
		transports: transports,
		tracer:     tracer,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Enqueue inserts a pending message with zero attempts. A zero ScheduledFor
// means now.
func (d *Dispatcher) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.QueuedMessage, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.enqueue")
	defer span.End()

	if !req.Channel.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, req.Channel)
	}
	if !req.MessageType.IsValid() {
		return nil, fmt.Errorf("unknown message type %q", req.MessageType)
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, errors.New("recipient is required")
	}
	if req.Content == "" {
		return nil, errors.New("content is required")
	}

	scheduled := req.ScheduledFor
	if scheduled.IsZero() {
		scheduled = d.now()
	}
	msg := &domain.QueuedMessage{
		UserID:       req.UserID,
		MessageType:  req.MessageType,
		Channel:      req.Channel,
		Recipient:    strings.TrimSpace(req.Recipient),
		Subject:      req.Subject,
		Content:      req.Content,
		Status:       domain.MessagePending,
		MaxAttempts:  d.cfg.MaxAttempts,
		ScheduledFor: scheduled.UTC(),
	}
	if err := d.store.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert queued message: %w", err)
	}
	span.SetAttributes(attribute.String("message.id", msg.ID), attribute.String("message.channel", string(msg.Channel)))
	return msg, nil
}

// DrainDue sends due pending messages one at a time, oldest first, pausing
// between sends. A failure on one message never stops the rest; only a
// failure to list due rows or a cancelled ctx ends the drain early.
func (d *Dispatcher) DrainDue(ctx context.Context, limit int) (domain.DispatchReport, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.drain-due")
	defer span.End()

	var report domain.DispatchReport
	if limit <= 0 {
		limit = d.cfg.DrainLimit
	}

	due, err := d.store.ListDue(ctx, d.now(), limit)
	if err != nil {
		return report, fmt.Errorf("list due messages: %w", err)
	}

	for i, msg := range due {
		if i > 0 {
			if err := d.sleep(ctx, d.cfg.SendDelay); err != nil {
				return report, err
			}
		}

		res, err := d.process(ctx, msg)
		if err != nil {
			log.Printf("queue: message %s: %v", msg.ID, err)
		}
		report.Processed++
		switch res.Outcome {
		case OutcomeSent:
			report.Sent++
		case OutcomeRequeued:
			report.Failed++
			report.Requeued++
		case OutcomeFailed:
			report.Failed++
		case OutcomeSkipped:
			report.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("processed", report.Processed),
		attribute.Int("sent", report.Sent),
		attribute.Int("failed", report.Failed),
	)
	return report, nil
}

// DispatchOne sends a single message right away if it is still pending.
func (d *Dispatcher) DispatchOne(ctx context.Context, id string) (Result, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.dispatch-one")
	defer span.End()

	msg, err := d.store.Get(ctx, id)
	if err != nil {
		return Result{MessageID: id}, err
	}
	if msg.Status != domain.MessagePending {
		return Result{MessageID: id, Outcome: OutcomeSkipped, Attempts: msg.Attempts, Error: "message is " + string(msg.Status)}, nil
	}
	return d.process(ctx, *msg)
}

func (d *Dispatcher) process(ctx context.Context, msg domain.QueuedMessage) (Result, error) {
	res := Result{MessageID: msg.ID}

	attempts, claimed, err := d.store.ClaimPending(ctx, msg.ID)
	if err != nil {
		return res, fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		res.Outcome = OutcomeSkipped
		res.Error = "claimed by another dispatcher"
		return res, nil
	}
	msg.Attempts = attempts
	msg.Status = domain.MessageProcessing
	res.Attempts = attempts

	sent := d.deliver(ctx, msg)
	if sent.Success {
		res.Outcome = OutcomeSent
		if err := d.store.MarkSent(ctx, msg, d.now()); err != nil {
			return res, fmt.Errorf("mark sent: %w", err)
		}
		return res, nil
	}

	errText := sent.Error
	if errText == "" {
		errText = "transport reported failure"
	}
	res.Error = errText

	maxAttempts := msg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.cfg.MaxAttempts
	}
	log.Printf("queue: message %s via %s failed (attempt %d/%d): %s", msg.ID, msg.Channel, attempts, maxAttempts, errText)

	if attempts >= maxAttempts {
		res.Outcome = OutcomeFailed
		if err := d.store.MarkFailed(ctx, msg.ID, errText); err != nil {
			return res, fmt.Errorf("mark failed: %w", err)
		}
		return res, nil
	}

	res.Outcome = OutcomeRequeued
	if err := d.store.MarkRetry(ctx, msg.ID, errText); err != nil {
		return res, fmt.Errorf("mark retry: %w", err)
	}
	return res, nil
}

// deliver turns a transport panic into an ordinary failed send.
func (d *Dispatcher) deliver(ctx context.Context, msg domain.QueuedMessage) (out domain.SendResult) {
	t, ok := d.transports[msg.Channel]
	if !ok || t == nil {
		return domain.SendResult{Error: fmt.Sprintf("%s: %s", domain.ErrUnsupportedChannel, msg.Channel)}
	}
	defer func() {
		if r := recover(); r != nil {
			out = domain.SendResult{Error: fmt.Sprintf("transport panic: %v", r)}
		}
	}()
	return t.Deliver(ctx, msg)
}
