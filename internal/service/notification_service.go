package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"recession-pulse/internal/briefing"
	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.QueuedMessage, error)
}

// NotificationService queues account lifecycle messages. Nothing is sent
// inline; the next drain picks them up.
type NotificationService struct {
	tracer    trace.Tracer
	directory SubscriberDirectory
	queue     Enqueuer
	dedup     Deduper
	dashboard string
	now       func() time.Time
}

func NewNotificationService(tracer trace.Tracer, directory SubscriberDirectory, q Enqueuer, dedup Deduper, dashboard string) *NotificationService {
	return &NotificationService{
		tracer:    tracer,
		directory: directory,
		queue:     q,
		dedup:     dedup,
		dashboard: dashboard,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify enqueues one messageType notice per enabled channel of userID and
// returns the queued messages.
func (s *NotificationService) Notify(ctx context.Context, userID string, messageType domain.MessageType) ([]domain.QueuedMessage, error) {
	ctx, span := s.tracer.Start(ctx, "notification-service.notify")
	defer span.End()
	span.SetAttributes(attribute.String("message_type", string(messageType)))

	if messageType != domain.MessageWelcome && messageType != domain.MessageConfirmation {
		return nil, fmt.Errorf("message type %q is not a notice", messageType)
	}

	sub, err := s.directory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var queued []domain.QueuedMessage
	for _, ch := range domain.SupportedChannels {
		addr, ok := sub.Address(ch)
		if !ok {
			continue
		}

		key := domain.DedupKey{Recipient: addr, Channel: ch, MessageType: messageType, Date: s.now()}
		if s.dedup != nil {
			claimed, err := s.dedup.ClaimDaily(ctx, key)
			if err != nil {
				log.Printf("dedup check failed for %s notice %s/%s: %v", messageType, userID, ch, err)
				continue
			}
			if !claimed {
				continue
			}
		}

		subject, body, err := briefing.Notice(messageType, ch, s.dashboard)
		if err != nil {
			return queued, err
		}
		msg, err := s.queue.Enqueue(ctx, domain.EnqueueRequest{
			UserID:      sub.UserID,
			MessageType: messageType,
			Channel:     ch,
			Recipient:   addr,
			Subject:     subject,
			Content:     body,
		})
		if err != nil {
			if rel, ok := s.dedup.(dedupReleaser); ok {
				if relErr := rel.ReleaseDaily(ctx, key); relErr != nil {
					log.Printf("dedup release failed for %s: %v", key, relErr)
				}
			}
			return queued, fmt.Errorf("enqueue %s notice via %s: %w", messageType, ch, err)
		}
		queued = append(queued, *msg)
	}

	log.Printf("Queued %d %s notice(s) for %s", len(queued), messageType, userID)
	return queued, nil
}
