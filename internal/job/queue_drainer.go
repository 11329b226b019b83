package job

import (
	"context"
	"log"
	"time"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultDrainTick = time.Minute

type QueueDrainRunner interface {
	DrainQueue(ctx context.Context, limit int) (domain.DispatchReport, error)
}

// QueueDrainer picks up retries and queued notices between daily cycles.
type QueueDrainer struct {
	tracer trace.Tracer
	drain  QueueDrainRunner
	tick   time.Duration
	limit  int
}

func NewQueueDrainer(tracer trace.Tracer, drain QueueDrainRunner, every time.Duration, limit int) *QueueDrainer {
	if every <= 0 {
		every = defaultDrainTick
	}
	return &QueueDrainer{
		tracer: tracer,
		drain:  drain,
		tick:   every,
		limit:  limit,
	}
}

func (j *QueueDrainer) Start(ctx context.Context) {
	if j == nil || j.drain == nil {
		<-ctx.Done()
		return
	}

	log.Printf("Queue drainer starting (every %s)...", j.tick)
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	j.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Queue drainer stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *QueueDrainer) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "queue-drainer.run")
	defer span.End()

	report, err := j.drain.DrainQueue(ctx, j.limit)
	if err != nil {
		log.Printf("queue drain error: %v", err)
		return
	}
	if report.Processed > 0 {
		log.Printf("Queue drain: processed=%d sent=%d failed=%d requeued=%d skipped=%d",
			report.Processed, report.Sent, report.Failed, report.Requeued, report.Skipped)
	}
}
