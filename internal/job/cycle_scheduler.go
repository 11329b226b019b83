package job

import (
	"context"
	"log"
	"sync"
	"time"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultSchedulerTick = time.Minute

type CycleRunner interface {
	RunDailyAlertCycle(ctx context.Context) (domain.CycleResult, error)
}

// CycleScheduler runs the daily alert cycle once per UTC day, on the first
// tick at or after the configured hour.
type CycleScheduler struct {
	tracer trace.Tracer
	runner CycleRunner
	hour   int
	tick   time.Duration

	mu      sync.Mutex
	lastRun time.Time
	now     func() time.Time
}

func NewCycleScheduler(tracer trace.Tracer, runner CycleRunner, hourUTC int) *CycleScheduler {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 0
	}
	return &CycleScheduler{
		tracer: tracer,
		runner: runner,
		hour:   hourUTC,
		tick:   defaultSchedulerTick,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start blocks until ctx is cancelled.
func (s *CycleScheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		log.Println("Cycle scheduler disabled: no cycle runner")
		<-ctx.Done()
		return
	}

	log.Printf("Cycle scheduler starting (daily at %02d:00 UTC)...", s.hour)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.runIfDue(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Cycle scheduler stopped")
			return
		case <-ticker.C:
			s.runIfDue(ctx)
		}
	}
}

// runIfDue reports whether a cycle was started.
func (s *CycleScheduler) runIfDue(ctx context.Context) bool {
	now := s.now()
	today := domain.DateOf(now)

	s.mu.Lock()
	if now.Hour() < s.hour || s.lastRun.Equal(today) {
		s.mu.Unlock()
		return false
	}
	s.lastRun = today
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "cycle-scheduler.run")
	defer span.End()

	if _, err := s.runner.RunDailyAlertCycle(ctx); err != nil {
		log.Printf("scheduled alert cycle error: %v", err)
	}
	return true
}
