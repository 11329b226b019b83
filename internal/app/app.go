// Package app assembles the alert pipeline from configuration and
// already-opened infrastructure. Every entry point under cmd/ builds
// through here.
package app

import (
	"context"
	"fmt"
	"log"

	"recession-pulse/internal/cache"
	"recession-pulse/internal/config"
	"recession-pulse/internal/directory"
	"recession-pulse/internal/domain"
	"recession-pulse/internal/queue"
	"recession-pulse/internal/repository"
	"recession-pulse/internal/service"
	"recession-pulse/internal/transport"
	"recession-pulse/internal/trend"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Infra holds connections opened by the caller. Any of them may be nil.
type Infra struct {
	Pool      repository.PgxPool
	Redis     *redis.Client
	Directory *gorm.DB
}

type App struct {
	Readings  *repository.ReadingRepository
	Queue     *repository.QueueRepository
	History   *repository.HistoryRepository
	Screener  *repository.ScreenerRepository
	Directory *directory.Directory

	Dispatcher    *queue.Dispatcher
	Cycle         *service.CycleService
	Notifications *service.NotificationService

	transports map[domain.Channel]queue.Transport
	hasPool    bool
	hasGorm    bool
}

func Build(cfg *config.Config, tracer trace.Tracer, infra Infra) *App {
	a := &App{
		Readings:   repository.NewReadingRepository(infra.Pool, tracer),
		Queue:      repository.NewQueueRepository(infra.Pool, tracer),
		History:    repository.NewHistoryRepository(infra.Pool, tracer),
		Screener:   repository.NewScreenerRepository(infra.Pool, tracer),
		Directory:  directory.New(infra.Directory, tracer),
		transports: make(map[domain.Channel]queue.Transport, len(domain.SupportedChannels)),
		hasPool:    infra.Pool != nil,
		hasGorm:    infra.Directory != nil,
	}

	sms := transport.NewSMSClient(transport.SMSConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		BaseURL:    cfg.TwilioBaseURL,
	})
	if sms.Configured() {
		a.transports[domain.ChannelSMS] = sms
	}
	email := transport.NewEmailClient(transport.EmailConfig{
		APIKey:  cfg.ResendAPIKey,
		From:    cfg.EmailFrom,
		BaseURL: cfg.ResendBaseURL,
	})
	if email.Configured() {
		a.transports[domain.ChannelEmail] = email
	}

	a.Dispatcher = queue.NewDispatcher(a.Queue, a.transports, tracer, queue.Config{
		MaxAttempts: cfg.QueueMaxAttempts,
		DrainLimit:  cfg.QueueDrainLimit,
		SendDelay:   cfg.QueueSendDelay(),
	})

	var dedup service.Deduper
	switch {
	case infra.Redis != nil:
		dedup = cache.NewDailyDedup(infra.Redis, cfg.DedupTTL())
	case infra.Pool != nil:
		log.Println("Warning: Redis unavailable, daily dedup falls back to message history")
		dedup = a.Queue
	}

	a.Cycle = service.NewCycleService(
		tracer,
		a.Readings,
		trend.NewEngine(tracer, a.Readings),
		a.Directory,
		a.Dispatcher,
		dedup,
		service.CycleConfig{
			LookbackDays: cfg.ReadingLookbackDays,
			DrainLimit:   cfg.QueueDrainLimit,
			DashboardURL: cfg.DashboardURL,
			StuckAfter:   cfg.QueueStuckAfter(),
		},
	).WithScreener(a.Screener).WithQueueStats(a.Queue).WithHistory(a.History)
	if infra.Redis != nil {
		a.Cycle.WithTrendCache(cache.NewTrendCache(infra.Redis, cfg.TrendCacheTTL()))
	}

	a.Notifications = service.NewNotificationService(tracer, a.Directory, a.Dispatcher, dedup, cfg.DashboardURL)
	return a
}

// AttachTransport registers a channel transport built after the pipeline,
// such as the Telegram bot which itself reads from the cycle service. Call
// it before any drain starts.
func (a *App) AttachTransport(ch domain.Channel, t queue.Transport) {
	if t == nil {
		return
	}
	a.transports[ch] = t
}

func (a *App) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(a.transports))
	for _, ch := range domain.SupportedChannels {
		if _, ok := a.transports[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Migrate creates the tables this service owns.
func (a *App) Migrate(ctx context.Context) error {
	if a.hasPool {
		if err := a.Readings.RunMigrations(ctx); err != nil {
			return fmt.Errorf("reading migrations: %w", err)
		}
		if err := a.Queue.RunMigrations(ctx); err != nil {
			return fmt.Errorf("queue migrations: %w", err)
		}
	}
	if a.hasGorm {
		if err := a.Directory.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("directory migrations: %w", err)
		}
	}
	return nil
}
