package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"recession-pulse/internal/bot"
	"recession-pulse/internal/config"
	"recession-pulse/internal/job"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	schedulerStarted := false
	drainerStarted := false
	startSchedulerFunc = func(*job.CycleScheduler, context.Context) { schedulerStarted = true }
	startDrainerFunc = func(*job.QueueDrainer, context.Context) { drainerStarted = true }

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}

	if !schedulerStarted || !drainerStarted {
		t.Fatalf("expected background jobs to start, scheduler=%v drainer=%v", schedulerStarted, drainerStarted)
	}
}

func TestConnectInfraToleratesUnavailableStores(t *testing.T) {
	restore := stubServerDeps()
	defer restore()

	infra := connectInfra(context.Background(), &config.Config{})
	if infra.Pool != nil {
		t.Fatal("expected nil pool interface when Postgres is not configured")
	}
	if infra.Redis != nil || infra.Directory != nil {
		t.Fatalf("expected no redis or directory, got %+v", infra)
	}
}

func TestHTTPAddrFromEnv(t *testing.T) {
	t.Setenv("PORT", "")
	if got := httpAddrFromEnv(); got != ":8080" {
		t.Fatalf("expected default :8080, got %s", got)
	}

	t.Setenv("PORT", "9090")
	if got := httpAddrFromEnv(); got != ":9090" {
		t.Fatalf("expected :9090, got %s", got)
	}

	t.Setenv("PORT", ":7070")
	if got := httpAddrFromEnv(); got != ":7070" {
		t.Fatalf("expected :7070, got %s", got)
	}
}

func TestOriginOf(t *testing.T) {
	if got := originOf("https://recessionpulse.com/dashboard"); got != "https://recessionpulse.com" {
		t.Fatalf("unexpected origin %q", got)
	}
	if got := originOf("not a url"); got != "not a url" {
		t.Fatalf("expected raw value back, got %q", got)
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origOpenDirectory := openDirectoryFunc
	origInitTracer := initTracerFunc
	origStartTelegram := startTelegramBotFunc
	origStartScheduler := startSchedulerFunc
	origStartDrainer := startDrainerFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			DashboardURL:       "https://recessionpulse.com/dashboard",
			CronSecret:         "secret",
			QueueMaxAttempts:   3,
			QueueDrainLimit:    10,
			QueueDrainPollSecs: 60,
			SchedulerEnabled:   true,
			CycleHourUTC:       13,
		}
	}
	initPostgresFunc = func(context.Context, string) (*pgxpool.Pool, error) { return nil, nil }
	initRedisFunc = func(context.Context, string) (*redis.Client, error) {
		return nil, errors.New("connection refused")
	}
	openDirectoryFunc = func(string) (*gorm.DB, error) { return nil, nil }
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	startTelegramBotFunc = func(string, bot.BriefingPreviewer, bot.QueueStatsReader) *bot.Transport { return nil }
	startSchedulerFunc = func(*job.CycleScheduler, context.Context) {}
	startDrainerFunc = func(*job.QueueDrainer, context.Context) {}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		openDirectoryFunc = origOpenDirectory
		initTracerFunc = origInitTracer
		startTelegramBotFunc = origStartTelegram
		startSchedulerFunc = origStartScheduler
		startDrainerFunc = origStartDrainer
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
