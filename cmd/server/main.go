package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"recession-pulse/internal/app"
	"recession-pulse/internal/bot"
	"recession-pulse/internal/cache"
	"recession-pulse/internal/config"
	"recession-pulse/internal/db"
	"recession-pulse/internal/directory"
	"recession-pulse/internal/domain"
	"recession-pulse/internal/handler"
	"recession-pulse/internal/job"
	"recession-pulse/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "recession-pulse/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	openDirectoryFunc      = directory.Open
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newCycleSchedulerFunc  = job.NewCycleScheduler
	newQueueDrainerFunc    = job.NewQueueDrainer
	startSchedulerFunc     = func(j *job.CycleScheduler, ctx context.Context) { go j.Start(ctx) }
	startDrainerFunc       = func(j *job.QueueDrainer, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Recession Pulse API
// @version         1.0
// @description     Daily recession indicator briefings delivered by SMS, email and Telegram.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	infra := connectInfra(ctx, cfg)
	a := buildAppFunc(cfg, tracer, infra)
	if err := a.Migrate(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// The bot reads briefings from the cycle service, so it joins the
	// transports after the pipeline exists and before anything drains.
	if tg := startTelegramBotFunc(cfg.TelegramBotToken, a.Cycle, a.Cycle); tg != nil {
		a.AttachTransport(domain.ChannelTelegram, tg)
	}
	log.Printf("Delivery channels enabled: %v", a.Channels())

	if cfg.SchedulerEnabled {
		startSchedulerFunc(newCycleSchedulerFunc(tracer, a.Cycle, cfg.CycleHourUTC), ctx)
		startDrainerFunc(newQueueDrainerFunc(tracer, a.Cycle, cfg.QueueDrainEvery(), cfg.QueueDrainLimit), ctx)
	}

	h := newHandlerFunc(tracer, a.Cycle, a.Notifications, cfg.CronSecret)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("recession-pulse"))
	if origin := originOf(cfg.DashboardURL); strings.HasPrefix(origin, "http") {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  []string{origin},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddrFromEnv(),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

// connectInfra opens whatever backing stores are reachable. The service
// still starts without them; the affected endpoints report errors instead.
func connectInfra(ctx context.Context, cfg *config.Config) app.Infra {
	var infra app.Infra

	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: Postgres unavailable: %v", err)
	} else if pool != nil {
		infra.Pool = pool
	}

	rdb, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("Warning: Redis unavailable: %v", err)
	} else {
		infra.Redis = rdb
	}

	gdb, err := openDirectoryFunc(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: subscriber directory unavailable: %v", err)
	} else {
		infra.Directory = gdb
	}
	return infra
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// originOf trims a URL down to scheme://host for the CORS allow list.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

