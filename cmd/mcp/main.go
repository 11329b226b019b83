package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"recession-pulse/internal/app"
	"recession-pulse/internal/cache"
	"recession-pulse/internal/config"
	"recession-pulse/internal/db"
	"recession-pulse/internal/directory"
	mcpserver "recession-pulse/internal/mcp"
	"recession-pulse/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	openDirectoryFunc = directory.Open
	initTracerFunc    = tracing.InitTracer
	buildAppFunc      = app.Build
	newMCPServerFunc  = mcpserver.NewServer
	newMCPHandlerFunc = mcpserver.NewHTTPTransportHandler
	runStdioFunc      = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

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

	// Stdout carries the stdio protocol, so diagnostics go to stderr.
	log.SetOutput(os.Stderr)

	a := buildAppFunc(cfg, tracer, connectInfra(ctx, cfg))

	mcpSrv := newMCPServerFunc(tracer, a.Cycle, a.Cycle, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
		SendDelay:      cfg.QueueSendDelay(),
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp http server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

func connectInfra(ctx context.Context, cfg *config.Config) app.Infra {
	var infra app.Infra
	if pool, err := initPostgresFunc(ctx, cfg.DatabaseURL); err != nil {
		log.Printf("Warning: Postgres unavailable: %v", err)
	} else if pool != nil {
		infra.Pool = pool
	}
	if rdb, err := initRedisFunc(ctx, cfg.RedisURL); err != nil {
		log.Printf("Warning: Redis unavailable: %v", err)
	} else {
		infra.Redis = rdb
	}
	if gdb, err := openDirectoryFunc(cfg.DatabaseURL); err != nil {
		log.Printf("Warning: subscriber directory unavailable: %v", err)
	} else {
		infra.Directory = gdb
	}
	return infra
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
