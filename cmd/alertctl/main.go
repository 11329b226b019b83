// Command alertctl runs the alert pipeline by hand: load readings, run a
// cycle, drain the queue, and inspect what subscribers would receive.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"recession-pulse/internal/app"
	"recession-pulse/internal/cache"
	"recession-pulse/internal/config"
	"recession-pulse/internal/db"
	"recession-pulse/internal/directory"
	"recession-pulse/internal/domain"
	"recession-pulse/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

type pipeline interface {
	RunDailyAlertCycle(ctx context.Context) (domain.CycleResult, error)
	DrainQueue(ctx context.Context, limit int) (domain.DispatchReport, error)
	Preview(ctx context.Context, channel domain.Channel) (string, error)
	QueueStats(ctx context.Context) (domain.QueueStats, error)
}

type readingIngester interface {
	IngestReadings(ctx context.Context, readings []domain.IndicatorReading) error
}

type subscriberWriter interface {
	Save(ctx context.Context, sub domain.Subscriber, status string) error
}

// env is what every subcommand runs against.
type env struct {
	cycle       pipeline
	readings    readingIngester
	subscribers subscriberWriter
	migrate     func(ctx context.Context) error
	close       func()
}

var (
	loadEnvFunc = godotenv.Load
	openEnvFunc = openEnv
	exitFunc    = os.Exit
)

func main() {
	loadEnvFunc()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "alertctl",
		Short:         "Operate the Recession Pulse alert pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(subscriberCmd())
	return rootCmd
}

// openEnv connects to the configured stores. Unlike the server, the CLI
// refuses to run without Postgres.
func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()

	tp, tracer, err := tracing.InitTracer(ctx)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := db.InitPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	infra := app.Infra{Pool: pool}

	if rdb, err := cache.InitRedis(ctx, cfg.RedisURL); err != nil {
		log.Printf("Warning: Redis unavailable: %v", err)
	} else {
		infra.Redis = rdb
	}
	if gdb, err := directory.Open(cfg.DatabaseURL); err != nil {
		log.Printf("Warning: subscriber directory unavailable: %v", err)
	} else {
		infra.Directory = gdb
	}

	a := app.Build(cfg, tracer, infra)
	return &env{
		cycle:       a.Cycle,
		readings:    a.Cycle,
		subscribers: a.Directory,
		migrate:     a.Migrate,
		close: func() {
			if infra.Redis != nil {
				infra.Redis.Close()
			}
			pool.Close()
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Printf("error shutting down tracer provider: %v", err)
			}
		},
	}, nil
}

// withEnv opens the environment for the duration of fn.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnvFunc(ctx)
	if err != nil {
		return err
	}
	if e.close != nil {
		defer e.close()
	}
	return fn(ctx, e)
}
