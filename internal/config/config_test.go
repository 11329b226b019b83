package config

import (
	"testing"
	"time"
)

var configKeys = []string{
	"DATABASE_URL", "REDIS_URL", "PORT", "DASHBOARD_URL", "CRON_SECRET", "TELEGRAM_BOT_TOKEN",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_BASE_URL",
	"RESEND_API_KEY", "RESEND_BASE_URL", "EMAIL_FROM",
	"QUEUE_MAX_ATTEMPTS", "QUEUE_DRAIN_LIMIT", "QUEUE_SEND_DELAY_MS", "QUEUE_STUCK_AFTER_MINS", "QUEUE_DRAIN_POLL_SECS",
	"READING_LOOKBACK_DAYS", "DEDUP_TTL_HOURS", "TREND_CACHE_MINS", "SCHEDULER_ENABLED", "CYCLE_HOUR_UTC",
	"MCP_TRANSPORT", "MCP_HTTP_ENABLED", "MCP_HTTP_BIND", "MCP_HTTP_PORT", "MCP_AUTH_TOKEN",
	"MCP_REQUEST_TIMEOUT_SECS", "MCP_RATE_LIMIT_PER_MIN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.DashboardURL != "https://recessionpulse.com/dashboard" {
		t.Fatalf("unexpected dashboard url %s", cfg.DashboardURL)
	}
	if cfg.QueueMaxAttempts != 3 || cfg.QueueDrainLimit != 100 || cfg.QueueSendDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected queue defaults: %+v", cfg)
	}
	if cfg.QueueStuckAfter() != 15*time.Minute || cfg.QueueDrainEvery() != 5*time.Minute {
		t.Fatalf("unexpected queue durations: %s %s", cfg.QueueStuckAfter(), cfg.QueueDrainEvery())
	}
	if cfg.ReadingLookbackDays != 3 || cfg.DedupTTL() != 36*time.Hour || cfg.TrendCacheTTL() != 15*time.Minute {
		t.Fatalf("unexpected cycle defaults: %+v", cfg)
	}
	if cfg.SchedulerEnabled || cfg.CycleHourUTC != 13 {
		t.Fatalf("unexpected scheduler defaults: enabled=%v hour=%d", cfg.SchedulerEnabled, cfg.CycleHourUTC)
	}
	if cfg.MCPTransport != "stdio" || cfg.MCPHTTPBind != "127.0.0.1" || cfg.MCPHTTPPort != 8090 {
		t.Fatalf("unexpected MCP defaults: %s %s:%d", cfg.MCPTransport, cfg.MCPHTTPBind, cfg.MCPHTTPPort)
	}
	if cfg.MCPRequestTimeoutSecs != 5 || cfg.MCPRateLimitPerMin != 60 {
		t.Fatalf("unexpected MCP limits: %d %d", cfg.MCPRequestTimeoutSecs, cfg.MCPRateLimitPerMin)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("QUEUE_SEND_DELAY_MS", "0")
	t.Setenv("READING_LOOKBACK_DAYS", "7")
	t.Setenv("SCHEDULER_ENABLED", "TRUE")
	t.Setenv("CYCLE_HOUR_UTC", "6")
	t.Setenv("MCP_TRANSPORT", "HTTP")
	t.Setenv("EMAIL_FROM", "ops@example.com")

	cfg := Load()
	if cfg.QueueMaxAttempts != 5 || cfg.QueueSendDelay() != 0 || cfg.ReadingLookbackDays != 7 {
		t.Fatalf("expected overrides applied: %+v", cfg)
	}
	if !cfg.SchedulerEnabled || cfg.CycleHourUTC != 6 {
		t.Fatalf("expected scheduler overrides, got enabled=%v hour=%d", cfg.SchedulerEnabled, cfg.CycleHourUTC)
	}
	if cfg.MCPTransport != "http" || cfg.EmailFrom != "ops@example.com" {
		t.Fatalf("unexpected overrides: %s %s", cfg.MCPTransport, cfg.EmailFrom)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_DRAIN_LIMIT", "-4")
	t.Setenv("CYCLE_HOUR_UTC", "24")
	t.Setenv("MCP_TRANSPORT", "grpc")
	t.Setenv("DEDUP_TTL_HOURS", "abc")

	cfg := Load()
	if cfg.QueueDrainLimit != 100 || cfg.CycleHourUTC != 13 || cfg.MCPTransport != "stdio" || cfg.DedupTTLHours != 36 {
		t.Fatalf("expected invalid values to fall back to defaults: %+v", cfg)
	}
}
