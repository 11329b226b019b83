package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL  string
	RedisURL     string
	Port         string
	DashboardURL string
	CronSecret   string

	TelegramBotToken string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioBaseURL    string

	ResendAPIKey  string
	ResendBaseURL string
	EmailFrom     string

	QueueMaxAttempts    int
	QueueDrainLimit     int
	QueueSendDelayMS    int
	QueueStuckAfterMins int
	QueueDrainPollSecs  int

	ReadingLookbackDays int
	DedupTTLHours       int
	TrendCacheMins      int

	SchedulerEnabled bool
	CycleHourUTC     int

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CronSecret:       os.Getenv("CRON_SECRET"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TwilioAccountSID: strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER")),
		TwilioBaseURL:    strings.TrimSpace(os.Getenv("TWILIO_BASE_URL")),
		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		ResendBaseURL:    strings.TrimSpace(os.Getenv("RESEND_BASE_URL")),
		EmailFrom:        strings.TrimSpace(os.Getenv("EMAIL_FROM")),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.CronSecret == "" {
		log.Println("Warning: CRON_SECRET not set, cron endpoints will reject every call")
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, telegram channel disabled")
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		log.Println("Warning: TWILIO_* not fully set, sms channel disabled")
	}
	if cfg.ResendAPIKey == "" {
		log.Println("Warning: RESEND_API_KEY not set, email channel disabled")
	}

	cfg.Port = strings.TrimSpace(os.Getenv("PORT"))

	cfg.DashboardURL = strings.TrimSpace(os.Getenv("DASHBOARD_URL"))
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = "https://recessionpulse.com/dashboard"
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = "Recession Pulse <alerts@recessionpulse.com>"
	}

	cfg.QueueMaxAttempts = positiveInt("QUEUE_MAX_ATTEMPTS", 3)
	cfg.QueueDrainLimit = positiveInt("QUEUE_DRAIN_LIMIT", 100)
	cfg.QueueSendDelayMS = nonNegativeInt("QUEUE_SEND_DELAY_MS", 500)
	cfg.QueueStuckAfterMins = positiveInt("QUEUE_STUCK_AFTER_MINS", 15)
	cfg.QueueDrainPollSecs = positiveInt("QUEUE_DRAIN_POLL_SECS", 300)

	cfg.ReadingLookbackDays = positiveInt("READING_LOOKBACK_DAYS", 3)
	cfg.DedupTTLHours = positiveInt("DEDUP_TTL_HOURS", 36)
	cfg.TrendCacheMins = positiveInt("TREND_CACHE_MINS", 15)

	cfg.SchedulerEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED")), "true")

	cfg.CycleHourUTC = 13
	if v := strings.TrimSpace(os.Getenv("CYCLE_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.CycleHourUTC = n
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = positiveInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = positiveInt("MCP_REQUEST_TIMEOUT_SECS", 5)
	cfg.MCPRateLimitPerMin = positiveInt("MCP_RATE_LIMIT_PER_MIN", 60)

	return cfg
}

func (c *Config) QueueSendDelay() time.Duration {
	return time.Duration(c.QueueSendDelayMS) * time.Millisecond
}

func (c *Config) QueueStuckAfter() time.Duration {
	return time.Duration(c.QueueStuckAfterMins) * time.Minute
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLHours) * time.Hour
}

func (c *Config) TrendCacheTTL() time.Duration {
	return time.Duration(c.TrendCacheMins) * time.Minute
}

func (c *Config) QueueDrainEvery() time.Duration {
	return time.Duration(c.QueueDrainPollSecs) * time.Second
}

func positiveInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func nonNegativeInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}
