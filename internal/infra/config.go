package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Webhook verification modes. Strict is the only mode allowed in production.
const (
	WebhookVerifyStrict   = "strict"
	WebhookVerifyInsecure = "insecure"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	JWTSecret         string
	PublicBaseURL     string
	AllowedOrigins    []string
	GeoIPDBPath       string
	FalAPIKey         string
	FalQueueBaseURL   string
	FalVideoEndpoint  string
	FalSoundEndpoint  string
	FalWebhookSecret  string
	WebhookVerifyMode string
	WebhookTimeout    time.Duration
	SweepSchedule     string
	SweepBatchSize    int
	SweepConcurrency  int
	DailyJobLimit     int
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	DBMaxConns        int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		FalAPIKey:         os.Getenv("FAL_API_KEY"),
		FalQueueBaseURL:   getEnv("FAL_QUEUE_BASE_URL", "https://queue.fal.run"),
		FalVideoEndpoint:  getEnv("FAL_VIDEO_ENDPOINT", "fal-ai/kling-video/v1.6/standard/image-to-video"),
		FalSoundEndpoint:  getEnv("FAL_SOUND_ENDPOINT", "fal-ai/mmaudio-v2/text-to-audio"),
		FalWebhookSecret:  os.Getenv("FAL_WEBHOOK_SECRET"),
		WebhookVerifyMode: getEnv("WEBHOOK_VERIFY_MODE", WebhookVerifyStrict),
		WebhookTimeout:    time.Second * time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 300)),
		SweepSchedule:     getEnv("RECONCILE_SWEEP_SCHEDULE", "@every 1m"),
		SweepBatchSize:    getEnvInt("RECONCILE_SWEEP_BATCH_SIZE", 50),
		SweepConcurrency:  getEnvInt("RECONCILE_SWEEP_CONCURRENCY", 4),
		DailyJobLimit:     getEnvInt("DAILY_JOB_LIMIT", 20),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.WebhookVerifyMode != WebhookVerifyStrict && cfg.WebhookVerifyMode != WebhookVerifyInsecure {
		return nil, fmt.Errorf("WEBHOOK_VERIFY_MODE must be %q or %q", WebhookVerifyStrict, WebhookVerifyInsecure)
	}
	if cfg.Production() {
		if cfg.FalAPIKey == "" {
			return nil, fmt.Errorf("FAL_API_KEY is required in production")
		}
		if cfg.FalWebhookSecret == "" {
			return nil, fmt.Errorf("FAL_WEBHOOK_SECRET is required in production")
		}
		if cfg.WebhookVerifyMode != WebhookVerifyStrict {
			return nil, fmt.Errorf("WEBHOOK_VERIFY_MODE must be strict in production")
		}
	}

	return cfg, nil
}

// Production reports whether the service runs with production safety checks.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// WebhookVerificationEnabled reports whether inbound webhook signatures must
// verify. The insecure bypass exists for local development against mock
// deliveries; LoadConfig rejects it in production.
func (c *Config) WebhookVerificationEnabled() bool {
	return c.WebhookVerifyMode != WebhookVerifyInsecure || c.Production()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
