package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the bot runtime.
type Config struct {
	Port string

	// Symbols the mock feed and diagnostics work with.
	Symbols          []string
	UseMockFeed      bool
	MockFeedInterval time.Duration

	// Rate limiting
	RateLimitConfigPath string

	// Bookkeeping
	HealthCheckInterval  time.Duration
	JournalFlushInterval time.Duration

	// Database
	DBPath string

	// Auth
	JWTSecret     string
	AdminUser     string
	AdminPassword string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Symbols:              splitAndTrim(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),
		UseMockFeed:          getEnv("USE_MOCK_FEED", "true") == "true",
		MockFeedInterval:     getEnvDuration("MOCK_FEED_INTERVAL_MS", time.Second),
		RateLimitConfigPath:  getEnv("RATE_LIMIT_CONFIG", ""),
		HealthCheckInterval:  getEnvDuration("HEALTH_CHECK_INTERVAL_MS", 30*time.Second),
		JournalFlushInterval: getEnvDuration("JOURNAL_FLUSH_INTERVAL_MS", 500*time.Millisecond),
		DBPath:               getEnv("DB_PATH", "./data/bot.db"),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret"),
		AdminUser:            getEnv("ADMIN_USER", "admin"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
