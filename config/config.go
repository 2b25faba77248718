package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var (
	PORT        string
	DB_URL      string
	JWT_SECRET  string
	CORS_ORIGIN string
	LOG_LEVEL   string

	// Empty secret disables webhook signature verification (local development only).
	STRIPE_WEBHOOK_SECRET    string
	STRIPE_WEBHOOK_TOLERANCE time.Duration

	SERVICE_FEE_RATE decimal.Decimal

	WS_PING_INTERVAL    time.Duration
	WS_TIMEOUT_MULTIPLE int

	WEBHOOK_DEFERRED_WINDOW  time.Duration
	WEBHOOK_REDRIVE_INTERVAL time.Duration

	REDIS_URL string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "*")
	LOG_LEVEL = getEnv("LOG_LEVEL", "info")

	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")
	STRIPE_WEBHOOK_TOLERANCE = getDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute)

	SERVICE_FEE_RATE = getDecimal("SERVICE_FEE_RATE", decimal.RequireFromString("0.025"))

	WS_PING_INTERVAL = getDuration("WS_PING_INTERVAL", 30*time.Second)
	WS_TIMEOUT_MULTIPLE = getInt("WS_TIMEOUT_MULTIPLE", 2)

	WEBHOOK_DEFERRED_WINDOW = getWindow("WEBHOOK_DEFERRED_WINDOW", 0)
	WEBHOOK_REDRIVE_INTERVAL = getDuration("WEBHOOK_REDRIVE_INTERVAL", time.Minute)

	REDIS_URL = getEnv("REDIS_URL", "")
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getDuration only accepts positive values; tickers and signature tolerances
// cannot run on zero.
func getDuration(key string, fallback time.Duration) time.Duration {
	return parseDuration(key, fallback, false)
}

// getWindow also accepts zero, which disables the window.
func getWindow(key string, fallback time.Duration) time.Duration {
	return parseDuration(key, fallback, true)
}

func parseDuration(key string, fallback time.Duration, allowZero bool) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		log.Printf("Invalid duration for %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Invalid integer for %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		log.Printf("Invalid rate for %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}
