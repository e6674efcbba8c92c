package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string
	DBDSN        string
	JWTSecret    string
	// JWTAccessTokenTTL applies to tokens minted locally for tests and tooling.
	JWTAccessTokenTTL time.Duration

	// RedisAddr enables the shared window cache when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WindowCacheTTL time.Duration
	DraftDebounce  time.Duration
	DraftTTL       time.Duration
	FetchTimeout   time.Duration

	LessonRounding      conflict.RoundingMode
	ReservationRounding conflict.RoundingMode

	LogLevel  string
	LogFormat string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	return fromEnv()
}

func fromEnv() (*Config, error) {
	var err error
	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING
	if cfg.IsProduction && cfg.ProdOrigins == "" {
		return nil, fmt.Errorf("PROD_ORIGINS is required when APP_ENV=%s", PROD_STRING)
	}

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	// JWT secret is required to verify tokens from the account backend
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_TTL: %w", err)
	}

	// Redis is optional; without it window caches stay in process
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.WindowCacheTTL, err = getEnvAsDuration("WINDOW_CACHE_TTL", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid WINDOW_CACHE_TTL: %w", err)
	}
	if cfg.DraftDebounce, err = getEnvAsDuration("DRAFT_DEBOUNCE", 300*time.Millisecond); err != nil {
		return nil, fmt.Errorf("invalid DRAFT_DEBOUNCE: %w", err)
	}
	if cfg.DraftTTL, err = getEnvAsDuration("DRAFT_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid DRAFT_TTL: %w", err)
	}
	// Zero disables the per-load timeout
	if cfg.FetchTimeout, err = getEnvAsDuration("FETCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}

	if cfg.LessonRounding, err = conflict.ParseRoundingMode(getEnv("LESSON_ROUNDING", string(conflict.RoundingNone))); err != nil {
		return nil, fmt.Errorf("invalid LESSON_ROUNDING: %w", err)
	}
	if cfg.ReservationRounding, err = conflict.ParseRoundingMode(getEnv("RESERVATION_ROUNDING", string(conflict.RoundingQuarterHour))); err != nil {
		return nil, fmt.Errorf("invalid RESERVATION_ROUNDING: %w", err)
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses values such as "300ms" or "15m". Negative values are rejected.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("env %s value %q must not be negative", key, valStr)
	}

	return val, nil
}
