package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port        string
	DBDriver    string // postgres | sqlite
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	AdminUsername string
	AdminPassword string

	MarketplaceBridgeURL string
	MarketplaceTimeout   time.Duration

	ReconcileConcurrency int
	DispatchConcurrency  int

	OTLPEndpoint string
	ServiceName  string
	LogLevel     slog.Level
}

// ErrMissingSecret is returned by Load when JWT_SECRET is unset.
var ErrMissingSecret = errors.New("config: JWT_SECRET must be set")

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{
		Port:                 getEnv("APP_PORT", "8080"),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTTTL:               getDuration("JWT_TTL", 24*time.Hour),
		AdminUsername:        getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		MarketplaceBridgeURL: getEnv("MARKETPLACE_BRIDGE_URL", "http://localhost:9000"),
		MarketplaceTimeout:   getDuration("MARKETPLACE_TIMEOUT", 20*time.Second),
		ReconcileConcurrency: getInt("RECONCILE_CONCURRENCY", 5),
		DispatchConcurrency:  getInt("DISPATCH_CONCURRENCY", 5),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:          getEnv("SERVICE_NAME", "xianyu-backend"),
		LogLevel:             parseLevel(getEnv("LOG_LEVEL", "info")),
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.DatabaseURL == "" && cfg.DBDriver == "sqlite" {
		cfg.DatabaseURL = "xianyu.db"
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("30s") or bare seconds ("30").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
