package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const MinSecretLength = 32

// argon2id cost bounds.
const (
	maxPasswordTimeCost  = 64
	minPasswordMemoryKiB = 8
	maxPasswordMemoryKiB = 4 * 1024 * 1024
)

type Config struct {
	// Tokens
	JWTSecret       string
	DefaultTokenTTL time.Duration
	SweepInterval   time.Duration // 0 disables the expiry sweep

	// DB
	DatabaseURL string
	LogSQL      bool

	// HTTP
	Addr              string
	CORSOrigins       []string
	RateLimitPerMin   int
	WSPingInterval    time.Duration
	NotifyRequireAuth bool

	// Notifications
	BroadcastCapacity int
	DefaultTitle      string
	DefaultDevice     string

	// Passwords
	PasswordTimeCost  uint32
	PasswordMemoryKiB uint32

	// Logging
	Environment string
	LogLevel    string
}

// ConfigError reports an unusable setting. The server refuses to start on it.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "err", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	timeCost := getint("PASSWORD_TIME_COST", 3)
	memoryKiB := getint("PASSWORD_MEMORY_KIB", 64*1024)
	switch {
	case timeCost <= 0 || timeCost > maxPasswordTimeCost:
		return Config{}, &ConfigError{Key: "PASSWORD_TIME_COST", Reason: fmt.Sprintf("must be between 1 and %d", maxPasswordTimeCost)}
	case memoryKiB < minPasswordMemoryKiB || memoryKiB > maxPasswordMemoryKiB:
		return Config{}, &ConfigError{Key: "PASSWORD_MEMORY_KIB", Reason: fmt.Sprintf("must be between %d and %d", minPasswordMemoryKiB, maxPasswordMemoryKiB)}
	}

	cfg := Config{
		JWTSecret:       os.Getenv("RUTIFY_JWT_SECRET"),
		DefaultTokenTTL: time.Duration(getint("TOKEN_DEFAULT_TTL_HOURS", 24)) * time.Hour,
		SweepInterval:   getdur("TOKEN_SWEEP_INTERVAL", time.Hour),

		DatabaseURL: getenv("RUTIFY_DB_URL", "sqlite://rutify.db"),
		LogSQL:      getbool("DB_LOG_SQL", false),

		Addr:              getenv("RUTIFY_ADDR", "0.0.0.0:3000"),
		CORSOrigins:       getlist("CORS_ORIGINS"),
		RateLimitPerMin:   getint("RATE_LIMIT_PER_MINUTE", 300),
		WSPingInterval:    getdur("WS_PING_INTERVAL", 30*time.Second),
		NotifyRequireAuth: getbool("NOTIFY_REQUIRE_AUTH", false),

		BroadcastCapacity: getint("BROADCAST_CAPACITY", 200),
		DefaultTitle:      getenv("NOTIFY_DEFAULT_TITLE", "default title"),
		DefaultDevice:     getenv("NOTIFY_DEFAULT_DEVICE", "default device"),

		PasswordTimeCost:  uint32(timeCost),
		PasswordMemoryKiB: uint32(memoryKiB),

		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}

	switch {
	case cfg.JWTSecret == "":
		return Config{}, &ConfigError{Key: "RUTIFY_JWT_SECRET", Reason: "is required"}
	case len(cfg.JWTSecret) < MinSecretLength:
		return Config{}, &ConfigError{Key: "RUTIFY_JWT_SECRET", Reason: fmt.Sprintf("must be at least %d bytes", MinSecretLength)}
	case cfg.DefaultTokenTTL <= 0:
		return Config{}, &ConfigError{Key: "TOKEN_DEFAULT_TTL_HOURS", Reason: "must be positive"}
	case cfg.BroadcastCapacity <= 0:
		return Config{}, &ConfigError{Key: "BROADCAST_CAPACITY", Reason: "must be positive"}
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		slog.Warn("invalid bool, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("invalid integer, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("invalid duration, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getlist(k string) []string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
