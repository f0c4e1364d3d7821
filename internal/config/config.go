package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Chat         ChatConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters. The back office has a
// single admin account configured through the environment.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminEmail            string
	AdminPasswordHash     string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// ChatConfig tunes ticket view sessions.
type ChatConfig struct {
	PollIntervalMS        int
	TypingTimeoutMS       int
	TypingThrottleMS      int
	ReadReceiptThrottleMS int
	ReadReceiptDelayMS    int
	ScrollThresholdPX     int
	SignalPrefix          string
	SignalBackend         string
	SessionIdleMinutes    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-chat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminEmail:            getEnv("AUTH_ADMIN_EMAIL", "admin@example.com"),
			AdminPasswordHash:     os.Getenv("AUTH_ADMIN_PASSWORD_HASH"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Chat: ChatConfig{
			PollIntervalMS:        getEnvAsInt("CHAT_POLL_INTERVAL_MS", 5000),
			TypingTimeoutMS:       getEnvAsInt("CHAT_TYPING_TIMEOUT_MS", 2000),
			TypingThrottleMS:      getEnvAsInt("CHAT_TYPING_THROTTLE_MS", 1500),
			ReadReceiptThrottleMS: getEnvAsInt("CHAT_READ_RECEIPT_THROTTLE_MS", 1000),
			ReadReceiptDelayMS:    getEnvAsInt("CHAT_READ_RECEIPT_DELAY_MS", 500),
			ScrollThresholdPX:     getEnvAsInt("CHAT_SCROLL_THRESHOLD_PX", 100),
			SignalPrefix:          getEnv("CHAT_SIGNAL_PREFIX", "ticket"),
			SignalBackend:         getEnv("CHAT_SIGNAL_BACKEND", SignalBackendRedis),
			SessionIdleMinutes:    getEnvAsInt("CHAT_SESSION_IDLE_MINUTES", 30),
		},
	}

	switch cfg.Chat.SignalBackend {
	case SignalBackendRedis, SignalBackendMemory:
	default:
		return nil, fmt.Errorf("invalid CHAT_SIGNAL_BACKEND %q", cfg.Chat.SignalBackend)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Signal channel backends.
const (
	SignalBackendRedis  = "redis"
	SignalBackendMemory = "memory"
)

// AccessTokenTTL returns the lifetime of issued admin tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// PollInterval is the poller period.
func (c ChatConfig) PollInterval() time.Duration { return millis(c.PollIntervalMS) }

// TypingTimeout is how long the other party's typing flag stays up.
func (c ChatConfig) TypingTimeout() time.Duration { return millis(c.TypingTimeoutMS) }

// TypingThrottle is the minimum gap between own typing broadcasts.
func (c ChatConfig) TypingThrottle() time.Duration { return millis(c.TypingThrottleMS) }

// ReadReceiptThrottle is the minimum gap between read receipts.
func (c ChatConfig) ReadReceiptThrottle() time.Duration { return millis(c.ReadReceiptThrottleMS) }

// ReadReceiptDelay is the wait after load before the first receipt.
func (c ChatConfig) ReadReceiptDelay() time.Duration { return millis(c.ReadReceiptDelayMS) }

// SessionIdle is how long an untouched session survives.
func (c ChatConfig) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func millis(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Millisecond
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
