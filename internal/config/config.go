package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	SecurityHeaders    bool
	EnableHSTS         bool
	MaxBodyBytes       int64
	ImportMaxBodyBytes int64

	LogFormat          string
	LogLevel           string
	MetricsNamespace   string
	EnablePrometheus   bool
	EnableTracing      bool
	OTLPEndpoint       string
	TracingSampleRatio float64

	SettingsCacheTTL  time.Duration
	RelationsCacheTTL time.Duration
	LockTTL           time.Duration
	LockRetryBackoff  time.Duration
	LockRelations     bool

	ClampNegativePrice    bool
	DefaultCurrencyCode   string
	DefaultCurrencySymbol string

	RateLimitAdminMax    int
	RateLimitAdminWindow time.Duration
	RateLimitStrategy    string
	IdempotencyTTL       time.Duration

	ImportAsync       bool
	WorkerConcurrency int

	AuditEnabled      bool
	AuditSamplingRate float64
	AuditActorHeader  string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		SecurityHeaders:    parseBool(valueOrDefault(k.String("SECURE_HEADERS"), "true")),
		EnableHSTS:         parseBool(k.String("SECURE_HSTS")),
		MaxBodyBytes:       int64(parseInt(k.String("API_MAX_BODY_BYTES"), 1<<20)),
		ImportMaxBodyBytes: int64(parseInt(k.String("IMPORT_MAX_BODY_BYTES"), 10<<20)),

		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		EnablePrometheus:   parseBool(valueOrDefault(k.String("OBS_ENABLE_PROMETHEUS"), "true")),
		EnableTracing:      parseBool(k.String("OBS_ENABLE_TRACING")),
		OTLPEndpoint:       k.String("OBS_OTLP_ENDPOINT"),
		TracingSampleRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),

		SettingsCacheTTL:  parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		RelationsCacheTTL: parseDuration(k.String("RELATIONS_CACHE_TTL"), "10m"),
		LockTTL:           parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff:  parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		LockRelations:     parseBool(valueOrDefault(k.String("LOCK_RELATIONS"), "true")),

		ClampNegativePrice:    parseBool(k.String("PRICING_CLAMP_NEGATIVE_PRICE")),
		DefaultCurrencyCode:   strings.ToUpper(valueOrDefault(k.String("DEFAULT_CURRENCY_CODE"), "USD")),
		DefaultCurrencySymbol: valueOrDefault(k.String("DEFAULT_CURRENCY_SYMBOL"), "$"),

		RateLimitAdminMax:    parseInt(k.String("RATE_LIMIT_ADMIN_MAX"), 120),
		RateLimitAdminWindow: parseDuration(k.String("RATE_LIMIT_ADMIN_WINDOW"), "1m"),
		RateLimitStrategy:    strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		ImportAsync:       parseBool(k.String("IMPORT_ASYNC")),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 10),

		AuditEnabled:      parseBool(valueOrDefault(k.String("AUDIT_ENABLED"), "true")),
		AuditSamplingRate: parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
		AuditActorHeader:  valueOrDefault(k.String("AUDIT_ACTOR_HEADER"), "X-Actor-ID"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.RateLimitStrategy != "sliding" && cfg.RateLimitStrategy != "fixed" {
		return nil, errors.New("RATE_LIMIT_STRATEGY must be sliding or fixed")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, errors.New("WORKER_CONCURRENCY must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
