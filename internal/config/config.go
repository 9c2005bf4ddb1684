package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL    string
	RedisURL       string
	MigrateOnStart bool

	// Platform-level Razorpay credentials, used for plan upgrade payments.
	RazorpayPlatformKeyID  string
	RazorpayPlatformSecret string

	// AppOrigin is the HTTPS origin hosting the web payment-callback page.
	AppOrigin string
	// NativeScheme is the deep-link scheme used for native app callbacks.
	NativeScheme string

	AdminJWTSecret   string
	AdminJWTIssuer   string
	AdminJWTAudience string

	CORSAllowedOrigins []string

	CallbackReplayTTL   time.Duration
	OutboundTimeout     time.Duration
	StockAllowBackorder bool

	SettlementRateLimit  int64
	SettlementRatePeriod time.Duration

	AdminDefaultLimit int
	AdminMaxLimit     int

	WorkerConcurrency int
	SideEffectQueue   string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                 valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                   valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:            k.String("DATABASE_URL"),
		RedisURL:               k.String("REDIS_URL"),
		MigrateOnStart:         parseBool(valueOrDefault(k.String("DB_MIGRATE_ON_START"), "true")),
		RazorpayPlatformKeyID:  k.String("RAZORPAY_PLATFORM_KEY_ID"),
		RazorpayPlatformSecret: k.String("RAZORPAY_PLATFORM_KEY_SECRET"),
		AppOrigin:              strings.TrimRight(k.String("APP_ORIGIN"), "/"),
		NativeScheme:           valueOrDefault(k.String("NATIVE_SCHEME"), "kirana"),
		AdminJWTSecret:         k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:         valueOrDefault(k.String("ADMIN_JWT_ISSUER"), "kirana-api"),
		AdminJWTAudience:       k.String("ADMIN_JWT_AUDIENCE"),
		CORSAllowedOrigins:     splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CallbackReplayTTL:      parseDuration(k.String("CALLBACK_REPLAY_TTL"), "24h"),
		OutboundTimeout:        parseDuration(k.String("OUTBOUND_TIMEOUT"), "8s"),
		StockAllowBackorder:    parseBool(k.String("STOCK_ALLOW_BACKORDER")),
		SettlementRateLimit:    int64(intOrDefault(k.String("SETTLEMENT_RATE_LIMIT"), 60)),
		SettlementRatePeriod:   parseDuration(k.String("SETTLEMENT_RATE_PERIOD"), "1m"),
		AdminDefaultLimit:      intOrDefault(k.String("ADMIN_DEFAULT_LIMIT"), 20),
		AdminMaxLimit:          intOrDefault(k.String("ADMIN_MAX_LIMIT"), 100),
		WorkerConcurrency:      intOrDefault(k.String("WORKER_CONCURRENCY"), 5),
		SideEffectQueue:        valueOrDefault(k.String("SIDE_EFFECT_QUEUE"), "settlement"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AppOrigin == "" {
		return nil, errors.New("APP_ORIGIN is required")
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

func intOrDefault(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

// LoadForTests overrides environment variables for the duration of a Load call.
func LoadForTests(envs map[string]string) (*Config, error) {
	original := make(map[string]string, len(envs))
	for key := range envs {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, envs[key]); err != nil {
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
