package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":                 "postgres://localhost:5432/kirana_test",
		"REDIS_URL":                    "redis://localhost:6379/1",
		"APP_ORIGIN":                   "https://app.kirana.test",
		"APP_ENV":                      "",
		"PORT":                         "",
		"NATIVE_SCHEME":                "",
		"CALLBACK_REPLAY_TTL":          "",
		"SETTLEMENT_RATE_LIMIT":        "",
		"SETTLEMENT_RATE_PERIOD":       "",
		"WORKER_CONCURRENCY":           "",
		"SIDE_EFFECT_QUEUE":            "",
		"CORS_ALLOWED_ORIGINS":         "",
		"STOCK_ALLOW_BACKORDER":        "",
		"DB_MIGRATE_ON_START":          "",
		"RAZORPAY_PLATFORM_KEY_ID":     "",
		"RAZORPAY_PLATFORM_KEY_SECRET": "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "kirana", cfg.NativeScheme)
	require.Equal(t, "settlement", cfg.SideEffectQueue)
	require.Equal(t, 24*time.Hour, cfg.CallbackReplayTTL)
	require.Equal(t, int64(60), cfg.SettlementRateLimit)
	require.Equal(t, time.Minute, cfg.SettlementRatePeriod)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.Equal(t, 20, cfg.AdminDefaultLimit)
	require.Equal(t, 100, cfg.AdminMaxLimit)
	require.True(t, cfg.MigrateOnStart)
	require.False(t, cfg.StockAllowBackorder)
}

func TestLoadOverrides(t *testing.T) {
	envs := baseEnv()
	envs["APP_ENV"] = "production"
	envs["PORT"] = "9090"
	envs["NATIVE_SCHEME"] = "freshmart"
	envs["CALLBACK_REPLAY_TTL"] = "45m"
	envs["SETTLEMENT_RATE_LIMIT"] = "120"
	envs["SETTLEMENT_RATE_PERIOD"] = "30s"
	envs["WORKER_CONCURRENCY"] = "12"
	envs["STOCK_ALLOW_BACKORDER"] = "yes"
	envs["DB_MIGRATE_ON_START"] = "false"
	envs["CORS_ALLOWED_ORIGINS"] = " https://a.test , https://b.test ,"

	cfg, err := LoadForTests(envs)
	require.NoError(t, err)

	require.Equal(t, "production", cfg.AppEnv)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "freshmart", cfg.NativeScheme)
	require.Equal(t, 45*time.Minute, cfg.CallbackReplayTTL)
	require.Equal(t, int64(120), cfg.SettlementRateLimit)
	require.Equal(t, 30*time.Second, cfg.SettlementRatePeriod)
	require.Equal(t, 12, cfg.WorkerConcurrency)
	require.True(t, cfg.StockAllowBackorder)
	require.False(t, cfg.MigrateOnStart)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiredFields(t *testing.T) {
	for _, missing := range []string{"DATABASE_URL", "REDIS_URL", "APP_ORIGIN"} {
		envs := baseEnv()
		envs[missing] = ""
		_, err := LoadForTests(envs)
		require.Error(t, err, "expected %s to be required", missing)
	}
}

func TestLoadTrimsAppOriginSlash(t *testing.T) {
	envs := baseEnv()
	envs["APP_ORIGIN"] = "https://app.kirana.test/"

	cfg, err := LoadForTests(envs)
	require.NoError(t, err)
	require.Equal(t, "https://app.kirana.test", cfg.AppOrigin)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	envs := baseEnv()
	envs["CALLBACK_REPLAY_TTL"] = "not-a-duration"

	cfg, err := LoadForTests(envs)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.CallbackReplayTTL)
}

func TestHTTPAddrAcceptsColonPrefix(t *testing.T) {
	cfg := &Config{Port: ":7000"}
	require.Equal(t, ":7000", cfg.HTTPAddr())
	cfg.Port = ""
	require.Equal(t, ":8080", cfg.HTTPAddr())
}
