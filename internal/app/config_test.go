package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "HNL", cfg.DefaultCurrency)
	require.Equal(t, 0.4, cfg.DefaultMargin)
	require.Equal(t, 5*time.Second, cfg.PGLockTimeout)
	require.Equal(t, 60*time.Second, cfg.PieceUnitCacheTTL)
	require.False(t, cfg.AutoMigrate)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("DEFAULT_MARGIN", "0.25")
	t.Setenv("PG_LOCK_TIMEOUT", "750ms")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "USD", cfg.DefaultCurrency)
	require.Equal(t, 0.25, cfg.DefaultMargin)
	require.Equal(t, 750*time.Millisecond, cfg.PGLockTimeout)
	require.True(t, cfg.AutoMigrate)
	require.Equal(t, 30, cfg.RateLimitPerMinute)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"currency": {"DEFAULT_CURRENCY", "XX1"},
		"margin":   {"DEFAULT_MARGIN", "1"},
		"negative": {"DEFAULT_MARGIN", "-0.1"},
		"duration": {"PG_LOCK_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept", slog.String("supply", "hoja"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "sdsinventory", entry["service"])
	require.Equal(t, "staging", entry["env"])
	require.Equal(t, "hoja", entry["supply"])
}
