package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "file:metaspn_tokens.db", cfg.DB.DSN)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5, cfg.DB.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Solana.RPCURL)
	assert.Equal(t, 5.0, cfg.Solana.RPS)
	assert.Empty(t, cfg.Pumpfun.BaseURL)
	assert.Equal(t, "ledger", cfg.Feed.Namespace)
	assert.Equal(t, 10000, cfg.Feed.MaxLen)
	assert.Equal(t, 8080, cfg.Server.HealthPort)
	assert.Empty(t, cfg.Tracing.Endpoint)
	assert.True(t, cfg.Tracing.Insecure)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://ledger:ledger@db:5432/ledger?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://redis:6379")
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("SOLANA_RPC_RPS", "10")
	t.Setenv("FEED_NAMESPACE", "ledger-staging")
	t.Setenv("HEALTH_PORT", "9090")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://ledger:ledger@db:5432/ledger?sslmode=disable", cfg.DB.DSN)
	assert.Equal(t, "redis://redis:6379", cfg.Redis.URL)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Solana.RPCURL)
	assert.Equal(t, 10.0, cfg.Solana.RPS)
	assert.Equal(t, "ledger-staging", cfg.Feed.Namespace)
	assert.Equal(t, 9090, cfg.Server.HealthPort)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("HEALTH_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEALTH_PORT")
}
