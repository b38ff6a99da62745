package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB      DBConfig
	Redis   RedisConfig
	Solana  SolanaConfig
	Pumpfun PumpfunConfig
	Feed    FeedConfig
	Server  ServerConfig
	Tracing TracingConfig
	Log     LogConfig
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type SolanaConfig struct {
	RPCURL string
	RPS    float64
}

type PumpfunConfig struct {
	BaseURL string
	RPS     float64
}

type FeedConfig struct {
	Namespace string
	MaxLen    int
}

type ServerConfig struct {
	HealthPort int
}

type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		DB: DBConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_DSN", "file:metaspn_tokens.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Solana: SolanaConfig{
			RPCURL: getEnv("SOLANA_RPC_URL", ""),
			RPS:    getEnvFloat("SOLANA_RPC_RPS", 5),
		},
		Pumpfun: PumpfunConfig{
			BaseURL: getEnv("PUMPFUN_BASE_URL", ""),
			RPS:     getEnvFloat("PUMPFUN_RPS", 2),
		},
		Feed: FeedConfig{
			Namespace: getEnv("FEED_NAMESPACE", "ledger"),
			MaxLen:    getEnvInt("FEED_MAX_LEN", 10000),
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.Server.HealthPort <= 0 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be a valid port, got %d", c.Server.HealthPort)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
