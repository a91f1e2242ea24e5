package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformredis "agentwallet/internal/platform/redis"
)

// Config is the agent process configuration.
type Config struct {
	Server   Server
	Wallet   Wallet
	Log      Log
	Kafka    Kafka
	Redis    platformredis.Config
	Postgres Postgres
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Wallet holds the opaque wallet config and credentials documents.
type Wallet struct {
	ConfigJSON      string
	CredentialsJSON string
	// Dir is where SQLite wallets live when their config names no path.
	Dir string
}

type Log struct {
	Level  string
	Format string
}

// Kafka configures the record lifecycle event sink. No brokers disables it.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

type Postgres struct {
	MaxOpenConns int
}

const (
	defaultWalletConfig      = `{"id":"agent","storage_type":"sqlite"}`
	defaultWalletCredentials = `{"key":"dev-wallet-key-change-in-production"}`
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	redisCfg := platformredis.DefaultConfig()
	redisCfg.PoolSize = intEnv("REDIS_POOL_SIZE", redisCfg.PoolSize)
	redisCfg.MinIdleConns = intEnv("REDIS_MIN_IDLE_CONNS", redisCfg.MinIdleConns)
	redisCfg.DialTimeout = durationEnv("REDIS_DIAL_TIMEOUT", redisCfg.DialTimeout)
	redisCfg.ReadTimeout = durationEnv("REDIS_READ_TIMEOUT", redisCfg.ReadTimeout)
	redisCfg.WriteTimeout = durationEnv("REDIS_WRITE_TIMEOUT", redisCfg.WriteTimeout)

	return Config{
		Server: Server{
			Addr:            stringEnv("AGENT_ADDR", ":8080"),
			ShutdownTimeout: durationEnv("AGENT_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Wallet: Wallet{
			ConfigJSON: stringEnv("WALLET_CONFIG", defaultWalletConfig),
			// Use a default for development - should be overridden in production
			CredentialsJSON: stringEnv("WALLET_CREDENTIALS", defaultWalletCredentials),
			Dir:             os.Getenv("WALLET_DIR"),
		},
		Log: Log{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
		Kafka: Kafka{
			Brokers:    listEnv("KAFKA_BROKERS"),
			AuditTopic: stringEnv("KAFKA_AUDIT_TOPIC", "agentwallet.records"),
		},
		Redis: redisCfg,
		Postgres: Postgres{
			MaxOpenConns: intEnv("POSTGRES_MAX_OPEN_CONNS", 10),
		},
	}
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
