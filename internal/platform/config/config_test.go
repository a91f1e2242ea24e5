package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AGENT_ADDR", "")
		t.Setenv("KAFKA_BROKERS", "")
		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, defaultWalletConfig, cfg.Wallet.ConfigJSON)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, 10, cfg.Postgres.MaxOpenConns)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AGENT_ADDR", ":9090")
		t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
		t.Setenv("REDIS_DIAL_TIMEOUT", "2s")
		t.Setenv("POSTGRES_MAX_OPEN_CONNS", "3")
		cfg := FromEnv()
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout)
		assert.Equal(t, 3, cfg.Postgres.MaxOpenConns)
	})

	t.Run("malformed numbers fall back", func(t *testing.T) {
		t.Setenv("REDIS_POOL_SIZE", "lots")
		assert.Equal(t, 10, FromEnv().Redis.PoolSize)
	})
}
