package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "orchestrator", cfg.Kafka.InboundTopic)
	assert.Equal(t, "phincommerce", cfg.Kafka.GroupID)
	assert.Equal(t, "order", cfg.Kafka.OutcomeTopic)
	assert.Equal(t, 1, cfg.Kafka.ConsumerConcurrency)
	assert.Equal(t, "memory", cfg.Journal.Driver)
	assert.Equal(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  consumer_concurrency: 4
saga:
  timeout: 2m
  fan_out_limit: 3
  stock_rule: "stock - requested >= 1"
journal:
  driver: redis
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Kafka.ConsumerConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Saga.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Saga.CallTimeout)
	assert.Equal(t, 3, cfg.Saga.FanOutLimit)
	assert.Equal(t, "stock - requested >= 1", cfg.Saga.StockRule)
	assert.Equal(t, "redis", cfg.Journal.Driver)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, "orchestrator", cfg.Kafka.InboundTopic)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
services:
  inventory:
    base_url: http://from-file:8082
`)
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("INVENTORY_BASE_URL", "http://from-env:8082")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "http://from-env:8082", cfg.Services.Inventory.BaseURL)
	assert.Equal(t, 9090, cfg.App.HTTPPort)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"fan out limit":    "saga:\n  fan_out_limit: 0\n",
		"concurrency":      "kafka:\n  consumer_concurrency: 0\n",
		"journal driver":   "journal:\n  driver: cassandra\n",
		"discovery":        "discovery:\n  driver: consul\n",
		"malformed yaml":   "kafka: [",
		"negative retries": "saga:\n  check_retries: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
