package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, 5*time.Second, cfg.EtcdTimeout)
	assert.Equal(t, "/taskchain", cfg.KeyPrefix)
	assert.Equal(t, RecordSourceEtcd, cfg.RecordSource)
	assert.Equal(t, PushTransportHTTP, cfg.Push.Transport)
	assert.Equal(t, 10*time.Second, cfg.Push.Timeout)
	assert.Equal(t, 168*time.Hour, cfg.DispatchLogTTL)
	assert.Equal(t, domain.DefaultDeliveryHints(), cfg.DeliveryHints)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
record_source: kafka
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: records
push:
  transport: exec
  command: ./send-push
delivery_hints:
  channel_id: custom_channel
`), 0o600))
	t.Setenv("AUDIT_SCHEDULE", "*/30 * * * * *")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, RecordSourceKafka, cfg.RecordSource)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "records", cfg.Kafka.Topic)
	assert.Equal(t, "./send-push", cfg.Push.Command)
	assert.Equal(t, "custom_channel", cfg.DeliveryHints.ChannelID)
	assert.Equal(t, "high", cfg.DeliveryHints.Priority)
	assert.Equal(t, "*/30 * * * * *", cfg.AuditSchedule)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad cron", mutate: func(c *Config) { c.AuditSchedule = "every minute" }},
		{name: "five field cron", mutate: func(c *Config) { c.AuditSchedule = "*/5 * * * *" }},
		{name: "relative key prefix", mutate: func(c *Config) { c.KeyPrefix = "taskchain" }},
		{name: "unknown source", mutate: func(c *Config) { c.RecordSource = "pubsub" }},
		{name: "exec without command", mutate: func(c *Config) { c.Push.Transport = PushTransportExec; c.Push.Command = "" }},
		{name: "kafka without brokers", mutate: func(c *Config) { c.RecordSource = RecordSourceKafka; c.Kafka.Brokers = nil }},
		{name: "otlp without endpoint", mutate: func(c *Config) { c.Tracing.Exporter = "otlp" }},
		{name: "unbounded cache ttl", mutate: func(c *Config) { c.Redis.CacheTTL = time.Hour }},
		{name: "zero cache ttl", mutate: func(c *Config) { c.Redis.CacheTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(t.TempDir())
			require.NoError(t, err)

			tt.mutate(cfg)

			assert.Error(t, cfg.Validate())
		})
	}
}
