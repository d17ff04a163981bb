// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Record sources.
const (
	RecordSourceEtcd  = "etcd"
	RecordSourceKafka = "kafka"
)

// Push transports.
const (
	PushTransportHTTP = "http"
	PushTransportExec = "exec"
)

// Config holds all configuration for the dispatcher.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	EtcdEndpoints     []string      `mapstructure:"etcd_endpoints" validate:"required,min=1,dive,required"`
	EtcdTimeout       time.Duration `mapstructure:"etcd_timeout" validate:"gt=0"`
	KeyPrefix         string        `mapstructure:"key_prefix" validate:"required,startswith=/"`
	HttpListenAddr    string        `mapstructure:"http_listen_addr" validate:"required"`
	GrpcListenAddr    string        `mapstructure:"grpc_listen_addr" validate:"required"`
	LeaderElectionTTL time.Duration `mapstructure:"leader_election_ttl" validate:"gte=1s"`
	RecordSource      string        `mapstructure:"record_source" validate:"oneof=etcd kafka"`
	AuditSchedule     string        `mapstructure:"audit_schedule" validate:"required,cron"`
	DispatchLogTTL    time.Duration `mapstructure:"dispatch_log_ttl" validate:"gte=1m"`

	Kafka         KafkaConfig          `mapstructure:"kafka"`
	Redis         RedisConfig          `mapstructure:"redis"`
	Push          PushConfig           `mapstructure:"push"`
	DeliveryHints domain.DeliveryHints `mapstructure:"delivery_hints"`
	Tracing       TracingConfig        `mapstructure:"tracing"`
}

// KafkaConfig configures the Kafka record source.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig configures the recipient lookup cache. An empty Addr disables it.
// CacheTTL bounds how long a token changed outside SaveProfile can still be served.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gt=0,lte=10m"`
}

// PushConfig configures the delivery transport.
type PushConfig struct {
	Transport string        `mapstructure:"transport" validate:"oneof=http exec"`
	Endpoint  string        `mapstructure:"endpoint" validate:"required_if=Transport http"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Command   string        `mapstructure:"command" validate:"required_if=Transport exec"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter     string `mapstructure:"exporter" validate:"oneof=stdout otlp none"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" validate:"required_if=Exporter otlp"`
	ServiceName  string `mapstructure:"service_name" validate:"required"`
}

// Load loads configuration from file and environment variables.
// Nested keys map to environment variables with "." replaced by "_", e.g. PUSH_ENDPOINT.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults and env vars are enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	hints := domain.DefaultDeliveryHints()

	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("key_prefix", "/taskchain")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("grpc_listen_addr", ":50051")
	v.SetDefault("leader_election_ttl", "10s")
	v.SetDefault("record_source", RecordSourceEtcd)
	v.SetDefault("audit_schedule", "0 */5 * * * *")
	v.SetDefault("dispatch_log_ttl", "168h")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "taskchain-dispatcher")
	v.SetDefault("kafka.topic", "taskchain.records.created")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "30s")

	v.SetDefault("push.transport", PushTransportHTTP)
	v.SetDefault("push.endpoint", "http://localhost:8090/v1/messages:send")
	v.SetDefault("push.timeout", "10s")

	v.SetDefault("delivery_hints.priority", hints.Priority)
	v.SetDefault("delivery_hints.channel_id", hints.ChannelID)
	v.SetDefault("delivery_hints.sound", hints.Sound)
	v.SetDefault("delivery_hints.color", hints.Color)
	v.SetDefault("delivery_hints.icon", hints.Icon)
	v.SetDefault("delivery_hints.badge", hints.Badge)

	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.service_name", "taskchain-dispatcher")
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	validate := NewValidator()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(details, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RecordSource == RecordSourceKafka && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("invalid configuration: kafka record source needs kafka.brokers and kafka.topic")
	}
	return nil
}

// NewValidator returns a validator with the custom "cron" and "duration" rules registered.
func NewValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		_, err := parser.Parse(fl.Field().String())
		return err == nil
	})

	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})

	return validate
}
