// Package config defines the configuration of the SIR dashboard binaries.
// Infrastructure sections embed the component configs so that every
// setting has exactly one definition.
package config

import (
	"time"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/postgres"
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/redis"
	"github.com/coprede/sir-dashboard/internal/infrastructure/feed"
	"github.com/coprede/sir-dashboard/internal/infrastructure/messaging/kafka"
	"github.com/coprede/sir-dashboard/internal/infrastructure/messaging/whatsapp"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/sentry"
	"github.com/coprede/sir-dashboard/internal/infrastructure/storage/minio"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// APITokens, when set, are the bearer tokens accepted under /api/v1.
	APITokens []string `mapstructure:"api_tokens"`
	// EnableRefresh exposes POST /api/v1/refresh for deployments without a worker.
	EnableRefresh bool `mapstructure:"enable_refresh"`
}

// DatasetConfig overrides the built-in policy of one dataset.
type DatasetConfig struct {
	Filterable bool `mapstructure:"filterable"`
}

// RedisConfig points at the snapshot cache and throttle store.
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	redis.RedisConfig `mapstructure:",squash"`
}

// MinIOConfig points at the snapshot archive bucket.
type MinIOConfig struct {
	Enabled bool `mapstructure:"enabled"`

	minio.MinIOConfig `mapstructure:",squash"`
}

// KafkaConfig shares brokers and security between the producer and the
// consumer; ApplyDefaults copies them into both.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`

	kafka.SecurityConfig `mapstructure:",squash"`

	AutoCreateTopics  bool                 `mapstructure:"auto_create_topics"`
	ReplicationFactor int                  `mapstructure:"replication_factor"`
	Producer          kafka.ProducerConfig `mapstructure:"producer"`
	Consumer          kafka.ConsumerConfig `mapstructure:"consumer"`
}

// NotifyConfig controls the hourly summary and the per-cluster alerts.
type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MinInterval is the minimum gap between two summary messages.
	MinInterval time.Duration `mapstructure:"min_interval"`
	// AlertInterval is the minimum gap between two alerts for one cluster.
	AlertInterval time.Duration   `mapstructure:"alert_interval"`
	DashboardURL  string          `mapstructure:"dashboard_url"`
	WhatsApp      whatsapp.Config `mapstructure:"whatsapp"`
}

// SchedulerConfig holds the cron specs of the worker.
type SchedulerConfig struct {
	RefreshSpec string `mapstructure:"refresh_spec"`
	SummarySpec string `mapstructure:"summary_spec"`
	Timezone    string `mapstructure:"timezone"`
	// LockTTL bounds how long one refresh may hold the cluster-wide lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// MetricsConfig enables the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	prometheus.CollectorConfig `mapstructure:",squash"`
}

// Config is the root configuration of apiserver, worker and sirdash.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Log       logging.LogConfig        `mapstructure:"log"`
	Feed      feed.SourceConfig        `mapstructure:"feed"`
	Datasets  map[string]DatasetConfig `mapstructure:"datasets"`
	Redis     RedisConfig              `mapstructure:"redis"`
	Postgres  postgres.PostgresConfig  `mapstructure:"postgres"`
	MinIO     MinIOConfig              `mapstructure:"minio"`
	Kafka     KafkaConfig              `mapstructure:"kafka"`
	Notify    NotifyConfig             `mapstructure:"notify"`
	Scheduler SchedulerConfig          `mapstructure:"scheduler"`
	Sentry    sentry.Config            `mapstructure:"sentry"`
	Metrics   MetricsConfig            `mapstructure:"metrics"`
}

// Policies returns the dataset policies with configured overrides applied.
func (c *Config) Policies() map[incident.DatasetName]incident.DatasetPolicy {
	policies := incident.DefaultPolicies()
	for key, dc := range c.Datasets {
		name, ok := incident.ParseDatasetName(key)
		if !ok {
			continue
		}
		policies[name] = incident.DatasetPolicy{Name: name, Filterable: dc.Filterable}
	}
	return policies
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeInvalidConfig, "invalid configuration").WithDetailf(format, args...)
}

// Validate reports the first semantic problem in a defaulted Config.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return invalid("log.level %q is invalid", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	switch c.Feed.Kind {
	case "file":
		if c.Feed.Path == "" {
			return invalid("feed.path is required for a file source")
		}
	case "http":
		if c.Feed.URL == "" {
			return invalid("feed.url is required for an http source")
		}
	case "minio":
		if !c.MinIO.Enabled || c.Feed.Object == "" {
			return invalid("feed.object and minio.enabled are required for a minio source")
		}
	default:
		return invalid("feed.kind %q is invalid; expected file|http|minio", c.Feed.Kind)
	}
	for key := range c.Datasets {
		if _, ok := incident.ParseDatasetName(key); !ok {
			return invalid("datasets.%s is not a known dataset", key)
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" && len(c.Redis.SentinelAddrs) == 0 && len(c.Redis.ClusterAddrs) == 0 {
		return invalid("redis.addr is required when redis is enabled")
	}
	if c.Postgres.Enabled {
		if c.Postgres.Host == "" {
			return invalid("postgres.host is required when postgres is enabled")
		}
		if c.Postgres.Database == "" {
			return invalid("postgres.database is required when postgres is enabled")
		}
	}
	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return invalid("minio.endpoint is required when minio is enabled")
	}
	if c.Kafka.Enabled {
		if err := kafka.ValidateProducerConfig(c.Kafka.Producer); err != nil {
			return err
		}
		if err := kafka.ValidateConsumerConfig(c.Kafka.Consumer); err != nil {
			return err
		}
	}
	if c.Notify.Enabled {
		if c.Notify.WhatsApp.BaseURL == "" || c.Notify.WhatsApp.Instance == "" {
			return invalid("notify.whatsapp.base_url and notify.whatsapp.instance are required when notify is enabled")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return invalid("metrics.namespace is required when metrics are enabled")
	}
	return nil
}
