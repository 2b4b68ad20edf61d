package config

import (
	"time"

	"github.com/coprede/sir-dashboard/internal/infrastructure/messaging/kafka"
)

const (
	DefaultServerAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultFeedKind    = "file"
	DefaultFeedPath    = "dashboard.json"
	DefaultFeedTimeout = 30 * time.Second

	DefaultRedisAddr = "localhost:6379"

	DefaultPostgresHost = "localhost"
	DefaultPostgresPort = 5432
	DefaultPostgresDB   = "sirdash"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultConsumerGroup = "sirdash-worker"

	DefaultRefreshSpec = "@every 5m"
	DefaultSummarySpec = "@hourly"
	DefaultTimezone    = "America/Sao_Paulo"
	DefaultLockTTL     = 2 * time.Minute

	DefaultNotifyInterval = time.Hour
	DefaultAlertInterval  = 30 * time.Minute

	DefaultMetricsNamespace = "sirdash"
)

// ApplyDefaults fills zero-value fields. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 20 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Feed.Kind == "" {
		cfg.Feed.Kind = DefaultFeedKind
	}
	if cfg.Feed.Kind == "file" && cfg.Feed.Path == "" {
		cfg.Feed.Path = DefaultFeedPath
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = DefaultFeedTimeout
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = DefaultPostgresDB
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	applyKafkaDefaults(&cfg.Kafka)

	if cfg.Scheduler.RefreshSpec == "" {
		cfg.Scheduler.RefreshSpec = DefaultRefreshSpec
	}
	if cfg.Scheduler.SummarySpec == "" {
		cfg.Scheduler.SummarySpec = DefaultSummarySpec
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = DefaultTimezone
	}
	if cfg.Scheduler.LockTTL == 0 {
		cfg.Scheduler.LockTTL = DefaultLockTTL
	}

	if cfg.Notify.MinInterval == 0 {
		cfg.Notify.MinInterval = DefaultNotifyInterval
	}
	if cfg.Notify.AlertInterval == 0 {
		cfg.Notify.AlertInterval = DefaultAlertInterval
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// applyKafkaDefaults propagates the shared brokers and credentials into the
// producer and consumer sections.
func applyKafkaDefaults(k *KafkaConfig) {
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.ReplicationFactor == 0 {
		k.ReplicationFactor = 1
	}

	if len(k.Producer.Brokers) == 0 {
		k.Producer.Brokers = k.Brokers
	}
	if k.Producer.Security == (kafka.SecurityConfig{}) {
		k.Producer.Security = k.SecurityConfig
	}

	if len(k.Consumer.Brokers) == 0 {
		k.Consumer.Brokers = k.Brokers
	}
	if k.Consumer.Security == (kafka.SecurityConfig{}) {
		k.Consumer.Security = k.SecurityConfig
	}
	if k.Consumer.GroupID == "" {
		k.Consumer.GroupID = DefaultConsumerGroup
	}
	if len(k.Consumer.Topics) == 0 {
		k.Consumer.Topics = []string{kafka.TopicCriticalTransitions}
	}
	if k.Consumer.Retry.DeadLetterTopic == "" {
		k.Consumer.Retry.DeadLetterTopic = kafka.TopicDeadLetter
	}
}
