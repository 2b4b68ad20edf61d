// Package app assembles the dashboard components from configuration. The API
// server, the worker and the CLI all start from Open.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/coprede/sir-dashboard/internal/application/dashboard"
	"github.com/coprede/sir-dashboard/internal/application/notify"
	"github.com/coprede/sir-dashboard/internal/config"
	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/postgres"
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/postgres/repositories"
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

// refreshLockName is the redis mutex shared by every process that refreshes.
const refreshLockName = "refresh"

// Infrastructure holds the clients opened for one process. Optional backends
// that are disabled in the configuration stay nil.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Reporter  *sentry.Reporter
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Redis    *redis.Client
	Postgres *postgres.Connection
	MinIO    *minio.Client
	Objects  minio.ObjectStore
	Producer *kafka.Producer

	// Local is the in-process snapshot copy shared by the refresher and the
	// query service of this process.
	Local *dashboard.LocalStore

	closeOnce sync.Once
	closers   []func() error
}

// Open connects every enabled backend. On failure the clients opened so far
// are closed again.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{Config: cfg, Logger: logger, Local: dashboard.NewLocalStore()}
	if err := infra.open(ctx); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infrastructure) open(ctx context.Context) error {
	cfg := i.Config

	reporter, err := sentry.NewReporter(cfg.Sentry, i.Logger)
	if err != nil {
		return err
	}
	i.Reporter = reporter
	i.closers = append(i.closers, func() error { reporter.Flush(); return nil })

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(cfg.Metrics.CollectorConfig, i.Logger)
		if err != nil {
			return err
		}
		i.Collector = collector
		i.Metrics = prometheus.NewAppMetrics(collector)
	}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(&cfg.Redis.RedisConfig, i.Logger)
		if err != nil {
			return err
		}
		i.Redis = rc
		i.closers = append(i.closers, rc.Close)
	}

	if cfg.Postgres.Enabled {
		if cfg.Postgres.AutoMigrate {
			if err := Migrate(cfg.Postgres, i.Logger); err != nil {
				return err
			}
		}
		conn, err := postgres.NewConnection(cfg.Postgres, i.Logger)
		if err != nil {
			return err
		}
		i.Postgres = conn
		i.closers = append(i.closers, conn.Close)
	}

	if cfg.MinIO.Enabled {
		mc, err := minio.NewClient(&cfg.MinIO.MinIOConfig, i.Logger)
		if err != nil {
			return err
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			mc.Close()
			return err
		}
		i.MinIO = mc
		i.Objects = minio.NewObjectStore(mc, i.Logger)
		i.closers = append(i.closers, mc.Close)
	}

	if cfg.Kafka.Enabled {
		if cfg.Kafka.AutoCreateTopics {
			if err := i.ensureTopics(ctx); err != nil {
				return err
			}
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Producer, i.Logger)
		if err != nil {
			return err
		}
		i.Producer = producer
		i.closers = append(i.closers, producer.Close)
	}
	return nil
}

func (i *Infrastructure) ensureTopics(ctx context.Context) error {
	tm, err := kafka.NewTopicManager(i.Config.Kafka.Brokers, i.Logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(i.Config.Kafka.ReplicationFactor))
}

// Close releases the clients in reverse opening order. It is safe to call
// more than once.
func (i *Infrastructure) Close() {
	i.closeOnce.Do(func() {
		for n := len(i.closers) - 1; n >= 0; n-- {
			if err := i.closers[n](); err != nil {
				i.Logger.Warn("close failed", logging.Err(err))
			}
		}
	})
}

// Source builds the configured feed source.
func (i *Infrastructure) Source() (feed.Source, error) {
	var objects feed.ObjectDownloader
	if i.Objects != nil {
		objects = i.Objects
	}
	return feed.NewSource(i.Config.Feed, objects, i.Logger)
}

func (i *Infrastructure) history() *repositories.HistoryRepo {
	if i.Postgres == nil {
		return nil
	}
	return repositories.NewHistoryRepo(i.Postgres, i.Logger)
}

// NewRefresher wires a Refresher to every enabled sink.
func (i *Infrastructure) NewRefresher() (*dashboard.Refresher, error) {
	src, err := i.Source()
	if err != nil {
		return nil, err
	}
	deps := dashboard.RefresherDeps{
		Source:   src,
		Local:    i.Local,
		Metrics:  i.Metrics,
		Reporter: i.Reporter,
		Logger:   i.Logger,
	}
	if i.Redis != nil {
		deps.Store = redis.NewSnapshotStore(i.Redis, i.Logger)
		deps.Lock = redis.NewMutex(i.Redis, refreshLockName, i.Config.Scheduler.LockTTL, i.Logger)
	}
	if i.Objects != nil {
		deps.Archive = minio.NewSnapshotArchive(i.Objects, i.Config.MinIO.ArchivePrefix, i.Logger)
	}
	if repo := i.history(); repo != nil {
		deps.History = repo
		deps.Transitions = repo
	}
	if i.Producer != nil {
		deps.Alerts = kafka.NewAlertPublisher(i.Producer, i.Config.Kafka.Producer.ClientID, i.Logger)
	}
	return dashboard.NewRefresher(deps)
}

// NewQueryService wires the read side to the shared store and history.
func (i *Infrastructure) NewQueryService() *dashboard.QueryService {
	deps := dashboard.QueryDeps{
		Local:    i.Local,
		Policies: i.Config.Policies(),
		Metrics:  i.Metrics,
		Logger:   i.Logger,
	}
	if i.Redis != nil {
		deps.Store = redis.NewSnapshotStore(i.Redis, i.Logger)
	}
	if repo := i.history(); repo != nil {
		deps.History = repo
		deps.Transitions = repo
	}
	return dashboard.NewQueryService(deps)
}

// Throttles returns redis-backed throttles when redis is enabled, so that
// replicas share the notification window, and in-process ones otherwise.
func (i *Infrastructure) Throttles(interval time.Duration) notify.ThrottleFactory {
	if i.Redis == nil {
		return notify.MemoryThrottles(interval)
	}
	return func(name string) notify.Throttle {
		return redis.NewThrottle(i.Redis, "notify:"+name, interval)
	}
}

// Notifier builds the WhatsApp client. It fails when notifications are
// disabled.
func (i *Infrastructure) Notifier() (*whatsapp.Client, error) {
	if !i.Config.Notify.Enabled {
		return nil, errors.New(errors.ErrCodeNotifyDisabled, "notifications are disabled")
	}
	return whatsapp.NewClient(i.Config.Notify.WhatsApp, i.Logger)
}

// Location resolves the configured scheduler timezone, which is also the
// zone message timestamps are rendered in.
func (i *Infrastructure) Location() *time.Location {
	loc, err := time.LoadLocation(i.Config.Scheduler.Timezone)
	if err != nil {
		i.Logger.Warn("unknown timezone, using local time", logging.String("timezone", i.Config.Scheduler.Timezone))
		return time.Local
	}
	return loc
}

// NewSummaryService wires the periodic WhatsApp summary.
func (i *Infrastructure) NewSummaryService(snapshots notify.SnapshotReader) (*notify.SummaryService, error) {
	notifier, err := i.Notifier()
	if err != nil {
		return nil, err
	}
	cfg := i.Config.Notify
	return notify.NewSummaryService(snapshots, notifier, i.Throttles(cfg.MinInterval)("summary"),
		notify.SummaryConfig{Recipient: cfg.WhatsApp.Recipient, DashboardURL: cfg.DashboardURL},
		i.Logger,
		notify.WithLocation(i.Location()), notify.WithMetrics(i.Metrics), notify.WithReporter(i.Reporter),
	), nil
}

// NewAlertRelay wires the per-cluster critical alerts.
func (i *Infrastructure) NewAlertRelay() (*notify.AlertRelay, error) {
	notifier, err := i.Notifier()
	if err != nil {
		return nil, err
	}
	cfg := i.Config.Notify
	return notify.NewAlertRelay(notifier, i.Throttles(cfg.AlertInterval), cfg.WhatsApp.Recipient, i.Logger,
		notify.WithLocation(i.Location()), notify.WithMetrics(i.Metrics), notify.WithReporter(i.Reporter),
	), nil
}

// Policies exposes the configured dataset policies.
func (i *Infrastructure) Policies() map[incident.DatasetName]incident.DatasetPolicy {
	return i.Config.Policies()
}
