// Package dashboard orchestrates the feed refresh and serves the board
// queries on top of the latest snapshot.
package dashboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/feed"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/sentry"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Sink names, used in RefreshResult.SinkErrors and the sink failure metric.
const (
	SinkArchive = "archive"
	SinkHistory = "history"
	SinkAlerts  = "alerts"
)

// SnapshotStore keeps the latest snapshot shared by every replica.
type SnapshotStore interface {
	Save(ctx context.Context, snap *incident.Snapshot, summary incident.SnapshotSummary) error
	Latest(ctx context.Context) (*incident.Snapshot, error)
	LatestSummary(ctx context.Context) (*incident.SnapshotSummary, error)
}

// Archiver keeps the raw feed document of each refresh.
type Archiver interface {
	Archive(ctx context.Context, snap *incident.Snapshot, raw []byte) (string, error)
}

// AlertSink publishes refresh events.
type AlertSink interface {
	PublishTransitions(ctx context.Context, transitions []incident.CriticalTransition) error
	PublishRefreshed(ctx context.Context, summary incident.SnapshotSummary) error
}

// Locker serializes refreshes across replicas.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// RefreshResult reports one completed refresh.
type RefreshResult struct {
	SnapshotID  string                        `json:"snapshotId"`
	Source      string                        `json:"source"`
	FetchedAt   time.Time                     `json:"fetchedAt"`
	Summary     incident.SnapshotSummary      `json:"summary"`
	Transitions []incident.CriticalTransition `json:"transitions"`
	ArchiveKey  string                        `json:"archiveKey,omitempty"`
	SinkErrors  map[string]string             `json:"sinkErrors,omitempty"`
	Duration    time.Duration                 `json:"duration"`
}

// RefresherDeps wires a Refresher. Source is required; every other
// dependency is optional and skipped when nil.
type RefresherDeps struct {
	Source      feed.Source
	Store       SnapshotStore
	Local       *LocalStore
	Archive     Archiver
	History     incident.HistoryRepository
	Transitions incident.TransitionLog
	Alerts      AlertSink
	Lock        Locker
	Metrics     *prometheus.AppMetrics
	Reporter    *sentry.Reporter
	Logger      logging.Logger
	Now         func() time.Time
}

// Refresher replaces the latest snapshot with a fresh one from the source
// and fans the result out to the sinks.
type Refresher struct {
	deps RefresherDeps
}

// NewRefresher validates deps. Only the source is required.
func NewRefresher(deps RefresherDeps) (*Refresher, error) {
	if deps.Source == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "refresher needs a feed source")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Local == nil {
		deps.Local = NewLocalStore()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Logger = deps.Logger.Named("refresher")
	return &Refresher{deps: deps}, nil
}

// Local returns the in-process copy the refresher keeps up to date.
func (r *Refresher) Local() *LocalStore { return r.deps.Local }

// Refresh fetches, stores and fans out one snapshot. Source and store
// failures fail the refresh; sink failures are reported in the result.
func (r *Refresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	d := r.deps
	if d.Lock != nil {
		ok, err := d.Lock.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrCodeRefreshInFlight, "another refresh is running")
		}
		defer func() {
			if err := d.Lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				d.Logger.Warn("failed to release refresh lock", logging.Err(err))
			}
		}()
	}

	start := d.Now()
	result, err := r.refresh(ctx)
	elapsed := d.Now().Sub(start)
	prometheus.RecordRefresh(d.Metrics, d.Source.Name(), err, elapsed, d.Now())
	if err != nil {
		d.Reporter.CaptureError(err, map[string]string{"component": "refresher", "source": d.Source.Name()})
		d.Logger.Error("refresh failed", logging.String("source", d.Source.Name()), logging.Err(err))
		return nil, err
	}
	result.Duration = elapsed

	d.Logger.Info("snapshot refreshed",
		logging.String("snapshot_id", result.SnapshotID),
		logging.Int("transitions", len(result.Transitions)),
		logging.Int("sink_errors", len(result.SinkErrors)),
		logging.Duration("duration", elapsed))
	return result, nil
}

func (r *Refresher) refresh(ctx context.Context) (*RefreshResult, error) {
	d := r.deps
	fetched, err := d.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	snap := fetched.Snapshot
	summary := incident.Summarize(snap)
	transitions := incident.DiffCritical(r.previousSummary(ctx), summary)

	if d.Store != nil {
		if err := d.Store.Save(ctx, snap, summary); err != nil {
			return nil, err
		}
	}
	d.Local.Set(snap, summary)

	result := &RefreshResult{
		SnapshotID:  snap.ID,
		Source:      snap.Source,
		FetchedAt:   snap.FetchedAt,
		Summary:     summary,
		Transitions: transitions,
	}
	r.fanOut(ctx, fetched, result)
	r.recordMetrics(summary, transitions)
	return result, nil
}

// previousSummary prefers the shared store so that transitions are
// computed against what every replica served last.
func (r *Refresher) previousSummary(ctx context.Context) *incident.SnapshotSummary {
	d := r.deps
	if d.Store != nil {
		prev, err := d.Store.LatestSummary(ctx)
		if err == nil {
			return prev
		}
		if !errors.IsCode(err, errors.ErrCodeSnapshotMissing) {
			d.Logger.Warn("previous summary unavailable", logging.Err(err))
		}
	}
	if _, prev, ok := d.Local.Get(); ok {
		return &prev
	}
	return nil
}

func (r *Refresher) fanOut(ctx context.Context, fetched *feed.Fetched, result *RefreshResult) {
	d := r.deps
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	fail := func(sink string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if result.SinkErrors == nil {
			result.SinkErrors = make(map[string]string)
		}
		result.SinkErrors[sink] = err.Error()
		prometheus.RecordSinkFailure(d.Metrics, sink)
		d.Reporter.CaptureError(err, map[string]string{"component": "refresher", "sink": sink})
		d.Logger.Warn("sink failed", logging.String("sink", sink), logging.Err(err))
	}

	if d.Archive != nil {
		g.Go(func() error {
			key, err := d.Archive.Archive(ctx, fetched.Snapshot, fetched.Raw)
			if err != nil {
				fail(SinkArchive, err)
				return nil
			}
			mu.Lock()
			result.ArchiveKey = key
			mu.Unlock()
			return nil
		})
	}
	if d.History != nil || d.Transitions != nil {
		g.Go(func() error {
			if d.History != nil {
				if err := d.History.Save(ctx, result.Summary); err != nil {
					fail(SinkHistory, err)
					return nil
				}
			}
			if d.Transitions != nil && len(result.Transitions) > 0 {
				if err := d.Transitions.RecordTransitions(ctx, result.Transitions); err != nil {
					fail(SinkHistory, err)
				}
			}
			return nil
		})
	}
	if d.Alerts != nil {
		g.Go(func() error {
			if err := d.Alerts.PublishTransitions(ctx, result.Transitions); err != nil {
				fail(SinkAlerts, err)
				return nil
			}
			if err := d.Alerts.PublishRefreshed(ctx, result.Summary); err != nil {
				fail(SinkAlerts, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Refresher) recordMetrics(summary incident.SnapshotSummary, transitions []incident.CriticalTransition) {
	m := r.deps.Metrics
	for _, ds := range summary.Datasets {
		critical := 0
		for _, c := range ds.Clusters {
			if c.Critical {
				critical++
			}
		}
		prometheus.RecordSnapshot(m, string(ds.Name), ds.Items, critical)
	}
	for _, tr := range transitions {
		prometheus.RecordTransition(m, string(tr.Dataset), tr.Critical)
	}
}
