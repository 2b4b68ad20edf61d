// Package notify sends the periodic SIR summary and the per-cluster
// critical alerts through a messaging gateway.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/sentry"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// ChannelWhatsApp labels notification metrics.
const ChannelWhatsApp = "whatsapp"

// Notifier delivers a text message. An empty recipient selects the
// notifier's default.
type Notifier interface {
	Send(ctx context.Context, recipient, text string) error
}

// Throttle admits at most one event per interval.
type Throttle interface {
	Allow(ctx context.Context, now time.Time) (bool, error)
	Reset(ctx context.Context) error
}

// ThrottleFactory returns the throttle guarding one named event stream.
type ThrottleFactory func(name string) Throttle

// SnapshotReader returns the snapshot currently served.
type SnapshotReader interface {
	Latest(ctx context.Context) (*incident.Snapshot, error)
}

// MemoryThrottle is a single-process Throttle for deployments without Redis.
type MemoryThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewMemoryThrottle allows one send per interval.
func NewMemoryThrottle(interval time.Duration) *MemoryThrottle {
	return &MemoryThrottle{interval: interval}
}

func (t *MemoryThrottle) Allow(_ context.Context, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false, nil
	}
	t.last = now
	return true, nil
}

func (t *MemoryThrottle) Reset(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = time.Time{}
	return nil
}

// MemoryThrottles hands out one MemoryThrottle per name.
func MemoryThrottles(interval time.Duration) ThrottleFactory {
	var mu sync.Mutex
	throttles := make(map[string]*MemoryThrottle)
	return func(name string) Throttle {
		mu.Lock()
		defer mu.Unlock()
		t, ok := throttles[name]
		if !ok {
			t = NewMemoryThrottle(interval)
			throttles[name] = t
		}
		return t
	}
}

type options struct {
	now      func() time.Time
	location *time.Location
	metrics  *prometheus.AppMetrics
	reporter *sentry.Reporter
}

// Option configures the summary service and the alert relay.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLocation sets the zone message timestamps are rendered in.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.location = loc } }

func WithMetrics(m *prometheus.AppMetrics) Option { return func(o *options) { o.metrics = m } }

func WithReporter(r *sentry.Reporter) Option { return func(o *options) { o.reporter = r } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now, location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SummaryConfig configures SummaryService.
type SummaryConfig struct {
	Recipient    string
	DashboardURL string
}

// SummaryService sends the status summary of the latest snapshot.
type SummaryService struct {
	snapshots SnapshotReader
	notifier  Notifier
	throttle  Throttle
	cfg       SummaryConfig
	opts      options
	logger    logging.Logger
}

// NewSummaryService builds a SummaryService.
func NewSummaryService(snapshots SnapshotReader, notifier Notifier, throttle Throttle, cfg SummaryConfig, logger logging.Logger, opts ...Option) *SummaryService {
	return &SummaryService{
		snapshots: snapshots,
		notifier:  notifier,
		throttle:  throttle,
		cfg:       cfg,
		opts:      buildOptions(opts),
		logger:    logger.Named("summary"),
	}
}

// Preview renders the message without sending it.
func (s *SummaryService) Preview(ctx context.Context) (string, error) {
	snap, err := s.snapshots.Latest(ctx)
	if err != nil {
		return "", err
	}
	now := s.opts.now().In(s.opts.location)
	return BuildSummary(snap, now, s.cfg.DashboardURL).Render(), nil
}

// Send delivers the summary unless the throttle interval has not elapsed;
// force bypasses the throttle. It reports whether a message went out. A
// failed delivery reopens the interval so the next run retries.
func (s *SummaryService) Send(ctx context.Context, force bool) (bool, error) {
	text, err := s.Preview(ctx)
	if err != nil {
		return false, err
	}

	if !force {
		ok, err := s.throttle.Allow(ctx, s.opts.now())
		if err != nil {
			return false, err
		}
		if !ok {
			s.logger.Debug("summary throttled")
			return false, nil
		}
	}

	err = s.notifier.Send(ctx, s.cfg.Recipient, text)
	prometheus.RecordNotification(s.opts.metrics, ChannelWhatsApp, err)
	if err != nil {
		if rerr := s.throttle.Reset(ctx); rerr != nil {
			s.logger.Warn("failed to reset summary throttle", logging.Err(rerr))
		}
		s.opts.reporter.CaptureError(err, map[string]string{"component": "summary"})
		s.logger.Error("summary delivery failed", logging.Err(err))
		if errors.IsCode(err, errors.ErrCodeNotifyDeliveryFailed) {
			return false, err
		}
		return false, errors.Wrap(err, errors.ErrCodeNotifyDeliveryFailed, "send summary")
	}
	s.logger.Info("summary sent", logging.Int("chars", len(text)))
	return true, nil
}
