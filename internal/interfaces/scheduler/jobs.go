package scheduler

import (
	"context"
	"time"

	"github.com/coprede/sir-dashboard/internal/application/dashboard"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

const (
	JobRefresh = "refresh"
	JobSummary = "summary"
)

// Refresher runs one refresh.
type Refresher interface {
	Refresh(ctx context.Context) (*dashboard.RefreshResult, error)
}

// SummarySender sends the periodic summary when its throttle allows.
type SummarySender interface {
	Send(ctx context.Context, force bool) (bool, error)
}

// RefreshJob refreshes the snapshot. A refresh already running in another
// process is not a failure.
func RefreshJob(spec string, timeout time.Duration, r Refresher, logger logging.Logger) Job {
	return Job{
		Name:    JobRefresh,
		Spec:    spec,
		Timeout: timeout,
		Run: func(ctx context.Context) error {
			res, err := r.Refresh(ctx)
			if errors.IsCode(err, errors.ErrCodeRefreshInFlight) {
				logger.Debug("refresh skipped, another replica holds the lock")
				return nil
			}
			if err != nil {
				return err
			}
			if len(res.SinkErrors) > 0 {
				logger.Warn("refresh completed with sink failures", logging.Any("sinks", res.SinkErrors))
			}
			return nil
		},
	}
}

// SummaryJob sends the WhatsApp summary.
func SummaryJob(spec string, s SummarySender) Job {
	return Job{
		Name: JobSummary,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := s.Send(ctx, false)
			return err
		},
	}
}
