package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/application/dashboard"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/testutil"
	apperrors "github.com/coprede/sir-dashboard/pkg/errors"
)

func TestAdd_RejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(time.UTC, logging.NewNopLogger(), nil)
	noop := func(context.Context) error { return nil }

	err := s.Add(Job{Name: "refresh", Spec: "every five minutes", Run: noop})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidConfig))

	require.NoError(t, s.Add(Job{Name: "refresh", Spec: "@every 5m", Run: noop}))
	err = s.Add(Job{Name: "refresh", Spec: "@hourly", Run: noop})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
}

func TestEntries(t *testing.T) {
	s := New(time.UTC, logging.NewNopLogger(), nil)
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add(Job{Name: "summary", Spec: "@hourly", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "refresh", Spec: "@every 5m", Run: noop}))

	s.Start()
	defer s.Stop(context.Background())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "refresh", entries[0].Name)
	assert.Equal(t, "summary", entries[1].Name)
	assert.False(t, entries[0].Next.IsZero())
}

func TestRunNow(t *testing.T) {
	log := testutil.NewMockLogger()
	s := New(time.UTC, log, nil)

	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "refresh", Spec: "@hourly", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))
	require.NoError(t, s.Add(Job{Name: "broken", Spec: "@hourly", Run: func(context.Context) error {
		return errors.New("source down")
	}}))

	require.NoError(t, s.RunNow("refresh"))
	assert.Equal(t, int32(1), runs.Load())

	require.NoError(t, s.RunNow("broken"))
	msg, ok := log.Find("error", "job failed")
	require.True(t, ok)
	assert.Equal(t, "broken", msg.Field("job"))

	assert.True(t, apperrors.IsNotFound(s.RunNow("missing")))
}

func TestJobPanicIsRecovered(t *testing.T) {
	log := testutil.NewMockLogger()
	s := New(time.UTC, log, nil)
	require.NoError(t, s.Add(Job{Name: "summary", Spec: "@hourly", Run: func(context.Context) error {
		panic("nil snapshot")
	}}))

	assert.NotPanics(t, func() { _ = s.RunNow("summary") })
	msg, ok := log.Find("error", "recovered panic")
	require.True(t, ok)
	assert.Equal(t, "scheduler.summary", msg.Field("component"))
}

func TestJobTimeout(t *testing.T) {
	s := New(time.UTC, logging.NewNopLogger(), nil)
	var deadline atomic.Bool
	require.NoError(t, s.Add(Job{Name: "refresh", Spec: "@hourly", Timeout: time.Second, Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadline.Store(ok)
		return nil
	}}))
	require.NoError(t, s.RunNow("refresh"))
	assert.True(t, deadline.Load())
}

func TestScheduledRunAndStop(t *testing.T) {
	s := New(time.UTC, logging.NewNopLogger(), nil)
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool
	require.NoError(t, s.Add(Job{Name: "refresh", Spec: "@every 1s", Run: func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}}))

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, cancelled.Load())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Mars/Olympus")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidConfig))
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 1, 42, "skipped", "dangling"})
	assert.Len(t, fields, 1)
}

type refresherFunc func(ctx context.Context) (*dashboard.RefreshResult, error)

func (f refresherFunc) Refresh(ctx context.Context) (*dashboard.RefreshResult, error) { return f(ctx) }

type summaryFunc func(ctx context.Context, force bool) (bool, error)

func (f summaryFunc) Send(ctx context.Context, force bool) (bool, error) { return f(ctx, force) }

func TestRefreshJob(t *testing.T) {
	log := testutil.NewMockLogger()

	job := RefreshJob("@every 5m", time.Minute, refresherFunc(func(context.Context) (*dashboard.RefreshResult, error) {
		return nil, apperrors.New(apperrors.ErrCodeRefreshInFlight, "refresh in flight")
	}), log)
	assert.Equal(t, JobRefresh, job.Name)
	assert.NoError(t, job.Run(context.Background()))

	job = RefreshJob("@every 5m", 0, refresherFunc(func(context.Context) (*dashboard.RefreshResult, error) {
		return &dashboard.RefreshResult{SinkErrors: map[string]string{"archive": "bucket missing"}}, nil
	}), log)
	assert.NoError(t, job.Run(context.Background()))
	assert.True(t, log.HasMessage("warn", "refresh completed with sink failures"))

	job = RefreshJob("@every 5m", 0, refresherFunc(func(context.Context) (*dashboard.RefreshResult, error) {
		return nil, errors.New("feed unreachable")
	}), log)
	assert.Error(t, job.Run(context.Background()))
}

func TestSummaryJob(t *testing.T) {
	var forced []bool
	job := SummaryJob("@hourly", summaryFunc(func(_ context.Context, force bool) (bool, error) {
		forced = append(forced, force)
		return true, nil
	}))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []bool{false}, forced)
}
