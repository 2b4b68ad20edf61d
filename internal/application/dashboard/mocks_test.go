package dashboard

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/feed"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

type stubSource struct {
	name string
	next func() (*feed.Fetched, error)
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) (*feed.Fetched, error) { return s.next() }

// memoryStore mimics the Redis snapshot store.
type memoryStore struct {
	mu      sync.Mutex
	snap    *incident.Snapshot
	summary *incident.SnapshotSummary
	saveErr error
	readErr error
}

func (s *memoryStore) Save(_ context.Context, snap *incident.Snapshot, summary incident.SnapshotSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap, s.summary = snap, &summary
	return nil
}

func (s *memoryStore) Latest(context.Context) (*incident.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.snap == nil {
		return nil, errors.ErrSnapshotMissing
	}
	return s.snap, nil
}

func (s *memoryStore) LatestSummary(context.Context) (*incident.SnapshotSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.summary == nil {
		return nil, errors.ErrSnapshotMissing
	}
	return s.summary, nil
}

type MockArchiver struct{ mock.Mock }

func (m *MockArchiver) Archive(ctx context.Context, snap *incident.Snapshot, raw []byte) (string, error) {
	args := m.Called(ctx, snap, raw)
	return args.String(0), args.Error(1)
}

type MockHistory struct{ mock.Mock }

func (m *MockHistory) Save(ctx context.Context, summary incident.SnapshotSummary) error {
	return m.Called(ctx, summary).Error(0)
}

func (m *MockHistory) ListRecent(ctx context.Context, opts ...incident.HistoryQueryOption) ([]incident.SnapshotSummary, error) {
	args := m.Called(ctx, incident.ApplyHistoryOptions(opts...))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]incident.SnapshotSummary), args.Error(1)
}

func (m *MockHistory) ClusterTrend(ctx context.Context, dataset incident.DatasetName, cluster string, opts ...incident.HistoryQueryOption) ([]incident.TrendPoint, error) {
	args := m.Called(ctx, dataset, cluster, incident.ApplyHistoryOptions(opts...))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]incident.TrendPoint), args.Error(1)
}

type MockTransitionLog struct{ mock.Mock }

func (m *MockTransitionLog) RecordTransitions(ctx context.Context, transitions []incident.CriticalTransition) error {
	return m.Called(ctx, transitions).Error(0)
}

func (m *MockTransitionLog) ListTransitions(ctx context.Context, datasets []incident.DatasetName, opts ...incident.HistoryQueryOption) ([]incident.CriticalTransition, error) {
	args := m.Called(ctx, datasets, incident.ApplyHistoryOptions(opts...))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]incident.CriticalTransition), args.Error(1)
}

type MockAlertSink struct{ mock.Mock }

func (m *MockAlertSink) PublishTransitions(ctx context.Context, transitions []incident.CriticalTransition) error {
	return m.Called(ctx, transitions).Error(0)
}

func (m *MockAlertSink) PublishRefreshed(ctx context.Context, summary incident.SnapshotSummary) error {
	return m.Called(ctx, summary).Error(0)
}

type stubLock struct {
	held     bool
	unlocked int
}

func (l *stubLock) TryLock(context.Context) (bool, error) { return !l.held, nil }

func (l *stubLock) Unlock(context.Context) error {
	l.unlocked++
	return nil
}
