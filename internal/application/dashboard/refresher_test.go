package dashboard

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/feed"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/internal/testutil"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

var rawDoc = []byte(`{"updatedAt":"12/01/2026 11:15"}`)

func fixtureSource() *stubSource {
	return &stubSource{name: "fixture", next: func() (*feed.Fetched, error) {
		return &feed.Fetched{Snapshot: testutil.SampleSnapshot(), Raw: rawDoc}, nil
	}}
}

func rjoRaised() []incident.CriticalTransition {
	return []incident.CriticalTransition{{
		Dataset: incident.DatasetRAL, Cluster: "RJO", Critical: true, Count: 2,
		SnapshotID: "snap-fixture", At: testutil.FixtureTime,
	}}
}

func TestNewRefresher_RequiresSource(t *testing.T) {
	_, err := NewRefresher(RefresherDeps{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestRefresh_FansOutAndDetectsTransitionsOnce(t *testing.T) {
	store := &memoryStore{}
	archive := &MockArchiver{}
	history := &MockHistory{}
	transitions := &MockTransitionLog{}
	alerts := &MockAlertSink{}
	log := testutil.NewMockLogger()

	archive.On("Archive", mock.Anything, mock.AnythingOfType("*incident.Snapshot"), rawDoc).Return("snapshots/2026/01/12/snap-fixture.json", nil)
	history.On("Save", mock.Anything, mock.AnythingOfType("incident.SnapshotSummary")).Return(nil)
	transitions.On("RecordTransitions", mock.Anything, rjoRaised()).Return(nil).Once()
	alerts.On("PublishTransitions", mock.Anything, mock.Anything).Return(nil)
	alerts.On("PublishRefreshed", mock.Anything, mock.AnythingOfType("incident.SnapshotSummary")).Return(nil)

	r, err := NewRefresher(RefresherDeps{
		Source: fixtureSource(), Store: store, Archive: archive, History: history,
		Transitions: transitions, Alerts: alerts, Logger: log,
	})
	require.NoError(t, err)

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-fixture", res.SnapshotID)
	assert.Equal(t, rjoRaised(), res.Transitions)
	assert.Equal(t, "snapshots/2026/01/12/snap-fixture.json", res.ArchiveKey)
	assert.Empty(t, res.SinkErrors)
	assert.True(t, log.HasMessage("info", "snapshot refreshed"))

	_, _, ok := r.Local().Get()
	assert.True(t, ok)
	stored, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-fixture", stored.ID)

	res, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Transitions, "unchanged feed raises nothing")

	archive.AssertNumberOfCalls(t, "Archive", 2)
	history.AssertNumberOfCalls(t, "Save", 2)
	transitions.AssertExpectations(t)
	alerts.AssertNumberOfCalls(t, "PublishTransitions", 2)
}

func TestRefresh_SinkFailuresDoNotFail(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	archive := &MockArchiver{}
	archive.On("Archive", mock.Anything, mock.Anything, mock.Anything).Return("", stderrors.New("bucket gone"))
	alerts := &MockAlertSink{}
	alerts.On("PublishTransitions", mock.Anything, mock.Anything).Return(stderrors.New("broker down"))

	r, err := NewRefresher(RefresherDeps{
		Source: fixtureSource(), Archive: archive, Alerts: alerts,
		Metrics: metrics, Logger: testutil.NewMockLogger(),
	})
	require.NoError(t, err)

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{SinkArchive: "bucket gone", SinkAlerts: "broker down"}, res.SinkErrors)
	alerts.AssertNotCalled(t, "PublishRefreshed", mock.Anything, mock.Anything)

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `test_sink_failures_total{sink="archive"} 1`)
	assert.Contains(t, body, `test_refresh_total{source="fixture",status="success"} 1`)
	assert.Contains(t, body, `test_critical_clusters{dataset="RAL"} 1`)
}

func TestRefresh_SourceFailure(t *testing.T) {
	store := &memoryStore{}
	src := &stubSource{name: "http", next: func() (*feed.Fetched, error) {
		return nil, errors.New(errors.ErrCodeFeedUnavailable, "upstream 503")
	}}
	log := testutil.NewMockLogger()
	r, err := NewRefresher(RefresherDeps{Source: src, Store: store, Logger: log})
	require.NoError(t, err)

	_, err = r.Refresh(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedUnavailable))
	assert.True(t, log.HasMessage("error", "refresh failed"))
	assert.Nil(t, store.snap)
}

func TestRefresh_StoreFailure(t *testing.T) {
	store := &memoryStore{saveErr: errors.New(errors.ErrCodeCacheError, "redis down")}
	r, err := NewRefresher(RefresherDeps{Source: fixtureSource(), Store: store})
	require.NoError(t, err)

	_, err = r.Refresh(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
	_, _, ok := r.Local().Get()
	assert.False(t, ok)
}

func TestRefresh_LockHeld(t *testing.T) {
	lock := &stubLock{held: true}
	r, err := NewRefresher(RefresherDeps{Source: fixtureSource(), Lock: lock})
	require.NoError(t, err)

	_, err = r.Refresh(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeRefreshInFlight))

	lock.held = false
	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, lock.unlocked)
}

func TestRefresh_LocalSummaryUsedWithoutStore(t *testing.T) {
	r, err := NewRefresher(RefresherDeps{Source: fixtureSource()})
	require.NoError(t, err)

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Transitions, 1)

	res, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Transitions)
}
