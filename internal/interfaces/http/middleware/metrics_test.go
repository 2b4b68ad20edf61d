package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/handlers"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Metrics(prometheus.NewAppMetrics(collector)))
	r.Get("/datasets/{dataset}/board", okHandler().ServeHTTP)

	for _, ds := range []string{"RAL", "REC"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/datasets/"+ds+"/board", nil))
	}

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/datasets/{dataset}/board",status_code="200"} 2`)
}

func TestMetrics_NilIsPassthrough(t *testing.T) {
	h := okHandler()
	w := httptest.NewRecorder()
	Metrics(nil)(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecover(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	w := httptest.NewRecorder()
	Recover(logging.NewNopLogger(), nil, handlers.WriteError)(panicking).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"COMMON_001"`)
	assert.NotContains(t, w.Body.String(), "boom")
}
