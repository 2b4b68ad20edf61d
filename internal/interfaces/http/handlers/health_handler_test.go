package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/pkg/types/common"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("v1.2.3")
	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := CheckFunc{ComponentName: "redis", Fn: func(context.Context) error { return nil }}
	down := CheckFunc{ComponentName: "postgres", Fn: func(context.Context) error { return stderrors.New("refused") }}

	w := httptest.NewRecorder()
	NewHealthHandler("dev", ok).Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	NewHealthHandler("dev", ok, down).Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, common.HealthDown, resp.Status)
	require.Len(t, resp.Components, 2)
	assert.Equal(t, "redis", resp.Components[0].Name)
	assert.Equal(t, common.HealthUp, resp.Components[0].Status)
	assert.Equal(t, "refused", resp.Components[1].Message)
}
