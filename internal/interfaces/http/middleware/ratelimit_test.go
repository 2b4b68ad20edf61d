package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coprede/sir-dashboard/internal/interfaces/http/handlers"
)

func TestRateLimit(t *testing.T) {
	h := RateLimit(NewKeyedLimiter(RateLimitConfig{Every: time.Hour, Burst: 1}), handlers.WriteError)(okHandler())

	req := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1:5000").Code)

	w := req("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "COMMON_014")

	assert.Equal(t, http.StatusOK, req("10.0.0.2:5000").Code, "limits are per client")
}
