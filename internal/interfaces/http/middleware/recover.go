package middleware

import (
	"fmt"
	"net/http"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/sentry"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Recover turns a handler panic into a JSON 500 and reports it.
func Recover(logger logging.Logger, reporter *sentry.Reporter, writeError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := errors.Internal("").WithCause(fmt.Errorf("panic: %v", v))
				logger.Error("handler panic", logging.String("path", r.URL.Path), logging.Any("panic", v))
				reporter.CaptureError(err, map[string]string{"component": "http", "route": r.URL.Path})
				writeError(w, r, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
