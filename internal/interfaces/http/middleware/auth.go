package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// TokenAuth accepts requests carrying one of a fixed set of bearer tokens.
type TokenAuth struct {
	tokens [][]byte
	logger logging.Logger
}

// NewTokenAuth returns nil when no non-empty token is configured, which
// leaves the API open.
func NewTokenAuth(tokens []string, logger logging.Logger) *TokenAuth {
	a := &TokenAuth{logger: logger}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			a.tokens = append(a.tokens, []byte(t))
		}
	}
	if len(a.tokens) == 0 {
		return nil
	}
	if a.logger == nil {
		a.logger = logging.NewNopLogger()
	}
	return a
}

// Authenticate rejects requests without a valid token with 401. CORS
// preflight requests pass through.
func (a *TokenAuth) Authenticate(writeError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearerToken(r)
			if token == "" || !a.valid(token) {
				a.logger.Debug("request rejected", logging.String("path", r.URL.Path), logging.Bool("token_present", token != ""))
				w.Header().Set("WWW-Authenticate", `Bearer realm="sirdash"`)
				writeError(w, r, errors.New(errors.ErrCodeUnauthorized, ""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *TokenAuth) valid(token string) bool {
	got := []byte(token)
	ok := 0
	for _, t := range a.tokens {
		ok |= subtle.ConstantTimeCompare(got, t)
	}
	return ok == 1
}

func extractBearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
