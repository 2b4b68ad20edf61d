package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coprede/sir-dashboard/pkg/errors"
)

// RateLimitConfig is a token bucket per client key.
type RateLimitConfig struct {
	// Every is the interval at which one request token is restored.
	Every time.Duration
	Burst int
}

// KeyedLimiter keeps one token bucket per client address.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      RateLimitConfig
}

func NewKeyedLimiter(cfg RateLimitConfig) *KeyedLimiter {
	if cfg.Every <= 0 {
		cfg.Every = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &KeyedLimiter{limiters: make(map[string]*rate.Limiter), cfg: cfg}
}

func (l *KeyedLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.cfg.Every), l.cfg.Burst)
		l.limiters[key] = lim
	}
	return lim
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the limit with 429 and a Retry-After
// header. It guards POST /refresh, which hits the upstream feed.
func RateLimit(l *KeyedLimiter, writeError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.limiter(clientKey(r)).Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				secs := int(delay.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, r, errors.New(errors.ErrCodeTooManyRequests, "").WithDetailf("retry in %ds", secs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
