// Package sentry reports refresh and notification failures to Sentry.
package sentry

import (
	"context"
	stderrors "errors"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

const flushTimeout = 2 * time.Second

var apiKeyPattern = regexp.MustCompile(`(?i)(apikey[=:]\s*|api[_-]?key[=:]\s*)([A-Za-z0-9_-]{6,})`)

// Config is read from the "sentry" section. An empty DSN disables reporting.
type Config struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	Release     string  `mapstructure:"release"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Debug       bool    `mapstructure:"debug"`
}

// Reporter captures errors on its own hub. The zero value and a nil
// *Reporter are both valid and report nothing.
type Reporter struct {
	hub    *sentry.Hub
	logger logging.Logger
}

// NewReporter returns a disabled reporter when cfg.DSN is empty.
func NewReporter(cfg Config, logger logging.Logger) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{logger: logger}, nil
	}
	if cfg.SampleRate <= 0 || cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
	return newReporter(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		IgnoreErrors:     []string{"context canceled"},
	}, logger)
}

func newReporter(opts sentry.ClientOptions, logger logging.Logger) (*Reporter, error) {
	userBefore := opts.BeforeSend
	opts.BeforeSend = func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
		scrubEvent(event)
		if userBefore != nil {
			return userBefore(event, hint)
		}
		return event
	}
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "sentry client")
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope()), logger: logger}, nil
}

// Enabled reports whether events are actually sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureError sends err with the given tags. Context cancellation is never
// reported. AppError codes are attached as the "code" tag.
func (r *Reporter) CaptureError(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	if stderrors.Is(err, context.Canceled) {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if code := errors.GetCode(err); code != errors.CodeUnknown {
			scope.SetTag("code", string(code))
		}
		r.hub.CaptureException(err)
	})
}

// Recover captures a panic from a worker goroutine and swallows it.
func (r *Reporter) Recover(component string) {
	v := recover()
	if v == nil {
		return
	}
	if r != nil && r.logger != nil {
		r.logger.Error("recovered panic", logging.String("component", component), logging.Any("panic", v))
	}
	if r.Enabled() {
		r.hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", component)
			r.hub.Recover(v)
		})
	}
}

// Flush waits for buffered events to be delivered.
func (r *Reporter) Flush() {
	if r.Enabled() {
		r.hub.Flush(flushTimeout)
	}
}

func scrubPII(s string) string {
	return apiKeyPattern.ReplaceAllString(s, "${1}[REDACTED]")
}

func scrubEvent(event *sentry.Event) {
	event.Message = scrubPII(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
	}
	for k, v := range event.Tags {
		event.Tags[k] = scrubPII(v)
	}
}
