// Package scheduler runs the periodic refresh and summary jobs on cron
// specs. Overlapping runs of the same job are skipped.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/sentry"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Job is one named periodic task.
type Job struct {
	Name string
	// Spec is a standard five-field cron expression or a descriptor such as
	// "@every 5m" or "@hourly".
	Spec string
	// Timeout bounds one run; zero means no bound.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// EntryInfo describes a scheduled job.
type EntryInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

// Scheduler runs named cron jobs and reports their panics and failures.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logging.Logger
	reporter *sentry.Reporter

	mu   sync.Mutex
	jobs map[string]scheduled
}

type scheduled struct {
	job Job
	id  cron.EntryID
	fn  func()
}

// New builds a stopped scheduler evaluating specs in loc.
func New(loc *time.Location, logger logging.Logger, reporter *sentry.Reporter) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger = logger.Named("scheduler")
	if reporter == nil {
		reporter, _ = sentry.NewReporter(sentry.Config{}, logger)
	}
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		reporter: reporter,
		jobs:     make(map[string]scheduled),
	}
}

// LoadLocation resolves a zone name, "" meaning the local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "scheduler timezone").WithDetail(name)
	}
	return loc, nil
}

// Add registers job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return errors.New(errors.ErrCodeConflict, "job already registered").WithDetail(job.Name)
	}
	fn := s.wrap(job)
	id, err := s.cron.AddFunc(job.Spec, fn)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid cron spec").WithDetailf("%s: %q", job.Name, job.Spec)
	}
	s.jobs[job.Name] = scheduled{job: job, id: id, fn: fn}
	s.logger.Info("job scheduled", logging.String("job", job.Name), logging.String("spec", job.Spec))
	return nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		defer s.reporter.Recover("scheduler." + job.Name)

		ctx := s.ctx
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed",
				logging.String("job", job.Name),
				logging.Duration("duration", time.Since(start)),
				logging.Err(err))
			return
		}
		s.logger.Debug("job finished", logging.String("job", job.Name), logging.Duration("duration", time.Since(start)))
	}
}

// RunNow runs a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return errors.NotFound("no such job").WithDetail(name)
	}
	sj.fn()
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs, cancels the context of running jobs and waits for
// them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "waiting for running jobs")
	}
}

// Entries lists the scheduled jobs by name.
func (s *Scheduler) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		e := s.cron.Entry(sj.id)
		out = append(out, EntryInfo{Name: name, Spec: sj.job.Spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct{ l logging.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), logging.Err(err))...)
}

func kvFields(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logging.Any(key, kv[i+1]))
	}
	return fields
}
