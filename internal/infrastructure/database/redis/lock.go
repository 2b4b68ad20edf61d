package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

var ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held by this owner")

var mutexUnlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var mutexExtendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Mutex is a single-owner lock held in Redis. It guards the refresh so that
// the worker and an API-triggered refresh never run at the same time.
type Mutex struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
	logger logging.Logger

	mu             sync.Mutex
	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

// NewMutex returns a lock named name. The lock expires after ttl unless the
// owner is still alive, in which case a watchdog keeps extending it.
func NewMutex(client *Client, name string, ttl time.Duration, log logging.Logger) *Mutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Mutex{
		client: client,
		key:    client.Key("lock:" + name),
		value:  uuid.NewString(),
		ttl:    ttl,
		logger: log,
	}
}

// TryLock acquires the lock without waiting.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	rdb, err := m.client.Universal()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, m.key, m.value, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "acquire lock")
	}
	if ok {
		m.startWatchdog()
	}
	return ok, nil
}

// Unlock releases the lock if this Mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	m.stopWatchdog()
	rdb, err := m.client.Universal()
	if err != nil {
		return err
	}
	res, err := mutexUnlockScript.Run(ctx, rdb, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "release lock")
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry out by ttl.
func (m *Mutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	rdb, err := m.client.Universal()
	if err != nil {
		return false, err
	}
	res, err := mutexExtendScript.Run(ctx, rdb, []string{m.key}, m.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (m *Mutex) startWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	m.watchdogCancel = cancel
	m.watchdogDone = make(chan struct{})
	go runWatchdog(ctx, m.Extend, m.ttl/3, m.ttl, m.logger, m.watchdogDone)
}

func (m *Mutex) stopWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchdogCancel != nil {
		m.watchdogCancel()
		<-m.watchdogDone
		m.watchdogCancel = nil
	}
}

func runWatchdog(ctx context.Context, extend func(context.Context, time.Duration) (bool, error), interval, ttl time.Duration, log logging.Logger, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := extend(ctx, ttl)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("Watchdog failed to extend lock", logging.Err(err))
				}
				return
			}
			if !ok {
				log.Warn("Watchdog lost lock")
				return
			}
		}
	}
}

// Throttle admits at most one event per interval across all replicas.
type Throttle struct {
	client   *Client
	key      string
	interval time.Duration
}

func NewThrottle(client *Client, name string, interval time.Duration) *Throttle {
	return &Throttle{client: client, key: client.Key("throttle:" + name), interval: interval}
}

// Allow reports whether the caller may proceed and, if so, starts a new
// interval at now.
func (t *Throttle) Allow(ctx context.Context, now time.Time) (bool, error) {
	rdb, err := t.client.Universal()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, t.key, now.UTC().Format(time.RFC3339), t.interval).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "check throttle")
	}
	return ok, nil
}

// Reset clears the current interval, e.g. after a failed delivery.
func (t *Throttle) Reset(ctx context.Context) error {
	rdb, err := t.client.Universal()
	if err != nil {
		return err
	}
	return rdb.Del(ctx, t.key).Err()
}
