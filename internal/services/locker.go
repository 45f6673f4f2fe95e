package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"zapmenu/pkg/utils"
)

// Locker serialises payment writes for one merchant across goroutines and,
// with Redis, across instances.
type Locker interface {
	// Acquire blocks until the key is free, the wait budget is spent or ctx
	// ends. The returned release func is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

const (
	lockWait       = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

type redisLocker struct {
	rs     *redsync.Redsync
	prefix string
}

func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{rs: redsync.New(goredis.NewPool(client)), prefix: "zapmenu:lock:"}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	mutex := l.rs.NewMutex(
		l.prefix+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(int(lockWait/lockRetryDelay)),
		redsync.WithRetryDelay(lockRetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		log.Debug().Err(err).Str("lock", mutex.Name()).Msg("lock not acquired")
		return nil, fmt.Errorf("%w: %v", utils.ErrLockBusy, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := mutex.UnlockContext(context.Background()); err != nil {
				log.Warn().Err(err).Str("lock", mutex.Name()).Msg("release lock failed")
			}
		})
	}, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalLocker is used when no Redis is configured. ttl is ignored.
func NewLocalLocker() Locker {
	return &localLocker{held: make(map[string]chan struct{})}
}

func (l *localLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	timer := time.NewTimer(lockWait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, utils.ErrLockBusy
		case <-timer.C:
			return nil, utils.ErrLockBusy
		}
	}
}
