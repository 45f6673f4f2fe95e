package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapmenu/pkg/utils"
)

func TestLocalLocker_Serialises(t *testing.T) {
	l := NewLocalLocker()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "payment:m1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocalLocker_KeysAreIndependent(t *testing.T) {
	l := NewLocalLocker()

	releaseA, err := l.Acquire(context.Background(), "a", time.Second)
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := l.Acquire(context.Background(), "b", time.Second)
	require.NoError(t, err)
	releaseB()
	releaseB()
}

func TestLocalLocker_ContextEndsWait(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, utils.ErrLockBusy)
}

func newRedisLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), srv
}

func TestRedisLocker_HoldsUntilReleased(t *testing.T) {
	l, srv := newRedisLocker(t)

	release, err := l.Acquire(context.Background(), "payment:m1", time.Second)
	require.NoError(t, err)
	assert.True(t, srv.Exists("zapmenu:lock:payment:m1"))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "payment:m1", time.Second)
	assert.ErrorIs(t, err, utils.ErrLockBusy)

	release()
	release()
	assert.False(t, srv.Exists("zapmenu:lock:payment:m1"))

	again, err := l.Acquire(context.Background(), "payment:m1", time.Second)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiresAfterTTL(t *testing.T) {
	l, srv := newRedisLocker(t)

	_, err := l.Acquire(context.Background(), "payment:m2", time.Second)
	require.NoError(t, err)

	srv.FastForward(2 * time.Second)
	release, err := l.Acquire(context.Background(), "payment:m2", time.Second)
	require.NoError(t, err)
	release()
}
