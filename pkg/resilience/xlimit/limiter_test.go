package xlimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xshield/pkg/observability/xlog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRedisClient(t *testing.T) (redis.UniversalClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func newLocal(t *testing.T, opts ...LocalStoreOption) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// slidingLogStores 返回所有实现滑动日志语义的存储。
func slidingLogStores(t *testing.T) map[string]Store {
	client, _ := newRedisClient(t)
	rs, err := NewRedisStore(client)
	require.NoError(t, err)
	return map[string]Store{
		"Redis": rs,
		"Local": newLocal(t),
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	for name, store := range slidingLogStores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l, err := New(store, WithClock(clock.Now), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()
			start := clock.Now()

			for i := range 3 {
				d, err := l.Check(ctx, "user-1", 3, time.Minute)
				require.NoError(t, err)
				assert.True(t, d.Allowed, "request %d", i+1)
				assert.Equal(t, 3-i-1, d.Remaining)
				assert.Equal(t, start.Add(time.Minute), d.ResetAt)
				clock.Advance(time.Second)
			}

			d, err := l.Check(ctx, "user-1", 3, time.Minute)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Zero(t, d.Remaining)
			assert.Equal(t, start.Add(time.Minute), d.ResetAt)
			assert.Equal(t, 57*time.Second, d.RetryAfter)

			// 其他标识符互不影响
			d, err = l.Check(ctx, "user-2", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			// 第一条记录恰好在 now-window 时被丢弃
			clock.Advance(57 * time.Second)
			d, err = l.Check(ctx, "user-1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Zero(t, d.Remaining)
			assert.Equal(t, start.Add(time.Second+time.Minute), d.ResetAt)
		})
	}
}

func TestLimiter_DeniedRequestsNotRecorded(t *testing.T) {
	for name, store := range slidingLogStores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l, err := New(store, WithClock(clock.Now), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			_, err = l.Check(ctx, "k", 1, 10*time.Second)
			require.NoError(t, err)
			for range 5 {
				clock.Advance(time.Second)
				d, err := l.Check(ctx, "k", 1, 10*time.Second)
				require.NoError(t, err)
				assert.False(t, d.Allowed)
			}
			clock.Advance(5 * time.Second)
			d, err := l.Check(ctx, "k", 1, 10*time.Second)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		})
	}
}

func TestLimiter_AllowAndReset(t *testing.T) {
	for name, store := range slidingLogStores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l, err := New(store, WithClock(clock.Now), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			_, err = l.Allow(ctx, "tenant-a", 1, time.Minute)
			require.NoError(t, err)

			_, err = l.Allow(ctx, "tenant-a", 1, time.Minute)
			require.ErrorIs(t, err, ErrRateLimited)
			var ee *ExceededError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, "tenant-a", ee.Identifier)
			assert.Equal(t, clock.Now().Add(time.Minute), ee.ResetAt)
			assert.False(t, ee.Retryable())
			assert.True(t, IsDenied(err))

			require.NoError(t, l.Reset(ctx, "tenant-a"))
			_, err = l.Allow(ctx, "tenant-a", 1, time.Minute)
			assert.NoError(t, err)
		})
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	for name, store := range slidingLogStores(t) {
		t.Run(name, func(t *testing.T) {
			l, err := New(store, WithLogger(xlog.Nop()))
			require.NoError(t, err)

			var allowed atomic.Int32
			var wg sync.WaitGroup
			for range 50 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					d, err := l.Check(context.Background(), "hot", 10, time.Minute)
					if err == nil && d.Allowed {
						allowed.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(10), allowed.Load())
		})
	}
}

func TestLimiter_Validation(t *testing.T) {
	l, err := New(newLocal(t), WithLogger(xlog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.Check(ctx, "", 1, time.Second)
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
	_, err = l.Check(ctx, "id", 0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = l.Check(ctx, "id", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = l.Check(ctx, "id", 1, 500*time.Microsecond)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.True(t, IsInvalid(err))
	_, err = l.Check(ctx, "id", 1, time.Millisecond)
	assert.NoError(t, err)
	_, err = l.Check(ctx, "id", 1, 2*time.Hour)
	assert.ErrorIs(t, err, ErrWindowTooLarge)
	assert.True(t, IsInvalid(err))
	assert.False(t, IsInvalid(errors.New("dial tcp: connection refused")))
	assert.Equal(t, DefaultLocalMaxWindow, l.MaxWindow())
	assert.ErrorIs(t, l.Reset(ctx, ""), ErrEmptyIdentifier)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNilStore)

	client, _ := newRedisClient(t)
	rs, err := NewRedisStore(client)
	require.NoError(t, err)
	unbounded, err := New(rs, WithLogger(xlog.Nop()))
	require.NoError(t, err)
	assert.Zero(t, unbounded.MaxWindow())
	_, err = unbounded.Check(ctx, "id", 1, 48*time.Hour)
	assert.NoError(t, err)
}

func TestRedisStore_KeyLayoutAndExpiry(t *testing.T) {
	client, mr := newRedisClient(t)
	rs, err := NewRedisStore(client)
	require.NoError(t, err)
	l, err := New(rs, WithKeyPrefix("rl:"), WithLogger(xlog.Nop()))
	require.NoError(t, err)
	require.NoError(t, WarmupScripts(context.Background(), client))

	_, err = l.Check(context.Background(), "ip:10.0.0.1", 5, 30*time.Second)
	require.NoError(t, err)

	key := "rl:{ip:10.0.0.1}"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(key))
}

func TestRedisStore_Unavailable(t *testing.T) {
	client, mr := newRedisClient(t)
	rs, err := NewRedisStore(client)
	require.NoError(t, err)
	l, err := New(rs, WithLogger(xlog.Nop()))
	require.NoError(t, err)

	mr.Close()
	_, err = l.Check(context.Background(), "id", 1, time.Second)
	assert.Error(t, err)
	assert.False(t, IsDenied(err))
}

func TestGCRAStore(t *testing.T) {
	client, _ := newRedisClient(t)
	gs, err := NewGCRAStore(client)
	require.NoError(t, err)
	l, err := New(gs, WithLogger(xlog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	for range 3 {
		d, err := l.Check(ctx, "burst", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Check(ctx, "burst", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Positive(t, d.RetryAfter)

	require.NoError(t, l.Reset(ctx, "burst"))
	d, err = l.Check(ctx, "burst", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, TypeGCRA, l.Store().Type())
}

func TestLocalStore_ForgetsIdleKeys(t *testing.T) {
	s := newLocal(t, WithMaxKeys(2))
	l, err := New(s, WithLogger(xlog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := l.Check(ctx, id, 1, time.Second)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())
}

func TestDecision_Headers(t *testing.T) {
	reset := time.Unix(1_700_000_000, 0)
	d := Decision{Limit: 10, Remaining: 0, ResetAt: reset, RetryAfter: 1500 * time.Millisecond}

	h := http.Header{}
	d.SetHeaders(h)
	assert.Equal(t, "10", h.Get(HeaderLimit))
	assert.Equal(t, "0", h.Get(HeaderRemaining))
	assert.Equal(t, "1700000000", h.Get(HeaderReset))
	assert.Equal(t, "2", h.Get(HeaderRetryAfter))

	empty := http.Header{}
	Decision{}.SetHeaders(empty)
	assert.Empty(t, empty)
}

func TestConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{Algorithm: "leaky"}.Validate(), ErrUnknownAlgo)

	s, err := NewStore(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, TypeLocal, s.Type())
	_ = s.(*LocalStore).Close()

	client, _ := newRedisClient(t)
	s, err = NewStore(Config{Algorithm: AlgorithmGCRA}, client)
	require.NoError(t, err)
	assert.Equal(t, TypeGCRA, s.Type())

	s, err = NewStore(Config{}, client)
	require.NoError(t, err)
	assert.Equal(t, TypeRedis, s.Type())

	assert.ErrorIs(t, Config{Fallback: "retry"}.Validate(), ErrUnknownFallback)
	s, err = NewStore(Config{Fallback: FallbackLocal, LocalMaxWindow: 2 * time.Hour}, client,
		WithFallbackLogger(xlog.Nop()))
	require.NoError(t, err)
	f, ok := s.(*FallbackStore)
	require.True(t, ok)
	assert.Equal(t, TypeRedis, f.Type())
	assert.Equal(t, FallbackLocal, f.Strategy())
	assert.Equal(t, 2*time.Hour, f.MaxWindow())
	require.NoError(t, f.Close())

	// 无 Redis 时不包装
	s, err = NewStore(Config{Fallback: FallbackOpen}, nil)
	require.NoError(t, err)
	_, ok = s.(*LocalStore)
	assert.True(t, ok)
	_ = s.(*LocalStore).Close()
}
