package xquota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xshield/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rs, err := NewRedisStore(client)
	require.NoError(t, err)

	ls, err := NewLocalStore(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })

	return map[string]Store{"Redis": rs, "Local": ls}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestManager_PerMinuteLimit(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 20, 0, time.UTC)
	limits := Limits{PerMinute: 5}

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			m, err := New(store, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				res, err := m.Check(ctx, "acme", limits)
				require.NoError(t, err)
				require.True(t, res.Allowed, "request %d", i)
				for _, p := range Periods {
					assert.Equal(t, int64(i), res.Used[p], "period %s", p)
				}
				assert.Equal(t, int64(5-i), res.Remaining[Minute])
			}

			res, err := m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, []Period{Minute}, res.Exceeded)
			assert.Equal(t, int64(0), res.Remaining[Minute])

			u, err := m.Usage(ctx, "acme")
			require.NoError(t, err)
			for _, p := range Periods {
				assert.Equal(t, int64(5), u.Used[p], "denied request must not increment %s", p)
			}
		})
	}
}

func TestManager_ConcurrentChecks(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 20, 0, time.UTC)
	limits := Limits{PerMinute: 5}
	const callers = 50

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			m, err := New(store, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			var (
				wg      sync.WaitGroup
				allowed atomic.Int32
				failed  atomic.Int32
			)
			for range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := m.Check(ctx, "acme", limits)
					switch {
					case err != nil:
						failed.Add(1)
					case res.Allowed:
						allowed.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Zero(t, failed.Load())
			assert.Equal(t, int32(5), allowed.Load())
			u, err := m.Usage(ctx, "acme")
			require.NoError(t, err)
			for _, p := range Periods {
				assert.Equal(t, int64(5), u.Used[p], "period %s", p)
			}
		})
	}
}

func TestManager_WindowRollover(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 20, 0, time.UTC)
	limits := Limits{PerMinute: 1, PerHour: 2}

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			clock := now
			m, err := New(store, WithClock(func() time.Time { return clock }), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			res, err := m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			res, err = m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			assert.False(t, res.Allowed)

			clock = now.Add(time.Minute)
			res, err = m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, int64(1), res.Used[Minute])
			assert.Equal(t, int64(2), res.Used[Hour])

			clock = now.Add(2 * time.Minute)
			res, err = m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, []Period{Hour}, res.Exceeded)
		})
	}
}

func TestManager_TenantsIsolated(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			m, err := New(store, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			_, err = m.Check(ctx, "a", Limits{PerDay: 1})
			require.NoError(t, err)
			res, err := m.Check(ctx, "b", Limits{PerDay: 1})
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		})
	}
}

func TestManager_Enforce(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 20, 0, time.UTC)
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			m, err := New(store, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()
			limits := Limits{PerMinute: 1, PerDay: 1}

			_, err = m.Enforce(ctx, "acme", limits)
			require.NoError(t, err)

			_, err = m.Enforce(ctx, "acme", limits)
			require.ErrorIs(t, err, ErrQuotaExceeded)
			var qe *ExceededError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, "acme", qe.Tenant)
			assert.Equal(t, []Period{Minute, Day}, qe.Periods)
			assert.Equal(t, time.Date(2026, 3, 15, 10, 31, 0, 0, time.UTC), qe.ResetAt)
		})
	}
}

func TestManager_UnlimitedPeriodsStillCounted(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			m, err := New(store, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()

			for range 3 {
				res, err := m.Check(ctx, "acme", Limits{})
				require.NoError(t, err)
				assert.True(t, res.Allowed)
				assert.Empty(t, res.Remaining)
			}
			u, err := m.Usage(ctx, "acme")
			require.NoError(t, err)
			assert.Equal(t, int64(3), u.Used[Month])
		})
	}
}

func TestManager_Reset(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			m, err := New(store, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
			require.NoError(t, err)
			ctx := context.Background()
			limits := Limits{PerMinute: 1}

			_, err = m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			require.NoError(t, m.Reset(ctx, "acme"))

			res, err := m.Check(ctx, "acme", limits)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, int64(1), res.Used[Month])
		})
	}
}

func TestManager_EmptyTenant(t *testing.T) {
	ls, err := NewLocalStore(10)
	require.NoError(t, err)
	defer ls.Close()
	m, err := New(ls, WithLogger(xlog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Check(ctx, "", Limits{})
	assert.ErrorIs(t, err, ErrEmptyTenant)
	_, err = m.Usage(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyTenant)
	assert.ErrorIs(t, m.Reset(ctx, ""), ErrEmptyTenant)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestRedisStore_KeysAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rs, err := NewRedisStore(client)
	require.NoError(t, err)

	now := time.Date(2026, 2, 10, 8, 5, 30, 0, time.UTC)
	m, err := New(rs, WithClock(fixedClock(now)), WithLogger(xlog.Nop()))
	require.NoError(t, err)
	_, err = m.Check(context.Background(), "acme", Limits{PerMinute: 10})
	require.NoError(t, err)

	cases := map[string]time.Duration{
		"quota:{acme}:minute:202602100805": time.Minute,
		"quota:{acme}:hour:2026021008":     time.Hour,
		"quota:{acme}:day:20260210":        24 * time.Hour,
		"quota:{acme}:month:202602":        28 * 24 * time.Hour,
	}
	for key, ttl := range cases {
		assert.True(t, mr.Exists(key), key)
		assert.Equal(t, ttl, mr.TTL(key), key)
	}
}

func TestWindowAt(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	tests := []struct {
		name   string
		period Period
		now    time.Time
		loc    *time.Location
		id     string
		ttl    time.Duration
	}{
		{"minute", Minute, time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC), time.UTC, "202601312359", time.Minute},
		{"hour", Hour, time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC), time.UTC, "2026013123", time.Hour},
		{"day", Day, time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC), time.UTC, "20260131", 24 * time.Hour},
		{"month january", Month, time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC), time.UTC, "202601", 31 * 24 * time.Hour},
		{"month february", Month, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.UTC, "202602", 28 * 24 * time.Hour},
		{"month leap february", Month, time.Date(2028, 2, 14, 0, 0, 0, 0, time.UTC), time.UTC, "202802", 29 * 24 * time.Hour},
		{"day in shanghai", Day, time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC), shanghai, "20260201", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := windowAt(tt.period, tt.now, tt.loc)
			assert.Equal(t, tt.id, w.id)
			assert.Equal(t, tt.ttl, w.ttl())
			assert.LessOrEqual(t, w.ttl(), maxTTL(tt.period))
		})
	}
}

func TestStaticResolver(t *testing.T) {
	overrides := map[string]Limits{
		"gold": {PerMinute: 100},
		"free": {},
	}
	r := StaticResolver(Limits{PerDay: 10}, overrides)
	overrides["gold"] = Limits{}

	l, ok := r("gold")
	assert.True(t, ok)
	assert.Equal(t, int64(100), l.PerMinute)

	_, ok = r("free")
	assert.False(t, ok)

	l, ok = r("other")
	assert.True(t, ok)
	assert.Equal(t, int64(10), l.PerDay)
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Location = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	store, err := NewStore(cfg, nil)
	require.NoError(t, err)
	defer store.(*LocalStore).Close()
	assert.Equal(t, TypeLocal, store.Type())

	opts, err := cfg.Options()
	require.NoError(t, err)
	m, err := New(store, append(opts, WithLogger(xlog.Nop()))...)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, m.loc)
}
