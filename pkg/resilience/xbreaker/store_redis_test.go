package xbreaker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, WithStorePrefix("test:"))
	require.NoError(t, err)
	return store, mr
}

func TestRedisStore_StateMachine(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	opts := Options{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second, ResetTimeout: time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st, err := store.Load(ctx, "db", now)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, st.State)

	fail := func(at time.Time) Transition {
		t.Helper()
		adm, err := store.Acquire(ctx, "db", opts, at)
		require.NoError(t, err)
		require.True(t, adm.Allowed)
		tr, err := store.Release(ctx, "db", opts, adm.Generation, OutcomeFailure, at)
		require.NoError(t, err)
		return tr
	}

	tr := fail(now)
	assert.Equal(t, StateClosed, tr.To)
	st, err = store.Load(ctx, "db", now)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), st.Counts.ConsecutiveFailures)
	assert.Equal(t, uint32(1), st.Counts.Requests)
	assert.Positive(t, mr.TTL("test:db"))

	tr = fail(now)
	assert.Equal(t, StateClosed, tr.From)
	assert.Equal(t, StateOpen, tr.To)
	assert.WithinDuration(t, now.Add(time.Minute), tr.NextAttemptAt, 0)

	adm, err := store.Acquire(ctx, "db", opts, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, adm.Allowed)
	assert.Equal(t, StateOpen, adm.State)
	assert.WithinDuration(t, now.Add(time.Minute), adm.NextAttemptAt, 0)

	// 到期后首个调用进入 HALF_OPEN，名额只有一个
	later := now.Add(time.Minute)
	st, err = store.Load(ctx, "db", later)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, st.State)

	trial, err := store.Acquire(ctx, "db", opts, later)
	require.NoError(t, err)
	assert.True(t, trial.Allowed)
	assert.Equal(t, StateOpen, trial.From)
	assert.Equal(t, StateHalfOpen, trial.State)

	adm, err = store.Acquire(ctx, "db", opts, later)
	require.NoError(t, err)
	assert.False(t, adm.Allowed)
	assert.Equal(t, StateHalfOpen, adm.State)

	tr, err = store.Release(ctx, "db", opts, trial.Generation, OutcomeSuccess, later)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, tr.From)
	assert.Equal(t, StateClosed, tr.To)

	// 旧代数的结果被丢弃
	tr, err = store.Release(ctx, "db", opts, trial.Generation, OutcomeFailure, later)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, tr.To)
	st, err = store.Load(ctx, "db", later)
	require.NoError(t, err)
	assert.Zero(t, st.Counts.TotalFailures)
}

func TestRedisStore_ExcludedReleasesSlot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	opts := Options{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second, ResetTimeout: time.Second}
	now := time.Now()

	adm, err := store.Acquire(ctx, "api", opts, now)
	require.NoError(t, err)
	_, err = store.Release(ctx, "api", opts, adm.Generation, OutcomeFailure, now)
	require.NoError(t, err)

	later := now.Add(time.Second)
	trial, err := store.Acquire(ctx, "api", opts, later)
	require.NoError(t, err)
	require.True(t, trial.Allowed)
	_, err = store.Release(ctx, "api", opts, trial.Generation, OutcomeExcluded, later)
	require.NoError(t, err)

	again, err := store.Acquire(ctx, "api", opts, later)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
	assert.Equal(t, StateHalfOpen, again.State)
}

func TestRegistry_SharedStateAcrossInstances(t *testing.T) {
	store, _ := newTestStore(t)
	opts := fastOptions()
	opts.FailureThreshold = 2

	a := newTestRegistry(WithSharedStore(store))
	b := newTestRegistry(WithSharedStore(store))
	require.NoError(t, a.Register("shared", opts))
	require.NoError(t, b.Register("shared", opts))

	trip(t, a, "shared", 2)

	var invoked bool
	err := b.Do(context.Background(), "shared", func(context.Context) error {
		invoked = true
		return nil
	})
	assert.False(t, invoked)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	var open *OpenError
	require.ErrorAs(t, err, &open)
	assert.False(t, open.NextAttemptAt.IsZero())

	s, err := b.State("shared")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, s.State)
	assert.WithinDuration(t, open.NextAttemptAt, s.NextAttemptAt, 0)

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, b.Do(context.Background(), "shared", succeed))
	require.NoError(t, a.Do(context.Background(), "shared", succeed))
	s, err = a.State("shared")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, s.State)
}

func TestRegistry_SharedStateConcurrentCalls(t *testing.T) {
	store, _ := newTestStore(t)
	a := newTestRegistry(WithSharedStore(store))
	b := newTestRegistry(WithSharedStore(store))

	const calls = 20
	var (
		wg       sync.WaitGroup
		failures atomic.Int32
		inflight atomic.Int32
		peak     atomic.Int32
	)
	slow := func(context.Context) error {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(300 * time.Millisecond)
		inflight.Add(-1)
		return nil
	}

	start := time.Now()
	for i := range calls {
		r := a
		if i%2 == 1 {
			r = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Do(context.Background(), "pay", slow); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, peak.Load(), int32(1), "calls on one circuit must run concurrently")

	s, err := a.State("pay")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, s.State)
	assert.Equal(t, uint32(calls), s.Counts.TotalSuccesses)
}

func TestRegistry_SharedStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	r := newTestRegistry(WithSharedStore(store))
	mr.Close()

	var invoked bool
	err := r.Do(context.Background(), "down", func(context.Context) error {
		invoked = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, invoked)
	assert.Contains(t, err.Error(), "acquire shared circuit")
}

func TestWarmupScripts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, WarmupScripts(context.Background(), client))
	assert.ErrorIs(t, WarmupScripts(context.Background(), nil), ErrNilClient)
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}
