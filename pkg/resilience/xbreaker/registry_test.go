package xbreaker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xshield/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBoom = errors.New("boom")

func newTestRegistry(opts ...RegistryOption) *Registry {
	return NewRegistry(append([]RegistryOption{WithLogger(xlog.Nop())}, opts...)...)
}

func fastOptions() Options {
	return Options{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		ResetTimeout:     100 * time.Millisecond,
	}
}

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func trip(t *testing.T, r *Registry, name string, n int) {
	t.Helper()
	for range n {
		require.ErrorIs(t, r.Do(context.Background(), name, fail), errBoom)
	}
}

func TestBreaker_OpensAfterThresholdAndRejects(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register("payments", fastOptions()))

	trip(t, r, "payments", 2)
	s, err := r.State("payments")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, s.State)
	assert.Equal(t, uint32(2), s.Counts.ConsecutiveFailures)

	trip(t, r, "payments", 1)
	s, err = r.State("payments")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, s.State)
	assert.False(t, s.NextAttemptAt.IsZero())

	var invoked atomic.Bool
	err = r.Do(context.Background(), "payments", func(context.Context) error {
		invoked.Store(true)
		return nil
	})
	assert.False(t, invoked.Load())
	assert.ErrorIs(t, err, ErrCircuitOpen)

	var open *OpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "payments", open.Name)
	assert.Equal(t, StateOpen, open.State)
	assert.Equal(t, s.NextAttemptAt, open.NextAttemptAt)
	assert.False(t, open.Retryable())

	time.Sleep(150 * time.Millisecond)

	var observed State
	err = r.Do(context.Background(), "payments", func(context.Context) error {
		invoked.Store(true)
		snap, _ := r.State("payments")
		observed = snap.State
		return nil
	})
	require.NoError(t, err)
	assert.True(t, invoked.Load())
	assert.Equal(t, StateHalfOpen, observed)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register("search", fastOptions()))
	trip(t, r, "search", 3)
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, r.Do(context.Background(), "search", succeed))
	s, _ := r.State("search")
	assert.Equal(t, StateHalfOpen, s.State)

	require.NoError(t, r.Do(context.Background(), "search", succeed))
	s, _ = r.State("search")
	assert.Equal(t, StateClosed, s.State)
	assert.True(t, s.NextAttemptAt.IsZero())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register("search", fastOptions()))
	trip(t, r, "search", 3)
	first, _ := r.State("search")

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, r.Do(context.Background(), "search", succeed))
	require.ErrorIs(t, r.Do(context.Background(), "search", fail), errBoom)

	s, err := r.State("search")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, s.State)
	assert.True(t, s.NextAttemptAt.After(first.NextAttemptAt))
	assert.ErrorIs(t, r.Do(context.Background(), "search", succeed), ErrCircuitOpen)
}

func TestBreaker_TimeoutCountsAsFailure(t *testing.T) {
	r := newTestRegistry()
	opts := fastOptions()
	opts.Timeout = 20 * time.Millisecond
	require.NoError(t, r.Register("slow", opts))

	slow := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}

	for i := range 3 {
		err := r.Do(context.Background(), "slow", slow)
		require.ErrorIs(t, err, ErrOperationTimeout)
		assert.NotErrorIs(t, err, context.DeadlineExceeded)

		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 20*time.Millisecond, te.Limit)
		assert.True(t, te.Timeout())

		if i == 1 {
			s, _ := r.State("slow")
			assert.Equal(t, StateClosed, s.State)
			assert.Equal(t, uint32(2), s.Counts.TotalFailures)
		}
	}

	// 进入 OPEN 开启新的统计周期，计数归零
	s, _ := r.State("slow")
	assert.Equal(t, StateOpen, s.State)
	assert.False(t, s.NextAttemptAt.IsZero())
	assert.Zero(t, s.Counts.TotalFailures)
}

func TestBreaker_TimeoutIgnoresUncooperativeOperation(t *testing.T) {
	r := newTestRegistry()
	opts := fastOptions()
	opts.Timeout = 10 * time.Millisecond
	require.NoError(t, r.Register("stuck", opts))

	release := make(chan struct{})
	start := time.Now()
	err := r.Do(context.Background(), "stuck", func(context.Context) error {
		<-release
		return nil
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrOperationTimeout)
	close(release)
	// goleak 在 TestMain 中等待迟到的 goroutine 退出
}

func TestBreaker_CallerCancelNotCounted(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register("cancel", fastOptions()))

	ctx, cancel := context.WithCancel(context.Background())
	err := r.Do(ctx, "cancel", func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)

	s, _ := r.State("cancel")
	assert.Equal(t, uint32(0), s.Counts.TotalFailures)
	assert.Equal(t, uint32(1), s.Counts.TotalExclusions)

	_, err = Execute(ctx, r, "cancel", func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBreaker_PanicCountsAsFailure(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register("panicky", fastOptions()))

	err := r.Do(context.Background(), "panicky", func(context.Context) error {
		panic("kaboom")
	})
	require.ErrorIs(t, err, ErrOperationPanic)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	s, _ := r.State("panicky")
	assert.Equal(t, uint32(1), s.Counts.ConsecutiveFailures)
}

func TestExecute_ReturnsValue(t *testing.T) {
	r := newTestRegistry()
	v, err := Execute(context.Background(), r, "lazy", func(context.Context) (string, error) {
		return "hello", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	s, err := r.State("lazy")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), s.Options)
}

func TestRegistry_Registration(t *testing.T) {
	r := newTestRegistry()
	opts := fastOptions()

	require.NoError(t, r.Register("db", opts))
	require.NoError(t, r.Register("db", opts))

	other := opts
	other.FailureThreshold = 10
	assert.ErrorIs(t, r.Register("db", other), ErrConflictingOptions)

	_, err := ExecuteWith(context.Background(), r, "db", other, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrConflictingOptions)

	// 未指定配置的引用沿用已注册配置
	require.NoError(t, r.Do(context.Background(), "db", succeed))

	assert.ErrorIs(t, r.Register("bad", Options{}), ErrInvalidOptions)
	assert.ErrorIs(t, r.Register("", opts), ErrEmptyName)

	_, err = r.State("missing")
	assert.ErrorIs(t, err, ErrUnknownCircuit)
}

func TestRegistry_SnapshotsSorted(t *testing.T) {
	var changes atomic.Int32
	r := newTestRegistry(
		WithDefaults(Options{FailureThreshold: 1}),
		WithOnStateChange(func(string, State, State) { changes.Add(1) }),
	)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Do(context.Background(), name, succeed))
	}
	require.ErrorIs(t, r.Do(context.Background(), "mid", fail), errBoom)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
	snaps, err := r.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "alpha", snaps[0].Name)
	assert.Equal(t, StateOpen, snaps[1].State)
	assert.Equal(t, uint32(1), snaps[1].Options.FailureThreshold)
	assert.Equal(t, DefaultSuccessThreshold, snaps[1].Options.SuccessThreshold)
	assert.Equal(t, int32(1), changes.Load())
}

func TestRegistry_Nil(t *testing.T) {
	var r *Registry
	assert.ErrorIs(t, r.Do(context.Background(), "x", succeed), ErrNilRegistry)
	assert.Nil(t, r.Names())
	assert.ErrorIs(t, newTestRegistry().Do(context.Background(), "x", nil), ErrNilFunc)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	err := Options{FailureThreshold: 1}.Validate()
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Contains(t, err.Error(), "success_threshold")
	assert.Contains(t, err.Error(), "reset_timeout")
}
