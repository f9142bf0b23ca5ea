package xretry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Timer 控制重试间的等待，测试中可替换为不真正休眠的实现。
type Timer = retry.Timer

// Retryer 组合 RetryPolicy 与 BackoffPolicy 执行重试。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
	timer         Timer
}

// RetryerOption 配置 Retryer。
type RetryerOption func(*Retryer)

func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithRetryHook 在每次失败且即将重试时回调，attempt 为刚失败的尝试序号（从 1 开始）。
func WithRetryHook(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		r.onRetry = f
	}
}

// WithRetryTimer 替换等待计时器。
func WithRetryTimer(t Timer) RetryerOption {
	return func(r *Retryer) {
		r.timer = t
	}
}

// NewRetryer 创建 Retryer，默认最多 3 次尝试、指数退避。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行 fn，失败时按策略重试，返回最后一次错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.check(ctx, fn == nil); err != nil {
		return err
	}
	return retry.New(r.options(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 与 Do 相同，但返回 fn 的结果。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := r.check(ctx, fn == nil); err != nil {
		var zero T
		return zero, err
	}
	return retry.NewWithData[T](r.options(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

func (r *Retryer) check(ctx context.Context, nilFunc bool) error {
	switch {
	case r == nil:
		return ErrNilRetryer
	case ctx == nil:
		return ErrNilContext
	case nilFunc:
		return ErrNilFunc
	}
	return nil
}

func (r *Retryer) options(ctx context.Context) []retry.Option {
	opts := make([]retry.Option, 0, 7)
	opts = append(opts, retry.Context(ctx), retry.LastErrorOnly(true))

	opts = append(opts, retry.Attempts(toUint(r.retryPolicy.MaxAttempts())))

	// retry-go 的 RetryIf 不携带尝试序号，这里自行计数
	var attempt atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		n := int(attempt.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		return r.retryPolicy.ShouldRetry(ctx, n, err)
	}))

	// n 从 1 开始，对应第 n 次重试前的等待
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return r.backoffPolicy.NextDelay(toInt(n))
	}))

	if r.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(toInt(n)+1, err)
		}))
	}
	if r.timer != nil {
		opts = append(opts, retry.WithTimer(r.timer))
	}
	return opts
}

func toUint(n int) uint {
	if n <= 0 {
		return 1
	}
	return uint(n)
}

func toInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
