package xlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/omeyang/xshield/pkg/observability/xlog"
)

// FallbackStrategy 主存储不可用时的降级策略。
type FallbackStrategy string

const (
	// FallbackNone 不降级，错误原样返回。
	FallbackNone FallbackStrategy = ""
	// FallbackLocal 降级到进程内存储，各实例独立计数。
	FallbackLocal FallbackStrategy = "local"
	// FallbackOpen 放行请求。
	FallbackOpen FallbackStrategy = "open"
	// FallbackClosed 拒绝请求，返回 ErrFallbackClosed。
	FallbackClosed FallbackStrategy = "closed"
)

// Validate 校验策略取值。
func (s FallbackStrategy) Validate() error {
	switch s {
	case FallbackNone, FallbackLocal, FallbackOpen, FallbackClosed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFallback, string(s))
	}
}

// FallbackStore 带降级能力的存储。
//
// 主存储（通常是 Redis）返回错误时按策略降级。参数错误与调用方取消不触发降级。
type FallbackStore struct {
	primary    Store
	local      *LocalStore
	strategy   FallbackStrategy
	logger     xlog.Logger
	onFallback func(key string, strategy FallbackStrategy, err error)

	// logEvery 节流降级告警
	logEvery rate.Sometimes
}

// FallbackOption 配置 FallbackStore。
type FallbackOption func(*fallbackOptions)

type fallbackOptions struct {
	logger     xlog.Logger
	onFallback func(key string, strategy FallbackStrategy, err error)
	localOpts  []LocalStoreOption
	logEvery   time.Duration
}

// WithFallbackLogger 设置降级日志输出，默认使用 xlog.Default()。
func WithFallbackLogger(l xlog.Logger) FallbackOption {
	return func(o *fallbackOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOnFallback 设置每次降级时的回调，可用于记录指标。
func WithOnFallback(fn func(key string, strategy FallbackStrategy, err error)) FallbackOption {
	return func(o *fallbackOptions) {
		o.onFallback = fn
	}
}

// WithFallbackLocalOptions 设置 FallbackLocal 使用的进程内存储参数。
func WithFallbackLocalOptions(opts ...LocalStoreOption) FallbackOption {
	return func(o *fallbackOptions) {
		o.localOpts = append(o.localOpts, opts...)
	}
}

// WithFallbackLogInterval 设置降级告警的最小间隔，默认 10s。
func WithFallbackLogInterval(d time.Duration) FallbackOption {
	return func(o *fallbackOptions) {
		if d > 0 {
			o.logEvery = d
		}
	}
}

// NewFallbackStore 创建带降级的存储。FallbackLocal 策略下需调用 Close 释放进程内存储。
func NewFallbackStore(primary Store, strategy FallbackStrategy, opts ...FallbackOption) (*FallbackStore, error) {
	if primary == nil {
		return nil, ErrNilStore
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	o := &fallbackOptions{logEvery: 10 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}

	f := &FallbackStore{
		primary:    primary,
		strategy:   strategy,
		logger:     o.logger,
		onFallback: o.onFallback,
		logEvery:   rate.Sometimes{First: 1, Interval: o.logEvery},
	}
	if strategy == FallbackLocal {
		local, err := NewLocalStore(o.localOpts...)
		if err != nil {
			return nil, err
		}
		f.local = local
	}
	return f, nil
}

func (f *FallbackStore) Type() string { return f.primary.Type() }

// Strategy 返回降级策略。
func (f *FallbackStore) Strategy() FallbackStrategy { return f.strategy }

// MaxWindow 返回降级后仍能服务的最大窗口，0 表示不限。
func (f *FallbackStore) MaxWindow() time.Duration {
	if f.local != nil {
		return f.local.MaxWindow()
	}
	if b, ok := f.primary.(WindowBound); ok {
		return b.MaxWindow()
	}
	return 0
}

func (f *FallbackStore) Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	d, err := f.primary.Check(ctx, key, limit, window, now)
	if err == nil || f.strategy == FallbackNone || IsInvalid(err) || ctx.Err() != nil {
		return d, err
	}

	f.logEvery.Do(func() {
		f.logger.Warn(ctx, "rate limit store unavailable, falling back",
			slog.String("strategy", string(f.strategy)),
			slog.String("store", f.primary.Type()),
			xlog.Err(err),
		)
	})
	if f.onFallback != nil {
		f.onFallback(key, f.strategy, err)
	}

	switch f.strategy {
	case FallbackLocal:
		return f.local.Check(ctx, key, limit, window, now)
	case FallbackOpen:
		return Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	default:
		return Decision{}, fmt.Errorf("%w: %w", ErrFallbackClosed, err)
	}
}

// Reset 同时清除主存储与进程内存储中的记录。
func (f *FallbackStore) Reset(ctx context.Context, key string) error {
	var errs []error
	if err := f.primary.Reset(ctx, key); err != nil {
		errs = append(errs, err)
	}
	if f.local != nil {
		if err := f.local.Reset(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 释放进程内存储。主存储由调用方管理。
func (f *FallbackStore) Close() error {
	if f.local == nil {
		return nil
	}
	return f.local.Close()
}

var (
	_ Store       = (*FallbackStore)(nil)
	_ WindowBound = (*FallbackStore)(nil)
	_ WindowBound = (*LocalStore)(nil)
)
