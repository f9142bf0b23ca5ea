package xretry

import (
	"context"
	"log/slog"
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
)

// 恢复策略默认参数。
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy 针对单个依赖的错误恢复策略。
//
// 每次尝试的错误先经 Classify 归类，校验类错误因此不会被重试；
// 返回的终态错误也是已归类的错误。
type Policy struct {
	dependency string
	retryer    *Retryer
	logger     xlog.Logger
}

type policyOptions struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      float64
	timer       Timer
	logger      xlog.Logger
	onRetry     func(attempt int, err error)
}

// PolicyOption 配置 Policy。
type PolicyOption func(*policyOptions)

// WithMaxAttempts 设置最大尝试次数（含首次），小于 1 被忽略。
func WithMaxAttempts(n int) PolicyOption {
	return func(o *policyOptions) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithBaseDelay 设置首次重试前的等待，之后逐次翻倍。
func WithBaseDelay(d time.Duration) PolicyOption {
	return func(o *policyOptions) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

// WithPolicyMaxDelay 设置等待上限。
func WithPolicyMaxDelay(d time.Duration) PolicyOption {
	return func(o *policyOptions) {
		if d > 0 {
			o.maxDelay = d
		}
	}
}

// WithPolicyJitter 设置退避抖动比例，多实例同时重试同一依赖时错开请求。
func WithPolicyJitter(j float64) PolicyOption {
	return func(o *policyOptions) {
		o.jitter = j
	}
}

// WithTimer 替换等待计时器。
func WithTimer(t Timer) PolicyOption {
	return func(o *policyOptions) {
		o.timer = t
	}
}

// WithLogger 设置重试日志输出，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) PolicyOption {
	return func(o *policyOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOnRetry 在每次重试前回调。
func WithOnRetry(f func(attempt int, err error)) PolicyOption {
	return func(o *policyOptions) {
		o.onRetry = f
	}
}

// Config 可从配置文件加载的恢复策略参数。
type Config struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	// Jitter 退避抖动比例，取值 [0, 1]。
	Jitter float64 `koanf:"jitter"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Options 将配置转换为 PolicyOption。
func (c Config) Options() []PolicyOption {
	return []PolicyOption{
		WithMaxAttempts(c.MaxAttempts),
		WithBaseDelay(c.BaseDelay),
		WithPolicyMaxDelay(c.MaxDelay),
		WithPolicyJitter(c.Jitter),
	}
}

// NewPolicy 创建依赖 dependency 的恢复策略。
func NewPolicy(dependency string, opts ...PolicyOption) *Policy {
	o := &policyOptions{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}

	p := &Policy{dependency: dependency, logger: o.logger}
	p.retryer = NewRetryer(
		WithRetryPolicy(NewFixedRetry(o.maxAttempts)),
		WithBackoffPolicy(NewExponentialBackoff(
			WithInitialDelay(o.baseDelay),
			WithMaxDelay(o.maxDelay),
			WithJitter(o.jitter),
		)),
		WithRetryTimer(o.timer),
		WithRetryHook(func(attempt int, err error) {
			p.logger.Warn(context.Background(), "retrying dependency call",
				slog.String("dependency", dependency),
				slog.Int("attempt", attempt),
				xlog.Err(err),
			)
			if o.onRetry != nil {
				o.onRetry(attempt, err)
			}
		}),
	)
	return p
}

// Dependency 返回依赖名称。
func (p *Policy) Dependency() string {
	return p.dependency
}

// Do 在策略下执行 fn。
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p == nil {
		return ErrNilPolicy
	}
	if fn == nil {
		return ErrNilFunc
	}
	return p.retryer.Do(ctx, func(ctx context.Context) error {
		return Classify(p.dependency, fn(ctx))
	})
}

// Recover 在策略下执行 fn 并返回其结果。
func Recover[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		return zero, ErrNilPolicy
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return DoWithResult(ctx, p.retryer, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, Classify(p.dependency, err)
		}
		return v, nil
	})
}
