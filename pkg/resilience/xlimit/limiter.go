package xlimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
)

// Limiter 按标识符限流。并发安全。
type Limiter struct {
	store Store
	opts  *options
}

// New 创建使用 store 的限流器。
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	o := &options{
		keyPrefix: DefaultKeyPrefix,
		observer:  xmetrics.NoopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	return &Limiter{store: store, opts: o}, nil
}

// Key 返回标识符对应的存储 key。
func (l *Limiter) Key(identifier string) string {
	return l.opts.keyPrefix + "{" + identifier + "}"
}

// Store 返回底层存储。
func (l *Limiter) Store() Store {
	return l.store
}

// MaxWindow 返回存储支持的最大窗口，0 表示不限。
func (l *Limiter) MaxWindow() time.Duration {
	if b, ok := l.store.(WindowBound); ok {
		return b.MaxWindow()
	}
	return 0
}

// Check 检查 identifier 在 window 内是否还有余量，放行时记录本次请求。
//
// 被拒绝不是错误：Decision.Allowed 为 false，error 为 nil。
// 参数无效或窗口超出存储上限时返回的错误满足 IsInvalid。
func (l *Limiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	if err := validate(identifier, limit, window); err != nil {
		return Decision{}, err
	}
	if maxWindow := l.MaxWindow(); maxWindow > 0 && window > maxWindow {
		return Decision{}, fmt.Errorf("%w: %s > %s", ErrWindowTooLarge, window, maxWindow)
	}

	ctx, span := xmetrics.Start(ctx, l.opts.observer, xmetrics.SpanOptions{
		Component: "xlimit",
		Operation: "check",
		Kind:      xmetrics.KindInternal,
		Attrs: []xmetrics.Attr{
			xmetrics.String("store", l.store.Type()),
			xmetrics.Int("limit", limit),
			xmetrics.Duration("window", window),
		},
	})

	d, err := l.store.Check(ctx, l.Key(identifier), limit, window, l.opts.now())
	if err != nil {
		span.End(xmetrics.Result{Status: xmetrics.StatusError, Err: err})
		return Decision{}, err
	}
	span.End(xmetrics.Result{
		Status: xmetrics.StatusOK,
		Attrs:  []xmetrics.Attr{xmetrics.Bool("allowed", d.Allowed)},
	})

	attrs := []slog.Attr{
		xlog.Identifier(identifier),
		slog.Int("limit", d.Limit),
		slog.Int("remaining", d.Remaining),
	}
	if d.Allowed {
		l.opts.logger.Debug(ctx, "rate limit check allowed", attrs...)
	} else {
		l.opts.logger.Warn(ctx, "rate limit exceeded", append(attrs, slog.Time("reset_at", d.ResetAt))...)
	}
	return d, nil
}

// Allow 与 Check 相同，但被拒绝时返回 *ExceededError。
func (l *Limiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	d, err := l.Check(ctx, identifier, limit, window)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		return d, &ExceededError{
			Identifier: identifier,
			Limit:      d.Limit,
			ResetAt:    d.ResetAt,
			RetryAfter: d.RetryAfter,
		}
	}
	return d, nil
}

// Reset 清除 identifier 的全部记录。
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}
	if err := l.store.Reset(ctx, l.Key(identifier)); err != nil {
		return err
	}
	l.opts.logger.Info(ctx, "rate limit reset", xlog.Identifier(identifier))
	return nil
}

func validate(identifier string, limit int, window time.Duration) error {
	switch {
	case identifier == "":
		return ErrEmptyIdentifier
	case limit <= 0:
		return ErrInvalidLimit
	case window < time.Millisecond:
		// 存储以毫秒计时，更短的窗口会被截断为 0
		return ErrInvalidWindow
	}
	return nil
}
