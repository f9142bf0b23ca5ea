package xguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
	"github.com/omeyang/xshield/pkg/resilience/xquota"
	"github.com/omeyang/xshield/pkg/util/xnet"
)

// RateChecker 滑动窗口限流检查，*xlimit.Limiter 实现了该接口。
type RateChecker interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) (xlimit.Decision, error)
}

// QuotaChecker 租户配额检查，*xquota.Manager 实现了该接口。
type QuotaChecker interface {
	Check(ctx context.Context, tenant string, limits xquota.Limits) (xquota.Result, error)
}

// WindowBound 由窗口长度有上限的 RateChecker 实现，New 据此限制路由表的窗口。
type WindowBound interface {
	MaxWindow() time.Duration
}

var (
	_ WindowBound  = (*xlimit.Limiter)(nil)
	_ RateChecker  = (*xlimit.Limiter)(nil)
	_ QuotaChecker = (*xquota.Manager)(nil)
)

// Decision 一次准入检查的结果。
type Decision struct {
	Allowed bool
	Key     string
	// Rate 限流结果；未配置路由时为零值。
	Rate xlimit.Decision
	// Quota 配额结果；未检查配额时为 nil。
	Quota *xquota.Result
	// FailedOpen 存储故障导致放行。
	FailedOpen bool
}

// Guard 准入控制器。并发安全。
type Guard struct {
	limiter  RateChecker
	quota    QuotaChecker
	resolver xquota.Resolver
	table    *RouteTable
	proxies  *xnet.TrustedProxies

	failClosed bool
	logger     xlog.Logger
	observer   xmetrics.Observer
	now        func() time.Time

	// failOpenLog 节流存储故障告警，避免故障期间每个请求都打印日志。
	failOpenLog rate.Sometimes
}

// Option 配置 Guard。
type Option func(*Guard)

// WithQuota 启用租户配额检查。resolver 决定每个租户的配额。
func WithQuota(checker QuotaChecker, resolver xquota.Resolver) Option {
	return func(g *Guard) {
		g.quota = checker
		g.resolver = resolver
	}
}

// WithRouteTable 设置 HTTPMiddleware 与 UnaryServerInterceptor 使用的路由表。
func WithRouteTable(t *RouteTable) Option {
	return func(g *Guard) {
		if t != nil {
			g.table = t
		}
	}
}

// WithTrustedProxies 设置解析客户端 IP 时信任的代理。
func WithTrustedProxies(p *xnet.TrustedProxies) Option {
	return func(g *Guard) {
		g.proxies = p
	}
}

// WithFailClosed 存储故障时拒绝请求，默认放行。
func WithFailClosed() Option {
	return func(g *Guard) {
		g.failClosed = true
	}
}

// WithFailOpenLogInterval 设置存储故障告警的最小间隔，默认 10s。
func WithFailOpenLogInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.failOpenLog.Interval = d
		}
	}
}

// WithLogger 设置日志输出，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver 设置可观测性实现。
func WithObserver(o xmetrics.Observer) Option {
	return func(g *Guard) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithClock 替换时钟，用于计算配额拒绝的 RetryAfter。
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// New 创建准入控制器。
func New(limiter RateChecker, opts ...Option) (*Guard, error) {
	if limiter == nil {
		return nil, ErrNilLimiter
	}
	g := &Guard{
		limiter:     limiter,
		table:       NewRouteTable(),
		observer:    xmetrics.NoopObserver{},
		now:         time.Now,
		failOpenLog: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.quota != nil && g.resolver == nil {
		return nil, ErrNilQuotaRouter
	}
	if g.logger == nil {
		g.logger = xlog.Default()
	}
	if b, ok := limiter.(WindowBound); ok && b.MaxWindow() > 0 {
		g.table.SetMaxWindow(b.MaxWindow())
	}
	return g, nil
}

// Table 返回路由表。
func (g *Guard) Table() *RouteTable {
	return g.table
}

// Admit 判断请求是否放行。
//
// cfg 为 nil 时无条件放行。拒绝时返回 *DeniedError；
// 存储故障时默认放行（Decision.FailedOpen 为 true），WithFailClosed 时返回错误。
// 路由配置无效（如窗口超出存储上限）时总是返回错误。
func (g *Guard) Admit(ctx context.Context, req Request, cfg *RouteConfig) (Decision, error) {
	if cfg == nil {
		return Decision{Allowed: true}, nil
	}
	key := cfg.key(req)
	ctx, span := xmetrics.Start(ctx, g.observer, xmetrics.SpanOptions{
		Component: "xguard",
		Operation: "admit",
		Kind:      xmetrics.KindServer,
		Attrs:     []xmetrics.Attr{xmetrics.String("route", req.Route)},
	})

	d, err := g.admit(ctx, req, cfg, key)
	switch {
	case err != nil:
		span.End(xmetrics.Result{Status: xmetrics.StatusError, Err: err})
	default:
		span.End(xmetrics.Result{
			Status: xmetrics.StatusOK,
			Attrs: []xmetrics.Attr{
				xmetrics.Bool("allowed", d.Allowed),
				xmetrics.Bool("failed_open", d.FailedOpen),
			},
		})
	}
	return d, err
}

func (g *Guard) admit(ctx context.Context, req Request, cfg *RouteConfig, key string) (Decision, error) {
	d := Decision{Key: key}

	rd, err := g.limiter.Check(ctx, key, cfg.Requests, cfg.window())
	switch {
	case xlimit.IsInvalid(err), errors.Is(err, xlimit.ErrFallbackClosed):
		// 配置错误或降级策略要求拒绝，与存储可用性无关，不放行
		return d, fmt.Errorf("xguard: rate limit check: %w", err)
	case err != nil:
		return g.storeFailure(ctx, d, "rate limit", err)
	}
	d.Rate = rd
	if !rd.Allowed {
		return d, &DeniedError{
			Message:    cfg.message(),
			Key:        key,
			ResetAt:    rd.ResetAt,
			RetryAfter: rd.RetryAfter,
			Decision:   d,
			Err: &xlimit.ExceededError{
				Identifier: key,
				Limit:      rd.Limit,
				ResetAt:    rd.ResetAt,
				RetryAfter: rd.RetryAfter,
			},
		}
	}

	// 限流先于配额：被限流的请求不消耗配额。
	if g.quota == nil || req.TenantID == "" {
		d.Allowed = true
		return d, nil
	}
	limits, ok := g.resolver(req.TenantID)
	if !ok {
		d.Allowed = true
		return d, nil
	}
	qr, err := g.quota.Check(ctx, req.TenantID, limits)
	if err != nil {
		return g.storeFailure(ctx, d, "quota", err)
	}
	d.Quota = &qr
	if qr.Allowed {
		d.Allowed = true
		return d, nil
	}

	qe := &xquota.ExceededError{Tenant: req.TenantID, Periods: qr.Exceeded}
	for _, p := range qr.Exceeded {
		if at := qr.ResetAt[p]; qe.ResetAt.IsZero() || at.Before(qe.ResetAt) {
			qe.ResetAt = at
		}
	}
	return d, &DeniedError{
		Message:    cfg.message(),
		Key:        key,
		ResetAt:    qe.ResetAt,
		RetryAfter: max(qe.ResetAt.Sub(g.now()), 0),
		Decision:   d,
		Err:        qe,
	}
}

func (g *Guard) storeFailure(ctx context.Context, d Decision, stage string, err error) (Decision, error) {
	if g.failClosed {
		return d, fmt.Errorf("xguard: %s check: %w", stage, err)
	}
	g.failOpenLog.Do(func() {
		g.logger.Warn(ctx, "admission store unavailable, failing open",
			slog.String("stage", stage),
			slog.String("key", d.Key),
			xlog.Err(err),
		)
	})
	d.Allowed = true
	d.FailedOpen = true
	return d, nil
}
