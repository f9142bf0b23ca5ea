package xquota

import (
	"context"
	"log/slog"
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
)

// DefaultKeyPrefix 默认 key 前缀。
const DefaultKeyPrefix = "quota:"

// Result 一次配额检查的结果。
type Result struct {
	Allowed bool
	// Exceeded 已达上限的周期，按周期长度升序。
	Exceeded []Period
	// Remaining 仅包含启用限制的周期。
	Remaining map[Period]int64
	ResetAt   map[Period]time.Time
	// Used 检查后的计数；被拒绝时为检查前的计数。
	Used map[Period]int64
}

// Usage 租户当前窗口的用量。
type Usage struct {
	Tenant  string               `json:"tenant"`
	Used    map[Period]int64     `json:"used"`
	ResetAt map[Period]time.Time `json:"reset_at"`
}

// Manager 按租户管理多周期配额。并发安全。
type Manager struct {
	store    Store
	prefix   string
	loc      *time.Location
	logger   xlog.Logger
	observer xmetrics.Observer
	now      func() time.Time
}

// Option 配置 Manager。
type Option func(*Manager)

// WithKeyPrefix 设置 key 前缀。
func WithKeyPrefix(prefix string) Option {
	return func(m *Manager) {
		m.prefix = prefix
	}
}

// WithLocation 设置计算窗口边界的时区，默认 UTC。
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithLogger 设置日志输出，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver 设置可观测性实现。
func WithObserver(o xmetrics.Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithClock 替换时钟，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New 创建配额管理器。
func New(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	m := &Manager{
		store:    store,
		prefix:   DefaultKeyPrefix,
		loc:      time.UTC,
		observer: xmetrics.NoopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.logger == nil {
		m.logger = xlog.Default()
	}
	return m, nil
}

// Store 返回底层存储。
func (m *Manager) Store() Store {
	return m.store
}

// counters 返回 tenant 在 now 时刻四个周期的计数器与窗口。
func (m *Manager) counters(tenant string, limits Limits, now time.Time) ([]Counter, []window) {
	counters := make([]Counter, len(Periods))
	windows := make([]window, len(Periods))
	for i, p := range Periods {
		w := windowAt(p, now, m.loc)
		windows[i] = w
		counters[i] = Counter{
			Period: p,
			Key:    m.prefix + "{" + tenant + "}:" + string(p) + ":" + w.id,
			Limit:  limits.Of(p),
			TTL:    w.ttl(),
		}
	}
	return counters, windows
}

// Check 检查并消耗一次配额。被拒绝不是错误：Result.Allowed 为 false，error 为 nil。
func (m *Manager) Check(ctx context.Context, tenant string, limits Limits) (Result, error) {
	if tenant == "" {
		return Result{}, ErrEmptyTenant
	}
	ctx, span := xmetrics.Start(ctx, m.observer, xmetrics.SpanOptions{
		Component: "xquota",
		Operation: "check",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("store", m.store.Type())},
	})

	counters, windows := m.counters(tenant, limits, m.now())
	counts, allowed, err := m.store.Consume(ctx, tenant, counters)
	if err != nil {
		span.End(xmetrics.Result{Status: xmetrics.StatusError, Err: err})
		return Result{}, err
	}

	res := Result{
		Allowed:   allowed,
		Remaining: make(map[Period]int64, len(Periods)),
		ResetAt:   make(map[Period]time.Time, len(Periods)),
		Used:      make(map[Period]int64, len(Periods)),
	}
	for i, c := range counters {
		res.Used[c.Period] = counts[i]
		res.ResetAt[c.Period] = windows[i].end
		if c.Limit <= 0 {
			continue
		}
		res.Remaining[c.Period] = max(c.Limit-counts[i], 0)
		if !allowed && counts[i] >= c.Limit {
			res.Exceeded = append(res.Exceeded, c.Period)
		}
	}
	span.End(xmetrics.Result{
		Status: xmetrics.StatusOK,
		Attrs:  []xmetrics.Attr{xmetrics.Bool("allowed", allowed)},
	})

	if allowed {
		m.logger.Debug(ctx, "quota check allowed", xlog.Tenant(tenant))
	} else {
		periods := make([]string, len(res.Exceeded))
		for i, p := range res.Exceeded {
			periods[i] = string(p)
		}
		m.logger.Warn(ctx, "quota exceeded",
			xlog.Tenant(tenant),
			slog.Any("periods", periods),
		)
	}
	return res, nil
}

// Enforce 与 Check 相同，但被拒绝时返回 *ExceededError。
func (m *Manager) Enforce(ctx context.Context, tenant string, limits Limits) (Result, error) {
	res, err := m.Check(ctx, tenant, limits)
	if err != nil || res.Allowed {
		return res, err
	}
	e := &ExceededError{Tenant: tenant, Periods: res.Exceeded}
	for _, p := range res.Exceeded {
		if at := res.ResetAt[p]; e.ResetAt.IsZero() || at.Before(e.ResetAt) {
			e.ResetAt = at
		}
	}
	return res, e
}

// Usage 返回租户当前各窗口的用量，不消耗配额。
func (m *Manager) Usage(ctx context.Context, tenant string) (Usage, error) {
	if tenant == "" {
		return Usage{}, ErrEmptyTenant
	}
	counters, windows := m.counters(tenant, Limits{}, m.now())
	counts, err := m.store.Peek(ctx, tenant, counters)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{
		Tenant:  tenant,
		Used:    make(map[Period]int64, len(Periods)),
		ResetAt: make(map[Period]time.Time, len(Periods)),
	}
	for i, c := range counters {
		u.Used[c.Period] = counts[i]
		u.ResetAt[c.Period] = windows[i].end
	}
	return u, nil
}

// Reset 清除租户当前各窗口的计数。
func (m *Manager) Reset(ctx context.Context, tenant string) error {
	if tenant == "" {
		return ErrEmptyTenant
	}
	counters, _ := m.counters(tenant, Limits{}, m.now())
	if err := m.store.Delete(ctx, tenant, counters); err != nil {
		return err
	}
	m.logger.Info(ctx, "quota reset", xlog.Tenant(tenant))
	return nil
}
