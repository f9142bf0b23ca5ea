package xbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
)

// Registry 按名称管理熔断器。并发安全。
type Registry struct {
	mu       sync.RWMutex
	circuits map[string]*circuit

	defaults      Options
	store         SharedStore
	logger        xlog.Logger
	observer      xmetrics.Observer
	onStateChange func(name string, from, to State)
	now           func() time.Time
}

// RegistryOption 配置 Registry。
type RegistryOption func(*Registry)

// WithDefaults 设置懒创建熔断器使用的默认参数，零值字段沿用内置默认值。
func WithDefaults(o Options) RegistryOption {
	return func(r *Registry) {
		r.defaults = o.withDefaults(DefaultOptions())
	}
}

// WithSharedStore 使用共享状态存储，所有熔断器在多个实例间共享状态。
func WithSharedStore(store SharedStore) RegistryOption {
	return func(r *Registry) {
		r.store = store
	}
}

// WithLogger 设置日志输出，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver 设置可观测性实现。
func WithObserver(o xmetrics.Observer) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithOnStateChange 状态变化回调。回调在熔断器内部锁内执行，不应阻塞。
func WithOnStateChange(f func(name string, from, to State)) RegistryOption {
	return func(r *Registry) {
		r.onStateChange = f
	}
}

// NewRegistry 创建注册表。
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		circuits: make(map[string]*circuit),
		defaults: DefaultOptions(),
		observer: xmetrics.NoopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = xlog.Default()
	}
	return r
}

// Register 为 name 确立配置。
//
// 相同配置重复注册是空操作；配置不同返回 ErrConflictingOptions。
func (r *Registry) Register(name string, opts Options) error {
	_, err := r.circuit(name, &opts)
	return err
}

// circuit 查找或创建熔断器。opts 为 nil 时使用默认参数。
func (r *Registry) circuit(name string, opts *Options) (*circuit, error) {
	if r == nil {
		return nil, ErrNilRegistry
	}
	if name == "" {
		return nil, ErrEmptyName
	}

	r.mu.RLock()
	c, ok := r.circuits[name]
	r.mu.RUnlock()
	if ok {
		return c, c.compatible(opts)
	}

	o := r.defaults
	if opts != nil {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		o = *opts
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.circuits[name]; ok {
		return c, c.compatible(opts)
	}
	c = r.newCircuit(name, o)
	r.circuits[name] = c
	r.logger.Debug(context.Background(), "circuit registered",
		xlog.Circuit(name),
		slog.Uint64("failure_threshold", uint64(o.FailureThreshold)),
		slog.Uint64("success_threshold", uint64(o.SuccessThreshold)),
		xlog.Duration(o.Timeout),
	)
	return c, nil
}

func (r *Registry) newCircuit(name string, o Options) *circuit {
	c := &circuit{name: name, opts: o, registry: r}
	if r.store != nil {
		return c
	}
	c.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: o.SuccessThreshold,
		Timeout:     o.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.FailureThreshold
		},
		IsExcluded: isCallerAbort,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.stateChanged(from, to, time.Time{})
		},
	})
	return c
}

// State 返回熔断器快照。未知名称返回 ErrUnknownCircuit。
func (r *Registry) State(name string) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, ErrNilRegistry
	}
	r.mu.RLock()
	c, ok := r.circuits[name]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownCircuit, name)
	}
	return c.snapshot()
}

// Snapshots 返回所有熔断器的快照，按名称排序。
func (r *Registry) Snapshots() ([]Snapshot, error) {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		s, err := r.State(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Names 返回已注册的熔断器名称，按字典序排序。
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.circuits))
	for name := range r.circuits {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Snapshot 熔断器的某一时刻状态。
type Snapshot struct {
	Name          string
	State         State
	Counts        Counts
	Options       Options
	NextAttemptAt time.Time
}

// circuit 单个熔断器。使用共享存储时 cb 为 nil，状态全部存放在存储中。
type circuit struct {
	name     string
	opts     Options
	registry *Registry

	cb *gobreaker.CircuitBreaker[any]

	// nextAttempt 进入 OPEN 时记录的半开时间点（UnixNano），非 OPEN 为 0
	nextAttempt atomic.Int64
}

func (c *circuit) compatible(opts *Options) error {
	if opts == nil || *opts == c.opts {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConflictingOptions, c.name)
}

// stateChanged 记录状态变化。at 为进入 OPEN 时的半开时间点，零值表示按当前时间计算。
func (c *circuit) stateChanged(from, to State, at time.Time) {
	if to == StateOpen {
		if at.IsZero() {
			at = c.registry.now().Add(c.opts.ResetTimeout)
		}
		c.nextAttempt.Store(at.UnixNano())
	} else {
		c.nextAttempt.Store(0)
	}

	attrs := []slog.Attr{
		xlog.Circuit(c.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	}
	if to == StateOpen {
		c.registry.logger.Warn(context.Background(), "circuit state changed", attrs...)
	} else {
		c.registry.logger.Info(context.Background(), "circuit state changed", attrs...)
	}
	if c.registry.onStateChange != nil {
		c.registry.onStateChange(c.name, from, to)
	}
}

func (c *circuit) nextAttemptAt() time.Time {
	n := c.nextAttempt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (c *circuit) snapshot() (Snapshot, error) {
	s := Snapshot{Name: c.name, Options: c.opts}
	if c.cb == nil {
		shared, err := c.registry.store.Load(context.Background(), c.name, c.registry.now())
		if err != nil {
			return Snapshot{}, fmt.Errorf("xbreaker: read circuit %q: %w", c.name, err)
		}
		s.State = shared.State
		s.Counts = shared.Counts
		s.NextAttemptAt = shared.NextAttemptAt
		return s, nil
	}
	s.State = c.cb.State()
	s.Counts = c.cb.Counts()
	if s.State == StateOpen {
		s.NextAttemptAt = c.nextAttemptAt()
	}
	return s, nil
}
