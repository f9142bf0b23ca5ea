package xmetrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultPrometheusNamespace Prometheus 指标默认命名空间。
const DefaultPrometheusNamespace = "xshield"

// PrometheusObserver 将操作计数与耗时写入 Prometheus，不产生 trace。
type PrometheusObserver struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusObserver 创建并向 reg 注册指标：
// <namespace>_operation_total 与 <namespace>_operation_duration_seconds，
// 标签为 component、operation、status。namespace 为空时使用 DefaultPrometheusNamespace。
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) (*PrometheusObserver, error) {
	if reg == nil {
		return nil, errors.New("xmetrics: nil prometheus registerer")
	}
	if namespace == "" {
		namespace = DefaultPrometheusNamespace
	}
	labels := []string{"component", "operation", "status"}
	o := &PrometheusObserver{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_total",
			Help:      "Total number of operations.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Operation duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, labels),
	}
	for _, c := range []prometheus.Collector{o.total, o.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("xmetrics: register prometheus collector: %w", err)
		}
	}
	return o, nil
}

// Start 实现 Observer。
func (o *PrometheusObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, &promSpan{
		observer:  o,
		component: nonEmpty(opts.Component),
		operation: nonEmpty(opts.Operation),
		start:     time.Now(),
	}
}

type promSpan struct {
	observer  *PrometheusObserver
	component string
	operation string
	start     time.Time
	endOnce   sync.Once
}

func (s *promSpan) End(result Result) {
	s.endOnce.Do(func() {
		status := result.Status
		if status == "" {
			status = StatusOK
			if result.Err != nil {
				status = StatusError
			}
		}
		s.observer.total.WithLabelValues(s.component, s.operation, string(status)).Inc()
		s.observer.duration.WithLabelValues(s.component, s.operation, string(status)).
			Observe(time.Since(s.start).Seconds())
	})
}

// Multi 将多个 Observer 组合为一个，Start 按顺序调用，ctx 依次传递。
func Multi(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return NoopObserver{}
	case 1:
		return list[0]
	}
	return multiObserver(list)
}

type multiObserver []Observer

func (m multiObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	spans := make(multiSpan, len(m))
	for i, o := range m {
		ctx, spans[i] = o.Start(ctx, opts)
	}
	return ctx, spans
}

type multiSpan []Span

func (m multiSpan) End(result Result) {
	for _, s := range m {
		s.End(result)
	}
}
