package xmetrics

import "context"

// Kind 操作类型，映射为 OTel SpanKind
type Kind int

// 操作类型
const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

// Status 操作结果状态
type Status string

// 结果状态
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Attr 与具体实现无关的属性
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 启动 Span 的参数
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 操作结果。
// Status 为空时按 Err 推断；业务上的"拒绝"不是错误，调用方可显式设为 StatusOK。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

// Span 一次操作的观测句柄，End 必须调用且只生效一次。
type Span interface {
	End(result Result)
}

// Observer 可观测性入口
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 空实现
type NoopObserver struct{}

// Start 返回原 ctx 与 NoopSpan
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	return ctx, NoopSpan{}
}

// NoopSpan 空 Span
type NoopSpan struct{}

// End 不做任何事
func (NoopSpan) End(Result) {}

// Start 是对 nil observer 安全的启动入口，组件统一通过它启动 Span。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}
