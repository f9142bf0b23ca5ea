package xbreaker

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
)

// Execute 在名为 name 的熔断器保护下执行 fn。未注册的名称以默认参数懒创建。
func Execute[T any](ctx context.Context, r *Registry, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return execute(ctx, r, name, nil, fn)
}

// ExecuteWith 与 Execute 相同，但以 opts 注册熔断器；已注册且配置不同时返回 ErrConflictingOptions。
func ExecuteWith[T any](ctx context.Context, r *Registry, name string, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	return execute(ctx, r, name, &opts, fn)
}

// Do 是 Execute 的无返回值形式。
func (r *Registry) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	_, err := execute(ctx, r, name, nil, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func execute[T any](ctx context.Context, r *Registry, name string, opts *Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilFunc
	}
	c, err := r.circuit(name, opts)
	if err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ctx, span := xmetrics.Start(ctx, r.observer, xmetrics.SpanOptions{
		Component: "xbreaker",
		Operation: "execute",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("circuit", name)},
	})

	call := func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
	var result any
	if c.cb == nil {
		result, err = c.executeShared(ctx, call)
	} else {
		result, err = c.cb.Execute(func() (any, error) {
			return c.attempt(ctx, call)
		})
	}
	err = c.translate(err)
	endSpan(span, err)

	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			r.logger.Debug(ctx, "circuit rejected call", xlog.Err(err))
		}
		return zero, err
	}
	if typed, ok := result.(T); ok {
		return typed, nil
	}
	return zero, nil
}

type outcome struct {
	value any
	err   error
}

// attempt 在 Timeout 时限内执行 fn。
//
// fn 在独立 goroutine 中运行并写入容量为 1 的 channel，超时后迟到的结果被丢弃而 goroutine 正常退出。
func (c *circuit) attempt(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- outcome{err: &PanicError{Name: c.name, Value: v, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(callCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.value, nil
		}
		if ctx.Err() != nil {
			return nil, &callerAbort{err: out.err}
		}
		if callCtx.Err() != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Name: c.name, Limit: c.opts.Timeout}
		}
		return out.value, out.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, &callerAbort{err: context.Cause(ctx)}
		}
		return nil, &TimeoutError{Name: c.name, Limit: c.opts.Timeout}
	}
}

// translate 将 gobreaker 的拒绝错误转换为 *OpenError，并剥离 callerAbort 标记。
func (c *circuit) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState):
		return &OpenError{Name: c.name, State: StateOpen, NextAttemptAt: c.nextAttemptAt()}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return &OpenError{Name: c.name, State: StateHalfOpen}
	}
	var abort *callerAbort
	if errors.As(err, &abort) {
		return abort.err
	}
	return err
}

func isCallerAbort(err error) bool {
	var abort *callerAbort
	return errors.As(err, &abort)
}

func endSpan(span xmetrics.Span, err error) {
	if err != nil {
		span.End(xmetrics.Result{Status: xmetrics.StatusError, Err: err})
		return
	}
	span.End(xmetrics.Result{Status: xmetrics.StatusOK})
}
