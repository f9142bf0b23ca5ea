package xctx

import (
	"context"
	"errors"
)

// contextKey 包私有的 context key 类型，避免与其他包冲突。
type contextKey string

// 日志属性 Key，遵循下划线分隔的命名约定。
const (
	KeyTenantID  = "tenant_id"
	KeyUserID    = "user_id"
	KeyRequestID = "request_id"
	KeyTraceID   = "trace_id"
	KeyClientIP  = "client_ip"

	// fieldCount 字段数量，用于 slog 属性预分配
	fieldCount = 5
)

const (
	keyTenantID  = contextKey("xctx:tenant_id")
	keyUserID    = contextKey("xctx:user_id")
	keyRequestID = contextKey("xctx:request_id")
	keyTraceID   = contextKey("xctx:trace_id")
	keyClientIP  = contextKey("xctx:client_ip")
)

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingTenantID tenant_id 缺失
	ErrMissingTenantID = errors.New("xctx: missing tenant_id")

	// ErrMissingUserID user_id 缺失
	ErrMissingUserID = errors.New("xctx: missing user_id")
)

func withValue(ctx context.Context, key contextKey, v string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, v), nil
}

func value(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
