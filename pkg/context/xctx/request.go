package xctx

import "context"

// WithRequestID 将 request ID 注入 context
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withValue(ctx, keyRequestID, requestID)
}

// RequestID 从 context 提取 request ID
func RequestID(ctx context.Context) string {
	return value(ctx, keyRequestID)
}

// WithTraceID 将 trace ID 注入 context
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withValue(ctx, keyTraceID, traceID)
}

// TraceID 从 context 提取 trace ID
func TraceID(ctx context.Context) string {
	return value(ctx, keyTraceID)
}

// WithClientIP 将已解析的客户端 IP 注入 context
func WithClientIP(ctx context.Context, ip string) (context.Context, error) {
	return withValue(ctx, keyClientIP, ip)
}

// ClientIP 从 context 提取客户端 IP
func ClientIP(ctx context.Context) string {
	return value(ctx, keyClientIP)
}
