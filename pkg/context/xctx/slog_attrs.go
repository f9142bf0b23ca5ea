package xctx

import (
	"context"
	"log/slog"
)

// AppendAttrs 将 context 中存在的字段追加到 attrs，空值字段跳过。
//
// 设计决策: 参数顺序 (attrs, ctx) 与 append 一致，便于在 Handler 中复用切片。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := TenantID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTenantID, v))
	}
	if v := UserID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyUserID, v))
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := TraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceID, v))
	}
	if v := ClientIP(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyClientIP, v))
	}
	return attrs
}

// Attrs 返回 context 中所有字段的 slog 属性，没有字段时返回 nil。
func Attrs(ctx context.Context) []slog.Attr {
	attrs := AppendAttrs(make([]slog.Attr, 0, fieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
