package xlog

import (
	"context"
	"log/slog"

	"github.com/omeyang/xshield/pkg/context/xctx"
)

// EnrichHandler 在每条日志中追加 context 携带的身份与追踪字段。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 包装一个 slog.Handler。base 为 nil 时返回 nil。
func NewEnrichHandler(base slog.Handler) *EnrichHandler {
	if base == nil {
		return nil
	}
	return &EnrichHandler{base: base}
}

func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := xctx.Attrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}
