package xtenant

import (
	"net/http"
	"strings"
)

// HTTP Header 名称
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"
)

// ExtractFromHTTPHeader 从 HTTP Header 提取身份信息
func ExtractFromHTTPHeader(h http.Header) Identity {
	if h == nil {
		return Identity{}
	}
	return Identity{
		TenantID:  strings.TrimSpace(h.Get(HeaderTenantID)),
		UserID:    strings.TrimSpace(h.Get(HeaderUserID)),
		RequestID: strings.TrimSpace(h.Get(HeaderRequestID)),
	}
}

// HTTPMiddleware 返回注入身份信息的 HTTP 中间件。
//
// 身份校验失败时返回 400。启用 WithEnsureRequestID 时，
// 最终使用的 request ID 会回写到响应 Header。
func HTTPMiddleware(opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := inject(r.Context(), ExtractFromHTTPHeader(r.Header), o)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if id := FromContext(ctx).RequestID; id != "" {
				w.Header().Set(HeaderRequestID, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
