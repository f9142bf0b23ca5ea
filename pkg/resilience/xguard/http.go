package xguard

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/xshield/pkg/context/xctx"
	"github.com/omeyang/xshield/pkg/context/xtenant"
	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
)

// DeniedBody 拒绝响应体。
type DeniedBody struct {
	Error      string    `json:"error"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int64     `json:"retry_after"` // 秒，向上取整
}

// NewDeniedBody 由拒绝错误构建响应体。
func NewDeniedBody(e *DeniedError) DeniedBody {
	return DeniedBody{
		Error:      e.Message,
		ResetAt:    e.ResetAt.UTC(),
		RetryAfter: retryAfterSeconds(e.RetryAfter),
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// Headers 返回拒绝响应应携带的响应头。
func (e *DeniedError) Headers() http.Header {
	h := make(http.Header)
	e.Decision.Rate.SetHeaders(h)
	h.Set(xlimit.HeaderRetryAfter, strconv.FormatInt(retryAfterSeconds(e.RetryAfter), 10))
	return h
}

// Route 返回为单个 handler 附加 cfg 的中间件。cfg 为 nil 时直接放行。
func (g *Guard) Route(cfg *RouteConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serveHTTP(w, r, next, cfg)
		})
	}
}

// HTTPMiddleware 返回查询路由表的中间件。
//
// 注册在 http.ServeMux 内部时按 r.Pattern 匹配（如 "GET /v1/orders/{id}"），
// 包装整个 mux 时 r.Pattern 为空，按 method 与 URL 路径匹配。
func (g *Guard) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method, path := routeOf(r)
			g.serveHTTP(w, r, next, g.table.Lookup(method, path))
		})
	}
}

func (g *Guard) serveHTTP(w http.ResponseWriter, r *http.Request, next http.Handler, cfg *RouteConfig) {
	if cfg == nil {
		next.ServeHTTP(w, r)
		return
	}
	d, err := g.Admit(r.Context(), g.HTTPRequest(r), cfg)
	if err != nil {
		g.writeError(r.Context(), w, err)
		return
	}
	d.Rate.SetHeaders(w.Header())
	next.ServeHTTP(w, r)
}

// HTTPRequest 从 HTTP 请求提取 Request。
// 身份优先取自上下文（xtenant 中间件已注入），其次取自请求头。
func (g *Guard) HTTPRequest(r *http.Request) Request {
	ctx := r.Context()
	tenant, user := xctx.TenantID(ctx), xctx.UserID(ctx)
	if tenant == "" || user == "" {
		id := xtenant.ExtractFromHTTPHeader(r.Header)
		if tenant == "" {
			tenant = id.TenantID
		}
		if user == "" {
			user = id.UserID
		}
	}
	ip := xctx.ClientIP(ctx)
	if ip == "" {
		ip = g.proxies.ClientIP(r)
	}
	return Request{
		TenantID: tenant,
		UserID:   user,
		ClientIP: ip,
		Method:   r.Method,
		Path:     r.URL.Path,
		Route:    r.Pattern,
	}
}

// routeOf 返回用于查询路由表的 method 与 path。
func routeOf(r *http.Request) (method, path string) {
	if r.Pattern == "" {
		return r.Method, r.URL.Path
	}
	pattern := r.Pattern
	method = r.Method
	if m, rest, ok := strings.Cut(pattern, " "); ok {
		method, pattern = m, strings.TrimLeft(rest, " ")
	}
	// 去掉 host 部分，如 "example.com/path"
	if i := strings.Index(pattern, "/"); i > 0 {
		pattern = pattern[i:]
	}
	return method, pattern
}

func (g *Guard) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var de *DeniedError
	if errors.As(err, &de) {
		for k, v := range de.Headers() {
			w.Header()[k] = v
		}
		writeJSON(ctx, g.logger, w, http.StatusTooManyRequests, NewDeniedBody(de))
		return
	}
	writeJSON(ctx, g.logger, w, http.StatusServiceUnavailable, map[string]string{
		"error": http.StatusText(http.StatusServiceUnavailable),
	})
}

func writeJSON(ctx context.Context, logger xlog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug(ctx, "write response failed", xlog.Err(err))
	}
}
