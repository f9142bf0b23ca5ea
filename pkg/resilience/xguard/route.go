package xguard

import (
	"fmt"
	"strings"
	"time"
)

// 默认 key 中的占位值。
const (
	DefaultTenant = "default"
	AnonymousUser = "anonymous"
)

// Request 计算限流 key 所需的请求信息。
type Request struct {
	TenantID string
	UserID   string
	ClientIP string
	Method   string
	Path     string
	// Route 匹配到的路由模式，如 "GET /v1/orders/{id}"，可能为空。
	Route string
}

// KeyFunc 自定义限流 key。返回空字符串时使用 DefaultKey。
type KeyFunc func(Request) string

// DefaultKey 返回 tenant:user:ip:method:path。
func DefaultKey(r Request) string {
	tenant := r.TenantID
	if tenant == "" {
		tenant = DefaultTenant
	}
	user := r.UserID
	if user == "" {
		user = AnonymousUser
	}
	return strings.Join([]string{tenant, user, r.ClientIP, r.Method, r.Path}, ":")
}

// RouteConfig 单个路由的准入配置。
//
// 配置文件中窗口可写为 window（时长字符串，如 "1m"）或 window_ms（毫秒整数），
// 两者同时出现时 window 优先。
type RouteConfig struct {
	Requests int           `koanf:"requests" json:"requests"`
	Window   time.Duration `koanf:"window" json:"window"`
	WindowMS int64         `koanf:"window_ms" json:"window_ms,omitempty"`
	Message  string        `koanf:"message" json:"message,omitempty"`
	KeyFunc  KeyFunc       `koanf:"-" json:"-"`
}

// Validate 校验配置。
func (c *RouteConfig) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("%w: requests must be positive", ErrInvalidRoute)
	}
	if c.window() < time.Millisecond {
		return fmt.Errorf("%w: window must be at least 1ms", ErrInvalidRoute)
	}
	return nil
}

func (c *RouteConfig) window() time.Duration {
	if c.Window > 0 {
		return c.Window
	}
	return time.Duration(c.WindowMS) * time.Millisecond
}

func (c *RouteConfig) message() string {
	if c.Message == "" {
		return DefaultMessage
	}
	return c.Message
}

func (c *RouteConfig) key(r Request) string {
	if c.KeyFunc != nil {
		if k := c.KeyFunc(r); k != "" {
			return k
		}
	}
	return DefaultKey(r)
}
