package xguard

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// RouteEntry 路由表中的一条记录。Method 为空表示匹配任意方法；
// gRPC 路由的 Path 为完整方法名，如 "/pkg.Service/Method"。
type RouteEntry struct {
	Method string `koanf:"method" json:"method,omitempty"`
	Path   string `koanf:"path" json:"path"`

	RouteConfig `koanf:",squash"`
}

// RouteTable 路由到准入配置的映射。并发安全，支持整体替换（热更新）。
type RouteTable struct {
	mu        sync.RWMutex
	routes    map[string]*RouteConfig
	maxWindow time.Duration
}

// NewRouteTable 创建空路由表。
func NewRouteTable() *RouteTable {
	return &RouteTable{routes: make(map[string]*RouteConfig)}
}

// SetMaxWindow 设置路由窗口上限，0 表示不限。之后附加或替换的路由窗口超出上限时被拒绝。
func (t *RouteTable) SetMaxWindow(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxWindow = max(d, 0)
}

// MaxWindow 返回路由窗口上限。
func (t *RouteTable) MaxWindow() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxWindow
}

func (t *RouteTable) check(method, path string, cfg *RouteConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", routeKey(method, path), err)
	}
	if limit := t.MaxWindow(); limit > 0 && cfg.window() > limit {
		return fmt.Errorf("%s: %w: window %s exceeds store limit %s",
			routeKey(method, path), ErrInvalidRoute, cfg.window(), limit)
	}
	return nil
}

func routeKey(method, path string) string {
	if method == "" {
		return path
	}
	return strings.ToUpper(method) + " " + path
}

// Attach 为 method+path 附加配置，cfg 为 nil 表示移除。
func (t *RouteTable) Attach(method, path string, cfg *RouteConfig) error {
	if cfg != nil {
		if err := t.check(method, path, cfg); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg == nil {
		delete(t.routes, routeKey(method, path))
		return nil
	}
	t.routes[routeKey(method, path)] = cfg
	return nil
}

// Lookup 查找配置：先精确匹配 method+path，再匹配不限方法的 path。未配置时返回 nil。
func (t *RouteTable) Lookup(method, path string) *RouteConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cfg, ok := t.routes[routeKey(method, path)]; ok {
		return cfg
	}
	return t.routes[path]
}

// Replace 用 entries 整体替换路由表。任一记录无效时不做修改。
func (t *RouteTable) Replace(entries []RouteEntry) error {
	routes := make(map[string]*RouteConfig, len(entries))
	for i := range entries {
		e := entries[i]
		if e.Path == "" {
			return fmt.Errorf("%w: entry %d has empty path", ErrInvalidRoute, i)
		}
		if err := t.check(e.Method, e.Path, &e.RouteConfig); err != nil {
			return err
		}
		cfg := e.RouteConfig
		routes[routeKey(e.Method, e.Path)] = &cfg
	}
	t.mu.Lock()
	t.routes = routes
	t.mu.Unlock()
	return nil
}

// Len 返回已配置的路由数量。
func (t *RouteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// MaxWindow 返回 entries 中最大的窗口。
func MaxWindow(entries []RouteEntry) time.Duration {
	var d time.Duration
	for i := range entries {
		d = max(d, entries[i].window())
	}
	return d
}
