package xguard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omeyang/xshield/pkg/config/xconf"
	"github.com/omeyang/xshield/pkg/observability/xlog"
)

// LoadRoutes 读取 cfg 中 path 下的路由列表，如：
//
//	routes:
//	  - method: GET
//	    path: /v1/orders
//	    requests: 100
//	    window: 1m
//	  - path: /pkg.Orders/Create
//	    requests: 10
//	    window_ms: 1000
//	    message: slow down
func LoadRoutes(cfg xconf.Config, path string) ([]RouteEntry, error) {
	if !cfg.Exists(path) {
		return nil, nil
	}
	var entries []RouteEntry
	if err := cfg.Unmarshal(path, &entries); err != nil {
		return nil, fmt.Errorf("xguard: load routes: %w", err)
	}
	return entries, nil
}

// WatchRoutes 在配置文件变更时重新加载路由并替换 table。
// 重载失败时保留旧路由表并记录日志。返回的 Watcher 需由调用方运行与停止。
func WatchRoutes(cfg xconf.Config, path string, table *RouteTable, logger xlog.Logger, opts ...xconf.WatchOption) (*xconf.Watcher, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if logger == nil {
		logger = xlog.Default()
	}
	return xconf.Watch(cfg, func(c xconf.Config, err error) {
		ctx := context.Background()
		if err != nil {
			logger.Warn(ctx, "route config reload failed, keeping previous routes", xlog.Err(err))
			return
		}
		if err := reloadRoutes(c, path, table); err != nil {
			logger.Warn(ctx, "route config invalid, keeping previous routes", xlog.Err(err))
			return
		}
		logger.Info(ctx, "route config reloaded", slog.Int("routes", table.Len()))
	}, opts...)
}

func reloadRoutes(cfg xconf.Config, path string, table *RouteTable) error {
	entries, err := LoadRoutes(cfg, path)
	if err != nil {
		return err
	}
	return table.Replace(entries)
}
