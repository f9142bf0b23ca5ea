// Package xrun 提供进程内多个长期服务的统一生命周期管理。
//
// Group 基于 errgroup：任一服务返回错误即取消共享 context，其余服务随之退出；
// Run 额外监听系统信号，收到 SIGINT/SIGTERM 等信号后优雅停止。
//
// 典型用法：
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.HTTPServer("api", apiServer, 10*time.Second),
//	    xrun.HTTPServer("admin", adminServer, 5*time.Second),
//	    xrun.Func("routes", watcher.Run),
//	)
//
// 收到信号导致的退出返回 nil；服务自身失败时返回该错误。
package xrun
