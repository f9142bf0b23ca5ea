// Package xlog 提供基于 log/slog 的结构化日志。
//
// 设计要点：
//   - 所有方法强制传入 context，由 EnrichHandler 自动注入 xctx 中的
//     tenant_id、user_id、request_id、trace_id、client_ip
//   - 方法只接受 slog.Attr，避免隐式 key-value 转换
//   - Builder 构建，Build() 返回 cleanup 用于关闭轮转文件
//   - 支持运行时动态调整级别
//
// 基本用法：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xshield/app.log").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "circuit opened", slog.String("name", "carrier-api"))
package xlog
