// Package observability 提供日志与观测相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog，支持按文件轮转
//   - xmetrics: 统一的 Observer 接口，OpenTelemetry 与 Prometheus 两种实现
//
// 准入、配额、熔断各组件只依赖 xmetrics.Observer，
// 未配置时使用 NoopObserver。
package observability
