// Package xmetrics 提供统一的可观测性抽象（Observer/Span），
// 默认实现基于 OpenTelemetry，同时记录 trace 与 metrics。
//
// 组件只依赖 Observer 接口，未注入时使用 NoopObserver，
// 不会因为缺少可观测性配置而影响业务路径。
//
// 指标：
//   - xshield.operation.total     计数（component, operation, status）
//   - xshield.operation.duration  耗时直方图，单位秒
package xmetrics
