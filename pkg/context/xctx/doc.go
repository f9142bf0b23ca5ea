// Package xctx 提供请求上下文中身份与追踪字段的存取。
//
// xctx 是纯存取层：只负责把 tenant_id、user_id、request_id、trace_id
// 写入或读出 context.Context，不做格式校验。校验由中间件（xtenant）负责。
//
// # 读取语义
//
//   - TenantID/UserID/RequestID/TraceID：不存在时返回空字符串
//   - RequireTenantID/RequireUserID：不存在时返回错误
//
// # 日志集成
//
// AppendAttrs 将上下文字段追加为 slog.Attr，xlog 的 EnrichHandler 使用它
// 为每条日志自动补充身份与追踪信息。
package xctx
