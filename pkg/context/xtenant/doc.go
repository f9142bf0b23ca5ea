// Package xtenant 从入站请求（HTTP Header / gRPC Metadata）中提取租户与用户身份，
// 并通过 xctx 注入 context。
//
// 下游组件（如 xguard 的默认限流 Key）只从 context 读取身份，
// 不直接解析传输层 Header，保证 HTTP 与 gRPC 行为一致。
package xtenant
