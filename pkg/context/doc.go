// Package context 提供请求身份在 context 中的传递。
//
// 子包列表：
//   - xctx: 租户、用户、客户端 IP、请求 ID 的注入与读取
//   - xtenant: 从 HTTP 头或 gRPC metadata 提取身份的中间件
//
// 身份只经由 context.Context 传递，不使用全局变量。
package context
