// Package xguard 在业务处理前执行准入控制：按路由限流，并按租户检查配额。
//
// 路由配置是在注册时附加的普通值（RouteConfig），不依赖反射发现。
// 未附加配置的路由无条件放行。默认限流 key 为
// tenant:user:ip:method:path，租户缺失时为 default，用户缺失时为 anonymous。
//
// 三种接入方式：
//   - (*Guard).Route(cfg) 包装单个 http.Handler
//   - (*Guard).HTTPMiddleware() / UnaryServerInterceptor() 查询 RouteTable
//   - (*Guard).Gin(cfg) 作为 gin 中间件
//
// 拒绝时 HTTP 返回 429 与 JSON 体 {"error", "reset_at", "retry_after"}，
// gRPC 返回 codes.ResourceExhausted。
//
// 存储故障默认放行（fail-open），告警日志按时间间隔节流；WithFailClosed 改为拒绝。
//
// Guard 本身不持有按 key 的状态，过期由存储负责（Redis PEXPIRE、LRU TTL）。
package xguard
