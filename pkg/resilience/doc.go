// Package resilience 汇集准入控制与故障隔离组件。
//
// 子包列表：
//   - xlimit: 按标识符的滑动窗口限流，Redis 与本地两种存储
//   - xquota: 按租户的分钟、小时、天、月配额
//   - xbreaker: 命名熔断器注册表，可经 Redis 在实例间共享状态
//   - xretry: 依赖调用的重试策略与错误分类
//   - xguard: HTTP、gin、gRPC 入口的准入中间件，组合限流与配额
//   - xadmin: 限流、配额、熔断的运维 API 与客户端
package resilience
