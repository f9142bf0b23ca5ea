// Package xbreaker 提供按名称管理的熔断器注册表。
//
// 每个熔断器（circuit）保护一类对外操作，基于 [sony/gobreaker/v2] 的状态机：
//
//   - CLOSED：正常放行；连续失败达到 FailureThreshold 时转为 OPEN
//   - OPEN：直接拒绝并返回 *OpenError，不执行操作；经过 ResetTimeout 后转为 HALF_OPEN
//   - HALF_OPEN：放行至多 SuccessThreshold 个探测请求；连续成功达到阈值转为 CLOSED，
//     任一失败立即回到 OPEN 并重新计时
//
// 每次放行的调用都有独立的执行时限 Timeout。超时的调用返回 *TimeoutError 并计为失败；
// 操作 panic 被恢复为 *PanicError 同样计为失败；调用方自身取消则不计入统计。
//
// # 注册
//
// Register 为名称确立唯一配置：以相同配置重复注册是空操作，以不同配置注册返回
// ErrConflictingOptions。未注册的名称在首次使用时以注册表默认配置懒创建。
//
// # 共享状态
//
// WithSharedStore 让所有熔断器的状态存放在 SharedStore 中，多个实例共享同一状态机。
// RedisStore 用两个 Lua 脚本实现：Acquire 在调用前原子地完成准入并占用名额，
// Release 在调用后记录结果并切换状态。下游调用期间不持锁，同一熔断器的调用可以并发；
// 存储不可用时调用直接失败，不执行操作。
//
// # 与重试组合
//
// Protect 将 xretry.Policy 置于熔断器外层：每次尝试都经过熔断器，熔断打开后
// *OpenError 不可重试，重试立即终止。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
