// Package xlimit 提供按标识符的滑动窗口限流。
//
// Limiter.Check 对每个标识符维护一份请求时间日志（sliding log）：
//
//  1. 丢弃时间戳 <= now-window 的记录
//  2. 统计剩余记录数 count
//  3. count >= limit 时拒绝，resetAt 为最旧记录 + window
//  4. 否则记录 now 并放行，remaining = limit - count - 1
//
// 同一标识符的检查与记录是原子的：RedisStore 用单个 Lua 脚本完成，LocalStore 用
// 按 key 的互斥锁串行化。GCRAStore 基于 go-redis/redis_rate 提供 GCRA 算法，
// 不是滑动日志，但返回相同形态的 Decision。
//
// Redis key 为 "<prefix>{<identifier>}"，花括号 hash tag 使同一标识符落在同一个
// Cluster slot。所有 key 都带有过期时间，无需额外清理。
//
// FallbackStore 在 Redis 不可用时按策略降级到本地存储、放行或拒绝。
// 参数错误（IsInvalid）不触发降级，也不应被调用方当作存储故障放行。
package xlimit
