// Package xquota 提供按租户的多周期配额（分钟、小时、日、月）。
//
// 每个周期是固定窗口，窗口 ID 由当前时间在配置时区下确定性地计算：
// 分钟 200601021504、小时 2006010215、日 20060102、月 200601（日历月）。
//
// Check 是全有或全无的：先读取四个周期的计数，任一启用的周期已达上限即拒绝且不递增
// 任何计数；否则四个计数全部递增。未启用（上限 <= 0）的周期不参与判定，但仍计数，
// 便于用量查询。计数从 0 变为 1 时设置过期时间为该周期长度。
//
// RedisStore 用一个多 key Lua 脚本完成检查与递增，所有 key 共享 {tenant} hash tag；
// LocalStore 在检查与递增期间持有租户级互斥锁。
package xquota
