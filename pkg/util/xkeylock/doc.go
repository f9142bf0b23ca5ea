// Package xkeylock 提供按 key 粒度的进程内互斥锁。
//
// 不同 key 之间完全独立，同一 key 的临界区串行执行。内存型计数存储
// （xlimit.LocalStore、xquota.LocalStore）用它保证"读取-判断-写入"的原子性。
//
// 实现要点：
//   - 按 xxhash 分片，降低全局锁竞争
//   - 每个 key 的锁是容量为 1 的 channel，等待可被 context 取消
//   - 引用计数归零时删除 key，空闲 key 不占内存
package xkeylock
