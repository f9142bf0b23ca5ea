// Package xlru 提供带 TTL 的并发安全 LRU 缓存，基于 hashicorp/golang-lru/v2/expirable。
//
// 用于内存态限流与配额计数：每个 key 写入时刷新过期时间，长时间未访问的 key
// 由底层库自动过期；容量上限保证内存有界。
//
// 使用完毕必须调用 Close 停止后台过期清理 goroutine。
package xlru
