// Package util 汇集各组件共用的底层工具。
//
// 子包列表：
//   - xkeylock: 按 key 加锁，限流与配额的本地存储用它串行化同一 key 的读改写
//   - xlru: 带 TTL 的泛型 LRU，承载本地存储的计数状态
//   - xnet: 可信代理列表与客户端 IP 解析
package util
