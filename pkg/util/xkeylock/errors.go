package xkeylock

import "errors"

var (
	// ErrLockNotHeld 重复释放
	ErrLockNotHeld = errors.New("xkeylock: lock not held")

	// ErrClosed 锁已关闭
	ErrClosed = errors.New("xkeylock: closed")

	// ErrMaxKeysExceeded 同时持有或等待的 key 数量超过上限
	ErrMaxKeysExceeded = errors.New("xkeylock: max keys exceeded")

	// ErrInvalidShardCount 分片数必须是 2 的幂
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
