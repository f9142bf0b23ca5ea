package xlimit

import (
	"context"
	"time"
)

// Store 限流状态存储。
//
// Check 必须对同一 key 原子地完成“清理过期记录、计数、放行时记录”。
type Store interface {
	Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
	Reset(ctx context.Context, key string) error
	Type() string
}

// WindowBound 由支持的窗口长度有上限的存储实现。
type WindowBound interface {
	MaxWindow() time.Duration
}

// 存储类型。
const (
	TypeRedis = "redis"
	TypeGCRA  = "gcra"
	TypeLocal = "local"
)
