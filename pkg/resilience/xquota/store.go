package xquota

import (
	"context"
	"time"
)

// Counter 单个周期计数器。
type Counter struct {
	Period Period
	Key    string
	Limit  int64
	TTL    time.Duration
}

// Store 配额计数存储。
type Store interface {
	// Consume 原子地检查所有计数器：全部未超限时递增全部并返回递增后的值，
	// 否则不修改并返回当前值。
	Consume(ctx context.Context, tenant string, counters []Counter) (counts []int64, allowed bool, err error)
	// Peek 读取计数，不存在的计数为 0。
	Peek(ctx context.Context, tenant string, counters []Counter) ([]int64, error)
	// Delete 删除计数。
	Delete(ctx context.Context, tenant string, counters []Counter) error
	Type() string
}

// 存储类型。
const (
	TypeRedis = "redis"
	TypeLocal = "local"
)
