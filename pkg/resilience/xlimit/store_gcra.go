package xlimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// GCRAStore 基于 redis_rate 的 GCRA 算法存储。
//
// 与滑动日志不同，GCRA 以恒定速率补充配额（limit/window），突发上限为 limit；
// ResetAt 表示配额完全恢复的时间。
type GCRAStore struct {
	limiter *redis_rate.Limiter
}

// NewGCRAStore 创建 GCRA 存储。
func NewGCRAStore(client redis.UniversalClient) (*GCRAStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &GCRAStore{limiter: redis_rate.NewLimiter(client)}, nil
}

func (s *GCRAStore) Type() string { return TypeGCRA }

func (s *GCRAStore) Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	res, err := s.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: window,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("xlimit: gcra allow: %w", err)
	}

	d := Decision{
		Allowed:   res.Allowed > 0,
		Limit:     limit,
		Remaining: res.Remaining,
		ResetAt:   now.Add(res.ResetAfter),
	}
	if !d.Allowed {
		d.RetryAfter = max(res.RetryAfter, 0)
	}
	return d, nil
}

func (s *GCRAStore) Reset(ctx context.Context, key string) error {
	if err := s.limiter.Reset(ctx, key); err != nil {
		return fmt.Errorf("xlimit: reset %s: %w", key, err)
	}
	return nil
}

var _ Store = (*GCRAStore)(nil)
