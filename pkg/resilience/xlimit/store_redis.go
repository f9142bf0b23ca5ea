package xlimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 有序集合的滑动日志存储。
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore 创建 Redis 滑动日志存储。
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Type() string { return TypeRedis }

func (s *RedisStore) Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	member, err := uuid.NewV7()
	if err != nil {
		member = uuid.New()
	}

	res, err := getSlidingLogScript().Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, member.String(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("xlimit: sliding log script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("xlimit: unexpected script result length %d", len(res))
	}

	var oldest time.Time
	if res[2] > 0 {
		oldest = time.UnixMilli(res[2]).In(now.Location())
	}
	return decide(now, limit, int(res[1]), oldest, window), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("xlimit: reset %s: %w", key, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
