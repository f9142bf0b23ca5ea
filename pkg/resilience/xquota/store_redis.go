package xquota

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 计数器与 Lua 脚本的配额存储。
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore 创建 Redis 配额存储。
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Type() string { return TypeRedis }

func (s *RedisStore) Consume(ctx context.Context, _ string, counters []Counter) ([]int64, bool, error) {
	keys := make([]string, len(counters))
	args := make([]any, 0, 2*len(counters))
	for i, c := range counters {
		keys[i] = c.Key
		args = append(args, c.Limit, c.TTL.Milliseconds())
	}

	res, err := getConsumeScript().Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, false, fmt.Errorf("xquota: consume script: %w", err)
	}
	if len(res) != len(counters)+1 {
		return nil, false, fmt.Errorf("xquota: unexpected script result length %d", len(res))
	}
	return res[1:], res[0] == 1, nil
}

func (s *RedisStore) Peek(ctx context.Context, _ string, counters []Counter) ([]int64, error) {
	keys := make([]string, len(counters))
	for i, c := range counters {
		keys[i] = c.Key
	}
	// 同一租户的 key 共享 hash tag，MGET 在 Cluster 下同样可用
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xquota: peek: %w", err)
	}
	out := make([]int64, len(counters))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("xquota: parse counter %s: %w", keys[i], err)
		}
		out[i] = n
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, _ string, counters []Counter) error {
	keys := make([]string, len(counters))
	for i, c := range counters {
		keys[i] = c.Key
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("xquota: delete: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
