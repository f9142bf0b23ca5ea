package xbreaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 的熔断器共享状态存储。
//
// 每个熔断器的状态是一个 hash。准入与结果记录各由一个 Lua 脚本原子完成，
// 下游调用期间不持有锁，同一熔断器的调用在各实例间并发执行。
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
}

// RedisStoreOption 配置 RedisStore。
type RedisStoreOption func(*RedisStore)

// WithStorePrefix 设置 key 前缀，默认 "xbreaker:"。
func WithStorePrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithStateTTL 设置状态数据的过期时间，默认 24h；长期无调用的熔断器状态随之清理。
func WithStateTTL(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithStoreTimeout 设置单次 Redis 操作的时限，默认 3s。
func WithStoreTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// NewRedisStore 创建共享状态存储。
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &RedisStore{
		client:    client,
		prefix:    "xbreaker:",
		ttl:       24 * time.Hour,
		opTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Acquire(ctx context.Context, name string, o Options, now time.Time) (Admission, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := getAcquireScript().Run(ctx, s.client, []string{s.key(name)},
		now.UnixMilli(), o.SuccessThreshold, s.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Admission{}, fmt.Errorf("xbreaker: acquire script: %w", err)
	}
	if len(res) != 5 {
		return Admission{}, fmt.Errorf("xbreaker: unexpected acquire result length %d", len(res))
	}
	return Admission{
		Allowed:       res[0] == 1,
		State:         State(res[1]),
		Generation:    uint64(res[2]),
		NextAttemptAt: unixMilli(res[3], now),
		From:          State(res[4]),
	}, nil
}

func (s *RedisStore) Release(ctx context.Context, name string, o Options, generation uint64, outcome Outcome, now time.Time) (Transition, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := getReleaseScript().Run(ctx, s.client, []string{s.key(name)},
		now.UnixMilli(), generation, int(outcome),
		o.FailureThreshold, o.SuccessThreshold, o.ResetTimeout.Milliseconds(), s.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Transition{}, fmt.Errorf("xbreaker: release script: %w", err)
	}
	if len(res) != 3 {
		return Transition{}, fmt.Errorf("xbreaker: unexpected release result length %d", len(res))
	}
	return Transition{
		From:          State(res[0]),
		To:            State(res[1]),
		NextAttemptAt: unixMilli(res[2], now),
	}, nil
}

// Load 读取状态。OPEN 已到期时按 HALF_OPEN 报告，与下一次 Acquire 的结果一致。
func (s *RedisStore) Load(ctx context.Context, name string, now time.Time) (SharedState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return SharedState{}, fmt.Errorf("xbreaker: load state %s: %w", name, err)
	}

	num := func(field string) uint64 {
		n, _ := strconv.ParseUint(fields[field], 10, 64)
		return n
	}
	st := SharedState{
		State:      State(num("state")),
		Generation: num("gen"),
		Counts: Counts{
			Requests:             uint32(num("requests")),
			TotalSuccesses:       uint32(num("total_successes")),
			TotalFailures:        uint32(num("total_failures")),
			TotalExclusions:      uint32(num("total_exclusions")),
			ConsecutiveSuccesses: uint32(num("consecutive_successes")),
			ConsecutiveFailures:  uint32(num("consecutive_failures")),
		},
	}
	if st.State == StateOpen {
		st.NextAttemptAt = unixMilli(int64(num("expiry")), now)
		if !now.Before(st.NextAttemptAt) {
			st = SharedState{State: StateHalfOpen, Generation: st.Generation + 1}
		}
	}
	return st, nil
}

// unixMilli 将毫秒时间戳转换为与 ref 相同时区的时间，0 表示零值。
func unixMilli(ms int64, ref time.Time) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).In(ref.Location())
}

var _ SharedStore = (*RedisStore)(nil)
