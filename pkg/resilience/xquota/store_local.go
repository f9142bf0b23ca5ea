package xquota

import (
	"context"
	"fmt"

	"github.com/omeyang/xshield/pkg/util/xkeylock"
	"github.com/omeyang/xshield/pkg/util/xlru"
)

// DefaultLocalMaxKeys 本地存储每个周期最多跟踪的计数器数量。
const DefaultLocalMaxKeys = 100_000

// LocalStore 进程内配额存储。每个周期一个带 TTL 的 LRU，TTL 为该周期的最大长度；
// 检查与递增期间持有租户级互斥锁。
type LocalStore struct {
	counters map[Period]*xlru.Cache[string, int64]
	locks    *xkeylock.Locker
}

// NewLocalStore 创建进程内存储，maxKeys <= 0 时使用默认值。使用完毕需调用 Close。
func NewLocalStore(maxKeys int) (*LocalStore, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultLocalMaxKeys
	}
	s := &LocalStore{counters: make(map[Period]*xlru.Cache[string, int64], len(Periods))}
	for _, p := range Periods {
		c, err := xlru.New[string, int64](maxKeys, maxTTL(p))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("xquota: create local store: %w", err)
		}
		s.counters[p] = c
	}
	locks, err := xkeylock.New()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("xquota: create local store: %w", err)
	}
	s.locks = locks
	return s, nil
}

func (s *LocalStore) Type() string { return TypeLocal }

func (s *LocalStore) Consume(ctx context.Context, tenant string, counters []Counter) ([]int64, bool, error) {
	counts := make([]int64, len(counters))
	allowed := true
	err := s.locks.Do(ctx, tenant, func() error {
		for i, c := range counters {
			counts[i], _ = s.counters[c.Period].Get(c.Key)
			if c.Limit > 0 && counts[i] >= c.Limit {
				allowed = false
			}
		}
		if !allowed {
			return nil
		}
		for i, c := range counters {
			counts[i]++
			s.counters[c.Period].Set(c.Key, counts[i])
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return counts, allowed, nil
}

func (s *LocalStore) Peek(ctx context.Context, tenant string, counters []Counter) ([]int64, error) {
	counts := make([]int64, len(counters))
	err := s.locks.Do(ctx, tenant, func() error {
		for i, c := range counters {
			counts[i], _ = s.counters[c.Period].Get(c.Key)
		}
		return nil
	})
	return counts, err
}

func (s *LocalStore) Delete(ctx context.Context, tenant string, counters []Counter) error {
	return s.locks.Do(ctx, tenant, func() error {
		for _, c := range counters {
			s.counters[c.Period].Delete(c.Key)
		}
		return nil
	})
}

// Close 释放资源。
func (s *LocalStore) Close() error {
	for _, c := range s.counters {
		c.Close()
	}
	if s.locks != nil {
		return s.locks.Close()
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
