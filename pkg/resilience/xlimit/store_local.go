package xlimit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/omeyang/xshield/pkg/util/xkeylock"
	"github.com/omeyang/xshield/pkg/util/xlru"
)

// 本地存储默认参数。
const (
	DefaultLocalMaxKeys   = 100_000
	DefaultLocalMaxWindow = time.Hour
)

// LocalStore 进程内滑动日志存储，适用于单实例部署与测试。
//
// 每个 key 的日志存放在带 TTL 的 LRU 中，TTL 为 maxWindow：每次写入刷新过期时间，
// 超过 maxWindow 未访问的 key 必然已无有效记录，随之过期。
type LocalStore struct {
	maxWindow time.Duration
	logs      *xlru.Cache[string, []time.Time]
	locks     *xkeylock.Locker
}

// LocalStoreOption 配置 LocalStore。
type LocalStoreOption func(*localStoreOptions)

type localStoreOptions struct {
	maxKeys   int
	maxWindow time.Duration
}

// WithMaxKeys 设置最多跟踪的标识符数量，超出时淘汰最久未使用的标识符。
func WithMaxKeys(n int) LocalStoreOption {
	return func(o *localStoreOptions) {
		if n > 0 {
			o.maxKeys = n
		}
	}
}

// WithMaxWindow 设置支持的最大窗口。
func WithMaxWindow(d time.Duration) LocalStoreOption {
	return func(o *localStoreOptions) {
		if d > 0 {
			o.maxWindow = d
		}
	}
}

// NewLocalStore 创建进程内存储。使用完毕需调用 Close。
func NewLocalStore(opts ...LocalStoreOption) (*LocalStore, error) {
	o := &localStoreOptions{maxKeys: DefaultLocalMaxKeys, maxWindow: DefaultLocalMaxWindow}
	for _, opt := range opts {
		opt(o)
	}

	logs, err := xlru.New[string, []time.Time](o.maxKeys, o.maxWindow)
	if err != nil {
		return nil, fmt.Errorf("xlimit: create local store: %w", err)
	}
	locks, err := xkeylock.New()
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("xlimit: create local store: %w", err)
	}
	return &LocalStore{maxWindow: o.maxWindow, logs: logs, locks: locks}, nil
}

func (s *LocalStore) Type() string { return TypeLocal }

// MaxWindow 返回支持的最大窗口。
func (s *LocalStore) MaxWindow() time.Duration { return s.maxWindow }

func (s *LocalStore) Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	if window > s.maxWindow {
		return Decision{}, fmt.Errorf("%w: %s > %s", ErrWindowTooLarge, window, s.maxWindow)
	}

	var d Decision
	err := s.locks.Do(ctx, key, func() error {
		entries, _ := s.logs.Get(key)

		// 日志按时间升序，丢弃 <= now-window 的前缀
		cutoff := now.Add(-window)
		i := sort.Search(len(entries), func(i int) bool { return entries[i].After(cutoff) })
		if i > 0 {
			entries = append([]time.Time(nil), entries[i:]...)
		}

		var oldest time.Time
		if len(entries) > 0 {
			oldest = entries[0]
		}
		d = decide(now, limit, len(entries), oldest, window)
		if d.Allowed {
			entries = append(entries, now)
		}
		if len(entries) > 0 {
			s.logs.Set(key, entries)
		} else {
			s.logs.Delete(key)
		}
		return nil
	})
	return d, err
}

func (s *LocalStore) Reset(ctx context.Context, key string) error {
	return s.locks.Do(ctx, key, func() error {
		s.logs.Delete(key)
		return nil
	})
}

// Len 返回当前跟踪的标识符数量。
func (s *LocalStore) Len() int { return s.logs.Len() }

// Close 释放资源。
func (s *LocalStore) Close() error {
	s.logs.Close()
	return s.locks.Close()
}

var _ Store = (*LocalStore)(nil)
