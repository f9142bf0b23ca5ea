package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Handle 已获取的锁
type Handle interface {
	// Unlock 释放锁，重复调用返回 ErrLockNotHeld
	Unlock() error
	Key() string
}

// Locker 按 key 加锁
type Locker struct {
	shards   []shard
	mask     uint64
	maxKeys  int
	keyCount atomic.Int64
	closed   atomic.Bool
	done     chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ch     chan struct{}
	refcnt int32 // 受 shard.mu 保护
}

type handle struct {
	l     *Locker
	key   string
	entry *entry
	done  atomic.Bool
}

// New 创建 Locker
func New(opts ...Option) (*Locker, error) {
	o := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	shards := make([]shard, o.shardCount)
	for i := range shards {
		shards[i].entries = make(map[string]*entry)
	}
	return &Locker{
		shards:  shards,
		mask:    uint64(o.shardCount - 1),
		maxKeys: o.maxKeys,
		done:    make(chan struct{}),
	}, nil
}

func (l *Locker) shard(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)&l.mask]
}

func (l *Locker) ref(key string) (*entry, error) {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.closed.Load() {
		return nil, ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		if l.maxKeys > 0 && l.keyCount.Load() >= int64(l.maxKeys) {
			return nil, ErrMaxKeysExceeded
		}
		l.keyCount.Add(1)
		e = &entry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refcnt++
	return e, nil
}

func (l *Locker) unref(key string, e *entry) {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refcnt--
	if e.refcnt == 0 {
		delete(s.entries, key)
		l.keyCount.Add(-1)
	}
}

// Acquire 获取 key 的锁，阻塞直到成功、ctx 取消或 Locker 关闭。
func (l *Locker) Acquire(ctx context.Context, key string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &handle{l: l, key: key, entry: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-l.done:
		l.unref(key, e)
		return nil, ErrClosed
	}
}

// Do 在持有 key 锁期间执行 fn
func (l *Locker) Do(ctx context.Context, key string, fn func() error) error {
	h, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = h.Unlock() }()
	return fn()
}

// Len 返回当前活跃（持有或等待中）的 key 数量
func (l *Locker) Len() int {
	return int(max(l.keyCount.Load(), 0))
}

// Close 关闭 Locker，正在等待的 Acquire 返回 ErrClosed。已持有的锁仍可正常释放。
func (l *Locker) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(l.done)
	return nil
}

func (h *handle) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.entry.ch
	h.l.unref(h.key, h.entry)
	return nil
}

func (h *handle) Key() string {
	return h.key
}
