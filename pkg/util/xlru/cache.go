package xlru

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxSize = 1 << 24

// Cache 带 TTL 的 LRU 缓存。必须通过 New 创建。
type Cache[K comparable, V any] struct {
	lru       *expirable.LRU[K, V]
	ttl       time.Duration
	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建容量为 size、条目存活 ttl 的缓存。
func New[K comparable, V any](size int, ttl time.Duration) (*Cache[K, V], error) {
	switch {
	case size <= 0:
		return nil, ErrInvalidSize
	case size > maxSize:
		return nil, ErrSizeExceedsMax
	case ttl <= 0:
		return nil, ErrInvalidTTL
	}
	return &Cache[K, V]{
		lru: expirable.NewLRU[K, V](size, nil, ttl),
		ttl: ttl,
	}, nil
}

// TTL 返回条目存活时长。
func (c *Cache[K, V]) TTL() time.Duration { return c.ttl }

// Get 获取未过期的值。
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	if c.closed.Load() {
		return value, false
	}
	return c.lru.Get(key)
}

// Set 写入值并刷新过期时间。返回 true 表示因容量已满淘汰了最旧条目。
func (c *Cache[K, V]) Set(key K, value V) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Add(key, value)
}

// Delete 删除条目，返回 key 是否存在。
func (c *Cache[K, V]) Delete(key K) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Remove(key)
}

// Len 返回条目数，可能包含已过期但尚未清理的条目。
func (c *Cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	return c.lru.Len()
}

// Close 清空缓存并停止过期清理 goroutine。幂等。
func (c *Cache[K, V]) Close() {
	c.closed.Store(true)
	c.closeOnce.Do(func() {
		c.lru.Purge()
		stopCleanupGoroutine(c.lru)
	})
}

// stopCleanupGoroutine 关闭 expirable.LRU 内部的 done 通道，使其后台清理 goroutine 退出。
//
// 设计决策: golang-lru v2.0.7 未导出停止清理 goroutine 的方法，只能通过反射访问
// 未导出字段 done。上游结构变化时降级为无操作并返回 false。
func stopCleanupGoroutine(lru any) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			stopped = false
		}
	}()

	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	done := v.Elem().FieldByName("done")
	if !done.IsValid() || done.Type() != reflect.TypeOf(make(chan struct{})) || done.IsNil() {
		return false
	}
	ch := *(*chan struct{})(unsafe.Pointer(done.UnsafeAddr())) //nolint:gosec // 访问上游未导出字段
	close(ch)
	return true
}
