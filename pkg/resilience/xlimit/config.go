package xlimit

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 限流算法。
const (
	AlgorithmSlidingLog = "sliding_log"
	AlgorithmGCRA       = "gcra"
)

// Config 限流器配置。
type Config struct {
	// Algorithm 分布式存储使用的算法：sliding_log（默认）或 gcra。
	Algorithm string `koanf:"algorithm"`
	// KeyPrefix key 前缀。
	KeyPrefix string `koanf:"key_prefix"`
	// LocalMaxKeys 本地存储最多跟踪的标识符数量。
	LocalMaxKeys int `koanf:"local_max_keys"`
	// LocalMaxWindow 本地存储支持的最大窗口。
	LocalMaxWindow time.Duration `koanf:"local_max_window"`
	// Fallback Redis 不可用时的降级策略：local、open 或 closed，为空表示不降级。
	Fallback FallbackStrategy `koanf:"fallback"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Algorithm:      AlgorithmSlidingLog,
		KeyPrefix:      DefaultKeyPrefix,
		LocalMaxKeys:   DefaultLocalMaxKeys,
		LocalMaxWindow: DefaultLocalMaxWindow,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	switch c.Algorithm {
	case "", AlgorithmSlidingLog, AlgorithmGCRA:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlgo, c.Algorithm)
	}
	if c.LocalMaxKeys < 0 {
		return fmt.Errorf("xlimit: local_max_keys must not be negative")
	}
	if c.LocalMaxWindow < 0 {
		return fmt.Errorf("xlimit: local_max_window must not be negative")
	}
	return c.Fallback.Validate()
}

// NewStore 按配置创建存储：client 为 nil 时使用 LocalStore，否则按 Algorithm 选择 Redis 存储；
// 配置了 Fallback 时 Redis 存储外层包装 FallbackStore。
//
// 返回的存储若实现 io.Closer，使用完毕需调用 Close。
func NewStore(cfg Config, client redis.UniversalClient, opts ...FallbackOption) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		store Store
		err   error
	)
	switch {
	case client == nil:
		store, err = NewLocalStore(WithMaxKeys(cfg.LocalMaxKeys), WithMaxWindow(cfg.LocalMaxWindow))
	case cfg.Algorithm == AlgorithmGCRA:
		store, err = NewGCRAStore(client)
	default:
		store, err = NewRedisStore(client)
	}
	if err != nil {
		return nil, err
	}
	if client == nil || cfg.Fallback == FallbackNone {
		return store, nil
	}
	localOpts := WithFallbackLocalOptions(WithMaxKeys(cfg.LocalMaxKeys), WithMaxWindow(cfg.LocalMaxWindow))
	return NewFallbackStore(store, cfg.Fallback, append([]FallbackOption{localOpts}, opts...)...)
}

// Options 将配置转换为 Limiter 选项。
func (c Config) Options() []Option {
	if c.KeyPrefix == "" {
		return nil
	}
	return []Option{WithKeyPrefix(c.KeyPrefix)}
}
