package xquota

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config 配额配置。
type Config struct {
	// Location 计算窗口边界的时区名，如 "Asia/Shanghai"，默认 UTC。
	Location  string `koanf:"location"`
	KeyPrefix string `koanf:"key_prefix"`
	// LocalMaxKeys 本地存储每个周期最多跟踪的计数器数量。
	LocalMaxKeys int `koanf:"local_max_keys"`
	// Defaults 未单独配置的租户使用的配额。
	Defaults Limits `koanf:"defaults"`
	// Tenants 按租户覆盖的配额。
	Tenants map[string]Limits `koanf:"tenants"`
}

// DefaultConfig 返回默认配置：UTC，不限制任何租户。
func DefaultConfig() Config {
	return Config{
		Location:     "UTC",
		KeyPrefix:    DefaultKeyPrefix,
		LocalMaxKeys: DefaultLocalMaxKeys,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if _, err := c.location(); err != nil {
		return err
	}
	if c.LocalMaxKeys < 0 {
		return fmt.Errorf("xquota: local_max_keys must not be negative")
	}
	return nil
}

func (c Config) location() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("xquota: load location %q: %w", c.Location, err)
	}
	return loc, nil
}

// Options 将配置转换为 Manager 选项。
func (c Config) Options() ([]Option, error) {
	loc, err := c.location()
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLocation(loc)}
	if c.KeyPrefix != "" {
		opts = append(opts, WithKeyPrefix(c.KeyPrefix))
	}
	return opts, nil
}

// Resolver 由配置构建租户配额解析器。
func (c Config) Resolver() Resolver {
	return StaticResolver(c.Defaults, c.Tenants)
}

// NewStore 按配置创建存储：client 为 nil 时使用 LocalStore。
func NewStore(c Config, client redis.UniversalClient) (Store, error) {
	if client == nil {
		s, err := NewLocalStore(c.LocalMaxKeys)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewRedisStore(client)
	if err != nil {
		return nil, err
	}
	return s, nil
}
