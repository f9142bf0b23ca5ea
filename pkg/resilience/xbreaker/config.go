package xbreaker

import (
	"fmt"
	"maps"
	"slices"
)

// Config 熔断器注册表配置。
type Config struct {
	// Defaults 未预先注册的熔断器使用的参数，零值字段取 DefaultOptions。
	Defaults Options `koanf:"defaults"`
	// Circuits 预先注册的熔断器，零值字段取 Defaults。
	Circuits map[string]Options `koanf:"circuits"`
	// SharedState 多实例共享熔断状态（需要 Redis）。
	SharedState bool `koanf:"shared_state"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{Defaults: DefaultOptions()}
}

func (c Config) defaults() Options {
	return c.Defaults.withDefaults(DefaultOptions())
}

// Validate 校验配置。
func (c Config) Validate() error {
	if err := c.defaults().Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for name, o := range c.Circuits {
		if name == "" {
			return ErrEmptyName
		}
		if err := o.withDefaults(c.defaults()).Validate(); err != nil {
			return fmt.Errorf("circuit %s: %w", name, err)
		}
	}
	return nil
}

// Options 返回 Registry 选项（不含共享存储）。
func (c Config) Options() []RegistryOption {
	return []RegistryOption{WithDefaults(c.defaults())}
}

// Apply 按名称顺序向 r 注册 Circuits。
func (c Config) Apply(r *Registry) error {
	for _, name := range slices.Sorted(maps.Keys(c.Circuits)) {
		if err := r.Register(name, c.Circuits[name].withDefaults(c.defaults())); err != nil {
			return err
		}
	}
	return nil
}
