package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xshield/pkg/config/xconf"
	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
	"github.com/omeyang/xshield/pkg/resilience/xguard"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
	"github.com/omeyang/xshield/pkg/resilience/xquota"
	"github.com/omeyang/xshield/pkg/resilience/xretry"
)

// 存储后端。
const (
	backendRedis = "redis"
	backendLocal = "local"
)

// Config serve 命令的完整配置。
type Config struct {
	Log          LogConfig                   `koanf:"log"`
	Redis        RedisConfig                 `koanf:"redis"`
	Store        StoreConfig                 `koanf:"store"`
	Limit        xlimit.Config               `koanf:"limit"`
	Quota        xquota.Config               `koanf:"quota"`
	Breakers     xbreaker.Config             `koanf:"breakers"`
	Retry        xretry.Config               `koanf:"retry"`
	Routes       []xguard.RouteEntry         `koanf:"routes"`
	Dependencies map[string]DependencyConfig `koanf:"dependencies"`
	Server       ServerConfig                `koanf:"server"`
	Report       ReportConfig                `koanf:"report"`
}

// LogConfig 日志配置。File 非空时写入文件并轮转。
type LogConfig struct {
	Level    string              `koanf:"level"`
	Format   string              `koanf:"format"`
	File     string              `koanf:"file"`
	Rotation xlog.RotationConfig `koanf:"rotation"`
}

// RedisConfig Redis 连接配置。多个地址时使用 Cluster 客户端。
type RedisConfig struct {
	Addrs       []string      `koanf:"addrs"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// StoreConfig 计数存储配置。
type StoreConfig struct {
	// Backend redis 或 local。local 仅适用于单实例部署。
	Backend string `koanf:"backend"`
	// WarmupScripts 启动时预加载 Lua 脚本。
	WarmupScripts bool `koanf:"warmup_scripts"`
	// FailClosed 存储故障时拒绝请求，默认放行。
	FailClosed bool `koanf:"fail_closed"`
}

// DependencyConfig 通过熔断与重试探测的下游依赖。
type DependencyConfig struct {
	URL string `koanf:"url"`
	// Circuit 熔断器名称，默认 "dependency:<name>"。
	Circuit string `koanf:"circuit"`
}

// ServerConfig 监听配置。
type ServerConfig struct {
	APIAddr         string        `koanf:"api_addr"`
	AdminAddr       string        `koanf:"admin_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TrustedProxies  []string      `koanf:"trusted_proxies"`
}

// ReportConfig 周期性状态报告。
type ReportConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
}

func defaultConfig() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text", Rotation: xlog.DefaultRotationConfig()},
		Redis:    RedisConfig{DialTimeout: 5 * time.Second},
		Store:    StoreConfig{Backend: backendLocal},
		Limit:    xlimit.DefaultConfig(),
		Quota:    xquota.DefaultConfig(),
		Breakers: xbreaker.DefaultConfig(),
		Retry:    xretry.DefaultConfig(),
		Server: ServerConfig{
			APIAddr:         ":8080",
			AdminAddr:       "127.0.0.1:9091",
			ShutdownTimeout: 10 * time.Second,
		},
		Report: ReportConfig{Schedule: "@every 1m"},
	}
}

// loadConfig 读取配置文件，未出现的字段保留默认值。
func loadConfig(path string) (Config, xconf.Config, error) {
	raw, err := xconf.New(path)
	if err != nil {
		return Config{}, nil, err
	}
	cfg, err := decodeConfig(raw)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, raw, nil
}

func decodeConfig(raw xconf.Config) (Config, error) {
	cfg := defaultConfig()
	if err := raw.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 校验配置。
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case backendLocal:
	case backendRedis:
		if len(c.Redis.Addrs) == 0 {
			errs = append(errs, errors.New("redis.addrs is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	if c.Breakers.SharedState && c.Store.Backend != backendRedis {
		errs = append(errs, errors.New("breakers.shared_state requires the redis backend"))
	}
	if err := c.Limit.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Quota.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Breakers.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := xguard.NewRouteTable().Replace(c.Routes); err != nil {
		errs = append(errs, err)
	}
	for name, d := range c.Dependencies {
		if u, err := url.Parse(d.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("dependency %s: invalid url %q", name, d.URL))
		}
	}
	if c.Server.APIAddr == "" || c.Server.AdminAddr == "" {
		errs = append(errs, errors.New("server.api_addr and server.admin_addr are required"))
	}
	if c.Report.Enabled {
		if _, err := cron.ParseStandard(c.Report.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("report.schedule: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// circuitName 返回依赖使用的熔断器名称。
func (d DependencyConfig) circuitName(name string) string {
	if d.Circuit != "" {
		return d.Circuit
	}
	return "dependency:" + name
}

// newRedisClient 按配置创建客户端，local 后端返回 nil。
func newRedisClient(c Config) redis.UniversalClient {
	if c.Store.Backend != backendRedis {
		return nil
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       c.Redis.Addrs,
		Username:    c.Redis.Username,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		DialTimeout: c.Redis.DialTimeout,
	})
}

func buildLogger(c LogConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().SetLevelString(c.Level).SetFormat(c.Format)
	if c.File != "" {
		b = b.SetRotation(c.File, c.Rotation)
	}
	return b.Build()
}
