package xlimit

import (
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/observability/xmetrics"
)

// DefaultKeyPrefix 默认 key 前缀。
const DefaultKeyPrefix = "ratelimit:"

type options struct {
	keyPrefix string
	logger    xlog.Logger
	observer  xmetrics.Observer
	now       func() time.Time
}

// Option 配置 Limiter。
type Option func(*options)

// WithKeyPrefix 设置 key 前缀。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithLogger 设置日志输出，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置可观测性实现。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithClock 替换时钟，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
