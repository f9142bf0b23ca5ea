package xbreaker

import (
	"errors"
	"fmt"
	"time"
)

// 默认熔断参数。
const (
	DefaultFailureThreshold uint32 = 5
	DefaultSuccessThreshold uint32 = 2
	DefaultTimeout                 = 10 * time.Second
	DefaultResetTimeout            = 60 * time.Second
)

// Options 单个熔断器的参数。可直接从配置文件解码。
type Options struct {
	// FailureThreshold 触发熔断的连续失败次数。
	FailureThreshold uint32 `koanf:"failure_threshold" json:"failure_threshold"`
	// SuccessThreshold 半开状态下恢复所需的连续成功次数，同时是半开状态的并发探测上限。
	SuccessThreshold uint32 `koanf:"success_threshold" json:"success_threshold"`
	// Timeout 单次调用的执行时限。
	Timeout time.Duration `koanf:"timeout" json:"timeout"`
	// ResetTimeout 从 OPEN 进入 HALF_OPEN 前的等待时长。
	ResetTimeout time.Duration `koanf:"reset_timeout" json:"reset_timeout"`
}

// DefaultOptions 返回默认参数：5 次失败熔断、2 次成功恢复、10s 调用时限、60s 重置。
func DefaultOptions() Options {
	return Options{
		FailureThreshold: DefaultFailureThreshold,
		SuccessThreshold: DefaultSuccessThreshold,
		Timeout:          DefaultTimeout,
		ResetTimeout:     DefaultResetTimeout,
	}
}

// Validate 校验参数，所有字段必须为正。
func (o Options) Validate() error {
	var errs []error
	if o.FailureThreshold == 0 {
		errs = append(errs, errors.New("failure_threshold must be positive"))
	}
	if o.SuccessThreshold == 0 {
		errs = append(errs, errors.New("success_threshold must be positive"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if o.ResetTimeout <= 0 {
		errs = append(errs, errors.New("reset_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}

// withDefaults 用默认值填充零值字段。
func (o Options) withDefaults(d Options) Options {
	if o.FailureThreshold == 0 {
		o.FailureThreshold = d.FailureThreshold
	}
	if o.SuccessThreshold == 0 {
		o.SuccessThreshold = d.SuccessThreshold
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = d.ResetTimeout
	}
	return o
}
