package xretry

import (
	"context"
	"time"
)

// RetryPolicy 决定失败后是否继续重试。
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（含首次）。
	MaxAttempts() int
	// ShouldRetry 判断第 attempt 次尝试（从 1 开始）失败后是否重试。
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 决定第 attempt 次重试（从 1 开始）前的等待时长。
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// FixedRetryPolicy 固定次数重试。
type FixedRetryPolicy struct {
	maxAttempts int
}

// NewFixedRetry 创建固定次数重试策略，maxAttempts 小于 1 时按 1 处理。
func NewFixedRetry(maxAttempts int) *FixedRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts}
}

func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *FixedRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil || attempt >= p.maxAttempts {
		return false
	}
	return IsRetryable(err)
}

var _ RetryPolicy = (*FixedRetryPolicy)(nil)
