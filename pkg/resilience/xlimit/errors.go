package xlimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited 匹配所有 *ExceededError。
	ErrRateLimited = errors.New("xlimit: rate limited")

	ErrInvalidLimit    = errors.New("xlimit: limit must be positive")
	ErrInvalidWindow   = errors.New("xlimit: window must be at least 1ms")
	ErrEmptyIdentifier = errors.New("xlimit: empty identifier")
	ErrWindowTooLarge  = errors.New("xlimit: window exceeds store max window")
	ErrNilStore        = errors.New("xlimit: nil store")
	ErrNilClient       = errors.New("xlimit: nil redis client")
	ErrUnknownAlgo     = errors.New("xlimit: unknown algorithm")
	ErrUnknownFallback = errors.New("xlimit: unknown fallback strategy")
	// ErrFallbackClosed 主存储不可用且降级策略为 closed。
	ErrFallbackClosed = errors.New("xlimit: store unavailable, fallback closed")
)

// ExceededError 标识符超出限流。
type ExceededError struct {
	Identifier string
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("xlimit: rate limit %d exceeded for %q, resets at %s",
		e.Limit, e.Identifier, e.ResetAt.Format(time.RFC3339Nano))
}

func (e *ExceededError) Is(target error) bool { return target == ErrRateLimited }

// Retryable 窗口内重试必然再次被拒绝。
func (e *ExceededError) Retryable() bool { return false }

// IsDenied 判断 err 是否为限流拒绝。
func IsDenied(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsInvalid 判断 err 是否为参数或配置错误。这类错误与存储是否可用无关，
// 不应触发降级或放行。
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrEmptyIdentifier) ||
		errors.Is(err, ErrWindowTooLarge)
}
