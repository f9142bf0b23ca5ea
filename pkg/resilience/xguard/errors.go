package xguard

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNilLimiter     = errors.New("xguard: nil rate checker")
	ErrInvalidRoute   = errors.New("xguard: invalid route config")
	ErrNilTable       = errors.New("xguard: nil route table")
	ErrNilQuotaRouter = errors.New("xguard: quota checker requires a resolver")
)

// DefaultMessage 路由未配置 Message 时的拒绝信息。
const DefaultMessage = "Too many requests, please try again later."

// DeniedError 请求被准入控制拒绝。
//
// Err 为 *xlimit.ExceededError（限流）或 *xquota.ExceededError（配额），
// 因此 errors.Is(err, xlimit.ErrRateLimited) 与 errors.Is(err, xquota.ErrQuotaExceeded)
// 分别匹配两种拒绝。
type DeniedError struct {
	// Message 返回给调用方的信息。
	Message string
	Key     string
	// ResetAt 调用方可以重试的最早时间。
	ResetAt    time.Time
	RetryAfter time.Duration
	Decision   Decision
	Err        error
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("xguard: request %q denied: %s", e.Key, e.Message)
}

func (e *DeniedError) Unwrap() error { return e.Err }

func (e *DeniedError) Retryable() bool { return false }

// IsDenied 判断 err 是否为准入拒绝。
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}
