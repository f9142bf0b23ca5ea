package xquota

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrQuotaExceeded 匹配所有 *ExceededError。
	ErrQuotaExceeded = errors.New("xquota: quota exceeded")

	ErrEmptyTenant = errors.New("xquota: empty tenant id")
	ErrNilStore    = errors.New("xquota: nil store")
	ErrNilClient   = errors.New("xquota: nil redis client")
)

// ExceededError 租户超出一个或多个周期的配额。
type ExceededError struct {
	Tenant  string
	Periods []Period
	// ResetAt 被超出周期中最早的重置时间。
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	names := make([]string, len(e.Periods))
	for i, p := range e.Periods {
		names[i] = string(p)
	}
	return fmt.Sprintf("xquota: tenant %q exceeded %s quota, resets at %s",
		e.Tenant, strings.Join(names, ","), e.ResetAt.Format(time.RFC3339))
}

func (e *ExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

func (e *ExceededError) Retryable() bool { return false }
