package xlimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// 限流响应头。
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Decision 一次限流检查的结果。
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt 最旧记录离开窗口的时间；窗口为空时为 now + window。
	ResetAt time.Time
	// RetryAfter 被拒绝时建议的等待时长，放行时为 0。
	RetryAfter time.Duration
}

// Headers 返回标准限流响应头。
func (d Decision) Headers() map[string]string {
	h := map[string]string{
		HeaderLimit:     strconv.Itoa(d.Limit),
		HeaderRemaining: strconv.Itoa(d.Remaining),
		HeaderReset:     strconv.FormatInt(d.ResetAt.Unix(), 10),
	}
	if d.RetryAfter > 0 {
		h[HeaderRetryAfter] = strconv.FormatInt(int64(math.Ceil(d.RetryAfter.Seconds())), 10)
	}
	return h
}

// SetHeaders 将限流响应头写入 h。Limit 为 0（未经检查）时不写入。
func (d Decision) SetHeaders(h http.Header) {
	if d.Limit <= 0 {
		return
	}
	for k, v := range d.Headers() {
		h.Set(k, v)
	}
}

// decide 由窗口内记录数与最旧记录时间计算 Decision。count 为本次检查前的记录数。
func decide(now time.Time, limit, count int, oldest time.Time, window time.Duration) Decision {
	if oldest.IsZero() {
		oldest = now
	}
	d := Decision{Limit: limit, ResetAt: oldest.Add(window)}
	if count >= limit {
		d.RetryAfter = max(d.ResetAt.Sub(now), 0)
		return d
	}
	d.Allowed = true
	d.Remaining = limit - count - 1
	return d
}
