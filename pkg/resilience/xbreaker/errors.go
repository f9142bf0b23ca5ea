package xbreaker

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen 匹配所有 *OpenError。
	ErrCircuitOpen = errors.New("xbreaker: circuit open")
	// ErrOperationTimeout 匹配所有 *TimeoutError。
	ErrOperationTimeout = errors.New("xbreaker: operation timeout")
	// ErrOperationPanic 匹配所有 *PanicError。
	ErrOperationPanic = errors.New("xbreaker: operation panicked")

	ErrUnknownCircuit     = errors.New("xbreaker: unknown circuit")
	ErrConflictingOptions = errors.New("xbreaker: circuit already registered with different options")
	ErrInvalidOptions     = errors.New("xbreaker: invalid options")
	ErrEmptyName          = errors.New("xbreaker: empty circuit name")
	ErrNilRegistry        = errors.New("xbreaker: nil registry")
	ErrNilFunc            = errors.New("xbreaker: nil func")
	ErrNilClient          = errors.New("xbreaker: nil redis client")
)

// OpenError 熔断器拒绝了调用，操作未被执行。
type OpenError struct {
	Name  string
	State State
	// NextAttemptAt 预计进入半开状态的时间；半开探测名额已满时为零值。
	NextAttemptAt time.Time
}

func (e *OpenError) Error() string {
	if e.NextAttemptAt.IsZero() {
		return fmt.Sprintf("xbreaker: circuit %q %s", e.Name, e.State)
	}
	return fmt.Sprintf("xbreaker: circuit %q %s until %s", e.Name, e.State, e.NextAttemptAt.Format(time.RFC3339Nano))
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// Retryable 熔断期间重试没有意义。
func (e *OpenError) Retryable() bool { return false }

// TimeoutError 调用超过了执行时限。
//
// 设计决策: 不包装 context.DeadlineExceeded，避免被误判为调用方自身超时。
type TimeoutError struct {
	Name string
	// Limit 触发超时的执行时限。
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("xbreaker: circuit %q operation timed out after %s", e.Name, e.Limit)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrOperationTimeout }

func (e *TimeoutError) Retryable() bool { return true }

// Timeout 满足 net.Error 风格的超时判断。
func (e *TimeoutError) Timeout() bool { return true }

// PanicError 操作发生 panic。
type PanicError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("xbreaker: circuit %q operation panicked: %v", e.Name, e.Value)
}

func (e *PanicError) Is(target error) bool { return target == ErrOperationPanic }

// callerAbort 标记由调用方 context 结束导致的错误，不计入熔断统计。
type callerAbort struct {
	err error
}

func (e *callerAbort) Error() string { return e.err.Error() }
func (e *callerAbort) Unwrap() error { return e.err }
