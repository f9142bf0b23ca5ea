package xretry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNilRetryer = errors.New("xretry: nil retryer")
	ErrNilContext = errors.New("xretry: nil context")
	ErrNilFunc    = errors.New("xretry: nil func")
	ErrNilPolicy  = errors.New("xretry: nil policy")

	// ErrServiceUnavailable 匹配所有连接类上游故障。
	ErrServiceUnavailable = errors.New("xretry: service unavailable")
	// ErrInvalidInput 匹配所有校验类上游故障；业务错误包装它即被视为校验失败。
	ErrInvalidInput = errors.New("xretry: invalid input")
)

// RetryableError 可声明自身是否可重试的错误。
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable 判断错误是否可重试。未实现 RetryableError 的错误默认可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

// PermanentError 将任意错误标记为不可重试。
type PermanentError struct {
	Err error
}

func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "xretry: permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error   { return e.Err }
func (e *PermanentError) Retryable() bool { return false }

// ServiceUnavailableError 依赖不可达（连接类故障）。
type ServiceUnavailableError struct {
	Dependency string
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("xretry: service %q unavailable: %v", e.Dependency, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

func (e *ServiceUnavailableError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

func (e *ServiceUnavailableError) Retryable() bool { return true }

// FieldError 单个字段的校验失败。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// FieldErrorer 由携带字段级校验信息的错误实现。
type FieldErrorer interface {
	FieldErrors() []FieldError
}

// ValidationError 上游拒绝了输入（校验类故障），不可重试。
type ValidationError struct {
	Fields []FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err == nil {
			return ErrInvalidInput.Error()
		}
		return fmt.Sprintf("%s: %v", ErrInvalidInput, e.Err)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *ValidationError) Retryable() bool { return false }

func (e *ValidationError) FieldErrors() []FieldError { return e.Fields }
