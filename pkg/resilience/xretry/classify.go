package xretry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// UpstreamKind 上游故障类别。
type UpstreamKind int

const (
	// KindNone 不属于上游故障。
	KindNone UpstreamKind = iota
	// KindConnection 连接类：依赖不可达或响应超时。
	KindConnection
	// KindValidation 校验类：依赖拒绝了输入。
	KindValidation
)

func (k UpstreamKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindValidation:
		return "validation"
	default:
		return "none"
	}
}

var connErrnos = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ETIMEDOUT,
	syscall.EPIPE,
	io.EOF,
	io.ErrUnexpectedEOF,
	net.ErrClosed,
	context.DeadlineExceeded,
}

// KindOf 返回错误的上游故障类别。
func KindOf(err error) UpstreamKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return KindConnection
	}
	if errors.Is(err, ErrInvalidInput) {
		return KindValidation
	}
	var fe FieldErrorer
	if errors.As(err, &fe) {
		return KindValidation
	}
	if isConnection(err) {
		return KindConnection
	}
	return KindNone
}

func isConnection(err error) bool {
	for _, target := range connErrnos {
		if errors.Is(err, target) {
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// Classify 将 err 归类为上游故障。
//
// 连接类包装为 *ServiceUnavailableError（携带 dependency），校验类包装为
// *ValidationError；已分类的错误、声明不可重试的错误以及其他错误原样返回。
func Classify(dependency string, err error) error {
	if err == nil {
		return nil
	}
	var sue *ServiceUnavailableError
	var ve *ValidationError
	if errors.As(err, &sue) || errors.As(err, &ve) {
		return err
	}
	if !IsRetryable(err) {
		var fe FieldErrorer
		if !errors.As(err, &fe) && !errors.Is(err, ErrInvalidInput) {
			return err
		}
	}

	switch KindOf(err) {
	case KindValidation:
		v := &ValidationError{Err: err}
		var fe FieldErrorer
		if errors.As(err, &fe) {
			v.Fields = fe.FieldErrors()
		}
		return v
	case KindConnection:
		return &ServiceUnavailableError{Dependency: dependency, Err: err}
	default:
		return err
	}
}
