package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 由信号触发停止时 context cause 匹配的哨兵错误。
	ErrSignal = errors.New("xrun: received signal")

	ErrNilFunc   = errors.New("xrun: nil service func")
	ErrNilServer = errors.New("xrun: nil server")
)

// SignalError 记录导致停止的具体信号。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "xrun: received signal <nil>"
	}
	return fmt.Sprintf("xrun: received signal %s", e.Signal)
}

func (e *SignalError) Unwrap() error { return ErrSignal }
