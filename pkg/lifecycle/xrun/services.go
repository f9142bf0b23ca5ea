package xrun

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Service 一个具名的长期服务。Run 应阻塞到 ctx 取消或自身失败。
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Func 将函数包装为 Service。
func Func(name string, fn func(ctx context.Context) error) Service {
	return Service{Name: name, Run: fn}
}

// Server 是 HTTPServer 所需的服务器方法，*http.Server 满足该接口。
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 将 server 包装为 Service。
// ctx 取消后调用 Shutdown，shutdownTimeout <= 0 表示等待所有连接结束。
func HTTPServer(name string, server Server, shutdownTimeout time.Duration) Service {
	return Func(name, func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		served := make(chan error, 1)
		go func() { served <- server.ListenAndServe() }()

		select {
		case err := <-served:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("xrun: %s listen: %w", name, err)
		case <-ctx.Done():
		}

		sctx := context.Background()
		if shutdownTimeout > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(sctx, shutdownTimeout)
			defer cancel()
		}
		if err := server.Shutdown(sctx); err != nil {
			return fmt.Errorf("xrun: %s shutdown: %w", name, err)
		}
		if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("xrun: %s listen: %w", name, err)
		}
		return nil
	})
}
