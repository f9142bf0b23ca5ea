package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError     = "error"
	KeyStack     = "stack"
	KeyDuration  = "duration"
	KeyComponent = "component"
	KeyOperation = "operation"

	KeyTenant     = "tenant"
	KeyCircuit    = "circuit"
	KeyIdentifier = "identifier"
)

// Err 创建错误属性，nil 返回空属性（slog 会忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Tenant 租户属性。
func Tenant(id string) slog.Attr {
	return slog.String(KeyTenant, id)
}

// Circuit 熔断器名称属性。
func Circuit(name string) slog.Attr {
	return slog.String(KeyCircuit, name)
}

// Identifier 限流标识符属性。
func Identifier(id string) slog.Attr {
	return slog.String(KeyIdentifier, id)
}
