package xlog

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var globalLogger atomic.Pointer[LoggerWithLevel]

// Default 返回全局 Logger，未设置时使用 stderr text 格式的默认实例。
//
// 组件包在未通过 WithLogger 注入时回落到此实例。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	levelVar := new(slog.LevelVar)
	var l LoggerWithLevel = &xlogger{
		handler:  &EnrichHandler{base: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})},
		levelVar: levelVar,
	}
	globalLogger.CompareAndSwap(nil, &l)
	return *globalLogger.Load()
}

// SetDefault 替换全局 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// Nop 返回丢弃所有输出的 Logger，主要用于测试。
func Nop() Logger {
	return &xlogger{handler: slog.DiscardHandler, levelVar: new(slog.LevelVar)}
}
