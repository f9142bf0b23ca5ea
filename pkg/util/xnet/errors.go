package xnet

import "errors"

// ErrInvalidProxy 受信代理配置无法解析
var ErrInvalidProxy = errors.New("xnet: invalid trusted proxy")
