package xbreaker

import "github.com/sony/gobreaker/v2"

type (
	// State 熔断器状态。
	State = gobreaker.State
	// Counts 当前统计周期内的请求计数。
	Counts = gobreaker.Counts
)

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)
