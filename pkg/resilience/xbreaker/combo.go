package xbreaker

import (
	"context"

	"github.com/omeyang/xshield/pkg/resilience/xretry"
)

// Protect 组合重试与熔断：重试在外层，每次尝试都经过名为 name 的熔断器。
//
// 熔断打开时 *OpenError 不可重试，重试立即结束；超时的尝试（*TimeoutError）
// 被 xretry 归类为依赖不可用并按策略重试。policy 为 nil 时只执行一次。
func Protect[T any](ctx context.Context, r *Registry, name string, policy *xretry.Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if policy == nil {
		return Execute(ctx, r, name, fn)
	}
	return xretry.Recover(ctx, policy, func(ctx context.Context) (T, error) {
		return Execute(ctx, r, name, fn)
	})
}
