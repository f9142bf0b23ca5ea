// Package xretry 提供对外部依赖调用的错误恢复：重试、退避与错误分类。
//
// # 组成
//
//   - RetryPolicy：决定是否继续重试（FixedRetryPolicy、NeverRetryPolicy）
//   - BackoffPolicy：决定两次尝试之间的等待（ExponentialBackoff、FixedBackoff、NoBackoff）
//   - Retryer：组合上述两者，底层基于 [avast/retry-go/v5]
//   - Policy：面向单个依赖的恢复策略，重试后对最终错误做分类
//
// # 错误分类
//
// Classify 把底层错误归为两类上游故障：
//
//   - 连接类（拒绝连接、重置、超时、EOF、DNS 失败等）包装为 *ServiceUnavailableError，可重试
//   - 校验类（实现 FieldErrors 或包装 ErrInvalidInput）包装为 *ValidationError，不可重试
//
// 其余错误原样返回。实现 Retryable() bool 且返回 false 的错误（限流、配额、熔断）
// 永远不会被重试。
//
// # 使用方式
//
//	policy := xretry.NewPolicy("billing-db", xretry.WithMaxAttempts(3))
//	user, err := xretry.Recover(ctx, policy, func(ctx context.Context) (*User, error) {
//	    return repo.Get(ctx, id)
//	})
//	if errors.Is(err, xretry.ErrServiceUnavailable) {
//	    // 依赖不可用
//	}
//
// 默认退避为 1s 起步、倍数 2、无抖动、上限 30s，即三次尝试间等待 1s 与 2s。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
