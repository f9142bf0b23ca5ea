package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xadmin"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
)

// reporter 按 cron 表达式周期性记录熔断器状态与存储类型。
type reporter struct {
	breakers  *xbreaker.Registry
	limitType string
	quotaType string
	logger    xlog.Logger
	// mutex 多实例共享 Redis 时保证同一时刻只有一个实例输出报告，local 后端为 nil。
	mutex *redsync.Mutex
}

// reportLockTTL 报告锁的过期时间，实例在报告途中退出时锁随之过期。
const reportLockTTL = 30 * time.Second

// newReportMutex 创建报告使用的分布式锁，client 为 nil 时返回 nil。
func newReportMutex(client redis.UniversalClient) *redsync.Mutex {
	if client == nil {
		return nil
	}
	rs := redsync.New(goredis.NewPool(client))
	return rs.NewMutex("xshield:report:lock",
		redsync.WithExpiry(reportLockTTL),
		redsync.WithTries(1),
	)
}

// tick 执行一次调度：持有锁时输出报告，锁被其他实例持有时跳过。
func (r *reporter) tick(ctx context.Context) bool {
	if r.mutex == nil {
		r.report(ctx)
		return true
	}
	if err := r.mutex.TryLockContext(ctx); err != nil {
		r.logger.Debug(ctx, "report skipped", xlog.Err(err))
		return false
	}
	defer func() {
		// 独立的 context，避免 ctx 取消导致锁无法释放
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if _, err := r.mutex.UnlockContext(unlockCtx); err != nil {
			r.logger.Warn(ctx, "report unlock failed", xlog.Err(err))
		}
	}()
	r.report(ctx)
	return true
}

// report 输出一次状态，返回非 CLOSED 的熔断器数量。
func (r *reporter) report(ctx context.Context) int {
	snaps, err := r.breakers.Snapshots()
	if err != nil {
		r.logger.Warn(ctx, "report: read circuits failed", xlog.Err(err))
		return 0
	}
	unhealthy := 0
	for _, s := range snaps {
		if s.State != xbreaker.StateClosed {
			unhealthy++
			st := xadmin.NewCircuitStatus(s)
			r.logger.Warn(ctx, "report: circuit not closed",
				xlog.Circuit(st.Name),
				slog.String("state", st.State),
				slog.Any("next_attempt_at", st.NextAttemptAt),
			)
		}
	}
	r.logger.Info(ctx, "report",
		slog.Int("circuits", len(snaps)),
		slog.Int("unhealthy", unhealthy),
		slog.String("limit_store", r.limitType),
		slog.String("quota_store", r.quotaType),
	)
	return unhealthy
}

// run 启动调度并阻塞到 ctx 取消，返回前等待运行中的报告结束。
func (r *reporter) run(schedule string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := c.AddFunc(schedule, func() { r.tick(ctx) }); err != nil {
			return fmt.Errorf("report schedule %q: %w", schedule, err)
		}
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	}
}
