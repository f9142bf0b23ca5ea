package xbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
)

// Outcome 一次调用对熔断统计的影响。
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	// OutcomeExcluded 调用方取消，不计入成功与失败统计。
	OutcomeExcluded
)

// Admission 共享状态的准入结果。
type Admission struct {
	Allowed bool
	// From 准入前的状态；OPEN 到期切换为 HALF_OPEN 时与 State 不同。
	From  State
	State State
	// Generation 状态代数，记录结果时用于丢弃已结束周期的结果。
	Generation    uint64
	NextAttemptAt time.Time
}

// Transition 记录结果引起的状态变化，无变化时 From == To。
type Transition struct {
	From, To      State
	NextAttemptAt time.Time
}

// SharedState 熔断器在共享存储中的状态。
type SharedState struct {
	State         State
	Generation    uint64
	Counts        Counts
	NextAttemptAt time.Time
}

// SharedStore 多实例共享的熔断状态。
//
// Acquire 与 Release 各自原子地完成一次读改写，两者之间（即下游调用期间）不持有任何锁。
type SharedStore interface {
	Acquire(ctx context.Context, name string, o Options, now time.Time) (Admission, error)
	Release(ctx context.Context, name string, o Options, generation uint64, outcome Outcome, now time.Time) (Transition, error)
	Load(ctx context.Context, name string, now time.Time) (SharedState, error)
}

// executeShared 以共享状态执行一次调用：准入、调用、记录结果。
func (c *circuit) executeShared(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	r := c.registry
	adm, err := r.store.Acquire(ctx, c.name, c.opts, r.now())
	if err != nil {
		return nil, fmt.Errorf("xbreaker: acquire shared circuit %q: %w", c.name, err)
	}
	if adm.From != adm.State {
		c.stateChanged(adm.From, adm.State, time.Time{})
	}
	if !adm.Allowed {
		e := &OpenError{Name: c.name, State: adm.State}
		if adm.State == StateOpen {
			e.NextAttemptAt = adm.NextAttemptAt
		}
		return nil, e
	}

	v, callErr := c.attempt(ctx, fn)

	outcome := OutcomeFailure
	switch {
	case callErr == nil:
		outcome = OutcomeSuccess
	case isCallerAbort(callErr):
		outcome = OutcomeExcluded
	}
	// 调用方取消后仍需记录结果
	tr, err := r.store.Release(context.WithoutCancel(ctx), c.name, c.opts, adm.Generation, outcome, r.now())
	if err != nil {
		r.logger.Warn(ctx, "record shared circuit outcome failed", xlog.Circuit(c.name), xlog.Err(err))
	} else if tr.From != tr.To {
		c.stateChanged(tr.From, tr.To, tr.NextAttemptAt)
	}
	return v, callErr
}
