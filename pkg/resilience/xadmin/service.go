package xadmin

import (
	"context"
	"errors"
	"time"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xbreaker"
	"github.com/omeyang/xshield/pkg/resilience/xlimit"
	"github.com/omeyang/xshield/pkg/resilience/xquota"
)

// ErrNotConfigured 对应组件未接入。
var ErrNotConfigured = errors.New("xadmin: component not configured")

// RateLimitResetter 重置限流记录，*xlimit.Limiter 实现了该接口。
type RateLimitResetter interface {
	Reset(ctx context.Context, identifier string) error
}

// QuotaAdmin 配额管理，*xquota.Manager 实现了该接口。
type QuotaAdmin interface {
	Reset(ctx context.Context, tenant string) error
	Usage(ctx context.Context, tenant string) (xquota.Usage, error)
}

// CircuitInspector 熔断器查询，*xbreaker.Registry 实现了该接口。
type CircuitInspector interface {
	State(name string) (xbreaker.Snapshot, error)
	Snapshots() ([]xbreaker.Snapshot, error)
}

var (
	_ RateLimitResetter = (*xlimit.Limiter)(nil)
	_ QuotaAdmin        = (*xquota.Manager)(nil)
	_ CircuitInspector  = (*xbreaker.Registry)(nil)
)

// Service 管理操作。未接入的组件对应操作返回 ErrNotConfigured。
type Service struct {
	Limiter  RateLimitResetter
	Quota    QuotaAdmin
	Breakers CircuitInspector
	Logger   xlog.Logger
}

func (s *Service) logger() xlog.Logger {
	if s.Logger == nil {
		return xlog.Default()
	}
	return s.Logger
}

// ResetRateLimit 清除 identifier 的限流记录。
func (s *Service) ResetRateLimit(ctx context.Context, identifier string) error {
	if s.Limiter == nil {
		return ErrNotConfigured
	}
	if err := s.Limiter.Reset(ctx, identifier); err != nil {
		return err
	}
	s.logger().Info(ctx, "admin reset rate limit", xlog.Identifier(identifier))
	return nil
}

// ResetQuota 清除租户当前各周期的配额计数。
func (s *Service) ResetQuota(ctx context.Context, tenant string) error {
	if s.Quota == nil {
		return ErrNotConfigured
	}
	if err := s.Quota.Reset(ctx, tenant); err != nil {
		return err
	}
	s.logger().Info(ctx, "admin reset quota", xlog.Tenant(tenant))
	return nil
}

// QuotaUsage 返回租户当前各周期的用量。
func (s *Service) QuotaUsage(ctx context.Context, tenant string) (xquota.Usage, error) {
	if s.Quota == nil {
		return xquota.Usage{}, ErrNotConfigured
	}
	return s.Quota.Usage(ctx, tenant)
}

// CircuitState 返回指定熔断器的状态。
func (s *Service) CircuitState(name string) (CircuitStatus, error) {
	if s.Breakers == nil {
		return CircuitStatus{}, ErrNotConfigured
	}
	snap, err := s.Breakers.State(name)
	if err != nil {
		return CircuitStatus{}, err
	}
	return NewCircuitStatus(snap), nil
}

// Circuits 返回所有熔断器的状态，按名称排序。
func (s *Service) Circuits() ([]CircuitStatus, error) {
	if s.Breakers == nil {
		return nil, ErrNotConfigured
	}
	snaps, err := s.Breakers.Snapshots()
	if err != nil {
		return nil, err
	}
	out := make([]CircuitStatus, len(snaps))
	for i, snap := range snaps {
		out[i] = NewCircuitStatus(snap)
	}
	return out, nil
}

// CircuitStatus 熔断器状态的 JSON 表示。
type CircuitStatus struct {
	Name                 string     `json:"name"`
	State                string     `json:"state"`
	Requests             uint32     `json:"requests"`
	TotalSuccesses       uint32     `json:"total_successes"`
	TotalFailures        uint32     `json:"total_failures"`
	ConsecutiveSuccesses uint32     `json:"consecutive_successes"`
	ConsecutiveFailures  uint32     `json:"consecutive_failures"`
	NextAttemptAt        *time.Time `json:"next_attempt_at,omitempty"`
	FailureThreshold     uint32     `json:"failure_threshold"`
	SuccessThreshold     uint32     `json:"success_threshold"`
	Timeout              string     `json:"timeout"`
	ResetTimeout         string     `json:"reset_timeout"`
}

// NewCircuitStatus 由快照构建 CircuitStatus。
func NewCircuitStatus(s xbreaker.Snapshot) CircuitStatus {
	cs := CircuitStatus{
		Name:                 s.Name,
		State:                StateName(s.State),
		Requests:             s.Counts.Requests,
		TotalSuccesses:       s.Counts.TotalSuccesses,
		TotalFailures:        s.Counts.TotalFailures,
		ConsecutiveSuccesses: s.Counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  s.Counts.ConsecutiveFailures,
		FailureThreshold:     s.Options.FailureThreshold,
		SuccessThreshold:     s.Options.SuccessThreshold,
		Timeout:              s.Options.Timeout.String(),
		ResetTimeout:         s.Options.ResetTimeout.String(),
	}
	if !s.NextAttemptAt.IsZero() {
		at := s.NextAttemptAt.UTC()
		cs.NextAttemptAt = &at
	}
	return cs
}

// StateName 返回 CLOSED、OPEN 或 HALF_OPEN。
func StateName(s xbreaker.State) string {
	switch s {
	case xbreaker.StateClosed:
		return "CLOSED"
	case xbreaker.StateOpen:
		return "OPEN"
	case xbreaker.StateHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}
