package xtenant

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/omeyang/xshield/pkg/context/xctx"
)

// Identity 入站请求携带的身份信息
type Identity struct {
	TenantID  string
	UserID    string
	RequestID string
}

// Validate 按要求校验身份字段。
func (id Identity) Validate(requireTenant, requireUser bool) error {
	if requireTenant && id.TenantID == "" {
		return ErrEmptyTenantID
	}
	if requireUser && id.UserID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// FromContext 从 context 读取身份信息
func FromContext(ctx context.Context) Identity {
	return Identity{
		TenantID:  xctx.TenantID(ctx),
		UserID:    xctx.UserID(ctx),
		RequestID: xctx.RequestID(ctx),
	}
}

// WithIdentity 将身份信息写入 context，空字段不写入。
func WithIdentity(ctx context.Context, id Identity) (context.Context, error) {
	if ctx == nil {
		return nil, xctx.ErrNilContext
	}
	var err error
	if v := strings.TrimSpace(id.TenantID); v != "" {
		if ctx, err = xctx.WithTenantID(ctx, v); err != nil {
			return nil, err
		}
	}
	if v := strings.TrimSpace(id.UserID); v != "" {
		if ctx, err = xctx.WithUserID(ctx, v); err != nil {
			return nil, err
		}
	}
	if v := strings.TrimSpace(id.RequestID); v != "" {
		if ctx, err = xctx.WithRequestID(ctx, v); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// newRequestID 生成请求 ID。
// UUIDv7 按时间有序，便于日志检索；生成失败时退回 v4。
func newRequestID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// options 中间件与拦截器的公共配置
type options struct {
	requireTenant   bool
	requireUser     bool
	ensureRequestID bool
}

// Option 中间件配置选项
type Option func(*options)

// WithRequireTenant 缺少租户 ID 时拒绝请求
func WithRequireTenant() Option {
	return func(o *options) { o.requireTenant = true }
}

// WithRequireUser 缺少用户 ID 时拒绝请求
func WithRequireUser() Option {
	return func(o *options) { o.requireUser = true }
}

// WithEnsureRequestID 请求未携带 request ID 时自动生成
func WithEnsureRequestID() Option {
	return func(o *options) { o.ensureRequestID = true }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// inject 校验并注入身份，供 HTTP 与 gRPC 共用。
func inject(ctx context.Context, id Identity, o *options) (context.Context, error) {
	if err := id.Validate(o.requireTenant, o.requireUser); err != nil {
		return nil, err
	}
	if o.ensureRequestID && id.RequestID == "" {
		id.RequestID = newRequestID()
	}
	return WithIdentity(ctx, id)
}
