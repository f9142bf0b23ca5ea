package xctx

import "context"

// WithTenantID 将 tenant ID 注入 context
//
// 设计决策: 返回 error 而非 panic，虽然唯一错误条件是 nil ctx，
// 但保持所有 WithXxx 签名一致，便于中间件链统一处理。
func WithTenantID(ctx context.Context, tenantID string) (context.Context, error) {
	return withValue(ctx, keyTenantID, tenantID)
}

// TenantID 从 context 提取 tenant ID，不存在返回空字符串
func TenantID(ctx context.Context) string {
	return value(ctx, keyTenantID)
}

// RequireTenantID 从 context 获取 tenant ID，不存在则返回 ErrMissingTenantID。
func RequireTenantID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := TenantID(ctx)
	if v == "" {
		return "", ErrMissingTenantID
	}
	return v, nil
}

// WithUserID 将 user ID 注入 context
func WithUserID(ctx context.Context, userID string) (context.Context, error) {
	return withValue(ctx, keyUserID, userID)
}

// UserID 从 context 提取 user ID，不存在返回空字符串
func UserID(ctx context.Context) string {
	return value(ctx, keyUserID)
}

// RequireUserID 从 context 获取 user ID，不存在则返回 ErrMissingUserID。
func RequireUserID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := UserID(ctx)
	if v == "" {
		return "", ErrMissingUserID
	}
	return v, nil
}
