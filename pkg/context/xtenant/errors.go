package xtenant

import "errors"

var (
	// ErrEmptyTenantID 请求未携带租户 ID
	ErrEmptyTenantID = errors.New("xtenant: empty tenant id")

	// ErrEmptyUserID 请求未携带用户 ID
	ErrEmptyUserID = errors.New("xtenant: empty user id")
)
