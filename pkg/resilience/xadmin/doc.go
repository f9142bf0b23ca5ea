// Package xadmin 提供运维管理接口：重置限流与配额、查询配额用量与熔断器状态。
//
// Service 是与传输无关的操作集合，Handler 将其暴露为 JSON HTTP API：
//
//	DELETE /admin/ratelimits/{identifier}
//	DELETE /admin/quotas/{tenant}
//	GET    /admin/quotas/{tenant}
//	GET    /admin/circuits
//	GET    /admin/circuits/{name}
//
// Client 是对应的 HTTP 客户端，供 xshieldctl 使用。
package xadmin
