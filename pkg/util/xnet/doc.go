// Package xnet 提供客户端 IP 解析。
//
// 只有当直连对端属于受信代理网段时才解析 X-Forwarded-For / X-Real-IP，
// 否则直接使用 RemoteAddr，防止客户端伪造 Header 绕过按 IP 的限流。
package xnet
