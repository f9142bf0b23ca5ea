package xnet

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// Unknown 无法解析客户端 IP 时的占位值
const Unknown = "unknown"

// TrustedProxies 受信代理集合
type TrustedProxies struct {
	set *netipx.IPSet
}

// NewTrustedProxies 从 CIDR 或单个 IP 列表构建受信代理集合。
// 空列表表示不信任任何代理。
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	var b netipx.IPSetBuilder
	for _, raw := range entries {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidProxy, s, err)
			}
			b.AddPrefix(p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidProxy, s, err)
		}
		b.Add(addr.Unmap())
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	return &TrustedProxies{set: set}, nil
}

// Contains 判断地址是否为受信代理，nil 接收者不信任任何地址
func (t *TrustedProxies) Contains(addr netip.Addr) bool {
	if t == nil || t.set == nil || !addr.IsValid() {
		return false
	}
	return t.set.Contains(addr.Unmap())
}

// ClientIP 解析请求的真实客户端 IP。
//
// 从 RemoteAddr 开始，若其为受信代理，则自右向左遍历 X-Forwarded-For，
// 返回第一个非受信地址；XFF 为空时尝试 X-Real-IP。
func (t *TrustedProxies) ClientIP(r *http.Request) string {
	if r == nil {
		return Unknown
	}
	remote, ok := parseHostPort(r.RemoteAddr)
	if !ok {
		return Unknown
	}
	if !t.Contains(remote) {
		return remote.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if !t.Contains(addr) {
				return addr.String()
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if addr, err := netip.ParseAddr(realIP); err == nil {
			return addr.Unmap().String()
		}
	}
	return remote.String()
}

// parseHostPort 解析 "host:port" 或纯 IP 形式的地址
func parseHostPort(s string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// PeerIP 将 net.Addr（如 gRPC peer 地址）转换为 IP 字符串
func PeerIP(addr net.Addr) string {
	if addr == nil {
		return Unknown
	}
	if ip, ok := parseHostPort(addr.String()); ok {
		return ip.String()
	}
	return Unknown
}
