package xguard

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/omeyang/xshield/pkg/context/xctx"
	"github.com/omeyang/xshield/pkg/context/xtenant"
	"github.com/omeyang/xshield/pkg/util/xnet"
)

// GRPCMethod gRPC 请求在默认 key 中使用的 method 字段。
const GRPCMethod = "GRPC"

// UnaryServerInterceptor 返回查询路由表的 gRPC 一元拦截器，路由表以完整方法名
// （如 "/pkg.Service/Method"）为 path，method 为空或 GRPC。
//
// 拒绝时返回 codes.ResourceExhausted，并通过 header metadata 返回限流信息。
func (g *Guard) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		cfg := g.table.Lookup(GRPCMethod, info.FullMethod)
		if cfg == nil {
			return handler(ctx, req)
		}
		if _, err := g.Admit(ctx, GRPCRequest(ctx, info.FullMethod), cfg); err != nil {
			var de *DeniedError
			if errors.As(err, &de) {
				_ = grpc.SetHeader(ctx, headerMD(de))
				return nil, status.Error(codes.ResourceExhausted, de.Message)
			}
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return handler(ctx, req)
	}
}

// GRPCRequest 从 gRPC 上下文提取 Request。
func GRPCRequest(ctx context.Context, fullMethod string) Request {
	tenant, user := xctx.TenantID(ctx), xctx.UserID(ctx)
	if tenant == "" || user == "" {
		md, _ := metadata.FromIncomingContext(ctx)
		id := xtenant.ExtractFromMetadata(md)
		if tenant == "" {
			tenant = id.TenantID
		}
		if user == "" {
			user = id.UserID
		}
	}
	ip := xctx.ClientIP(ctx)
	if ip == "" {
		ip = xnet.Unknown
		if p, ok := peer.FromContext(ctx); ok {
			ip = xnet.PeerIP(p.Addr)
		}
	}
	return Request{
		TenantID: tenant,
		UserID:   user,
		ClientIP: ip,
		Method:   GRPCMethod,
		Path:     fullMethod,
		Route:    fullMethod,
	}
}

func headerMD(de *DeniedError) metadata.MD {
	md := metadata.MD{}
	for k, v := range de.Headers() {
		md.Set(strings.ToLower(k), v...)
	}
	md.Set("x-ratelimit-reset-at", de.ResetAt.UTC().Format(time.RFC3339))
	return md
}
