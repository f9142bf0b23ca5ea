package xtenant

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// gRPC Metadata Key（小写）
const (
	MetaTenantID  = "x-tenant-id"
	MetaUserID    = "x-user-id"
	MetaRequestID = "x-request-id"
)

// ExtractFromMetadata 从 gRPC Metadata 提取身份信息
func ExtractFromMetadata(md metadata.MD) Identity {
	if md == nil {
		return Identity{}
	}
	return Identity{
		TenantID:  first(md, MetaTenantID),
		UserID:    first(md, MetaUserID),
		RequestID: first(md, MetaRequestID),
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

// GRPCUnaryServerInterceptor 返回注入身份信息的 gRPC 一元拦截器。
// 身份校验失败时返回 codes.InvalidArgument。
func GRPCUnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	o := buildOptions(opts)
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx, err := inject(ctx, ExtractFromMetadata(md), o)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return handler(ctx, req)
	}
}
