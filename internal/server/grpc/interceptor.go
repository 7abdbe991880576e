package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// IntrospectPermission must be granted to callers of Introspect.
const IntrospectPermission = "auth.introspect"

type ctxKey string

const claimsKey ctxKey = "claims"

// protectedMethods maps a full method name to the permission it requires.
var protectedMethods = map[string]string{
	IntrospectMethod: IntrospectPermission,
}

// ClaimsFromContext returns the caller claims set by the interceptor.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	permission, ok := protectedMethods[info.FullMethod]
	if !ok {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(strings.ToLower(common.AuthorizationHeaderName))
		if len(values) > 0 {
			accessToken = strings.TrimSpace(strings.TrimPrefix(values[0], common.BearerPrefix))
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.tokens.Validate(accessToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	if !claims.HasPermission(permission) {
		return nil, status.Error(codes.PermissionDenied, "missing permission "+permission)
	}

	return handler(context.WithValue(ctx, claimsKey, claims), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "latency", time.Since(start)}
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error(ctx, "rpc", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, "rpc", args...)
	}
	return resp, err
}
