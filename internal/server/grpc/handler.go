package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	IntrospectionService = "hotelauth.v1.TokenIntrospection"
	IntrospectMethod     = "/" + IntrospectionService + "/Introspect"
)

// IntrospectionServer answers whether an access token is active and, if
// so, whom it was issued to.
type IntrospectionServer interface {
	Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var introspectionServiceDesc = grpc.ServiceDesc{
	ServiceName: IntrospectionService,
	HandlerType: (*IntrospectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hotelauth/v1/introspection.proto",
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntrospectionServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntrospectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntrospectionServer).Introspect(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Introspect calls the introspection method over cc.
func Introspect(ctx context.Context, cc grpc.ClientConnInterface, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, IntrospectMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Introspect never fails for a bad token: the answer is {"active": false}
// with a reason.
func (s *GRPCServer) Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	claims, err := s.tokens.Validate(req.GetValue())
	if err != nil {
		return structpb.NewStruct(map[string]any{
			"active": false,
			"reason": inactiveReason(err),
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"active":      true,
		"sub":         claims.Subject,
		"username":    claims.Username,
		"roles":       toList(claims.Roles),
		"permissions": toList(claims.Permissions),
		"jti":         claims.ID,
		"iat":         float64(claims.IssuedAt.Unix()),
		"exp":         float64(claims.ExpiresAt.Unix()),
	})
	if err != nil {
		s.logger.Error(ctx, "build introspection response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func inactiveReason(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, common.ErrSignatureInvalid):
		return "signature_invalid"
	default:
		return "invalid_token"
	}
}

func toList(in []string) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
