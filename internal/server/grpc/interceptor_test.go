package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{"authorization": common.BearerPrefix + token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_UnprotectedMethodSkipsAuth(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	called := false

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called || resp != "ok" {
		t.Fatalf("handler not called or bad resp: %v", resp)
	}
}

func TestInterceptor_Introspect(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		wantCode codes.Code
		wantMsg  string
	}{
		{name: "missing token", ctx: context.Background(), wantCode: codes.Unauthenticated, wantMsg: "missing token"},
		{name: "invalid token", ctx: withToken("not-a-valid-jwt"), wantCode: codes.Unauthenticated, wantMsg: "invalid token"},
		{name: "no permission", ctx: withToken(mintToken(t, "bookings.read")), wantCode: codes.PermissionDenied},
		{name: "allowed", ctx: withToken(mintToken(t, IntrospectPermission)), wantCode: codes.OK},
	}

	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: IntrospectMethod}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCaller string
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, func(ctx context.Context, req any) (any, error) {
				if c, ok := ClaimsFromContext(ctx); ok {
					gotCaller = c.Username
				}
				return "ok", nil
			})

			if status.Code(err) != tt.wantCode {
				t.Fatalf("want %v, got %v (err=%v)", tt.wantCode, status.Code(err), err)
			}
			if tt.wantMsg != "" && status.Convert(err).Message() != tt.wantMsg {
				t.Fatalf("want message %q, got %q", tt.wantMsg, status.Convert(err).Message())
			}
			if tt.wantCode == codes.OK && gotCaller != "billing-svc" {
				t.Fatalf("caller claims not propagated, got %q", gotCaller)
			}
		})
	}
}
