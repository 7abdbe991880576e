// Package grpc exposes token introspection to other hotel back-end services.
// Access tokens are validated statelessly; callers authenticate with their
// own access token carrying the introspect permission.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/dmitrijs2005/hotelauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TokenValidator checks access tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	address string
	tokens  TokenValidator
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, tokens TokenValidator) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		tokens:  tokens,
		health:  health.NewServer(),
	}
}

// build creates the grpc.Server with every service registered.
func (s *GRPCServer) build() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	srv.RegisterService(&introspectionServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(IntrospectionService, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.build()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
