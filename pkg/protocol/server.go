package protocol

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ormasoftchile/nttrun/pkg/logging"
)

// Server exposes an Engine as a RuntimeServer. Engine errors wrapping
// ErrUnknownTest or ErrInvalidParameters become NotFound and
// InvalidArgument statuses; any other engine error is Internal.
type Server struct {
	engine Engine
	log    zerolog.Logger
}

// NewServer returns a RuntimeServer backed by engine.
func NewServer(engine Engine, log zerolog.Logger) *Server {
	return &Server{engine: engine, log: log}
}

// Run implements RuntimeServer.
func (s *Server) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, statusError(err)
	}
	resp, err := s.engine.Run(ctx, req)
	if err != nil {
		s.log.Debug().Err(err).Str("test", req.TestName).Msg("engine rejected run")
		return nil, statusError(err)
	}
	if resp == nil {
		return nil, status.Error(codes.Internal, "engine returned no response")
	}
	return resp, nil
}

// NewGRPCServer returns a gRPC server with the Runtime service backed by
// engine, the protobuf codec forced and request logging installed.
func NewGRPCServer(engine Engine, log zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(logging.UnaryServerInterceptor(log)),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterRuntimeServer(s, NewServer(engine, log))
	return s
}
