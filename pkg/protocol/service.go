package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// ServiceName is the fully qualified name of the Runtime service.
	ServiceName = "ntt.Runtime"
	// RunMethod is the full method name of Runtime.Run.
	RunMethod = "/ntt.Runtime/Run"
)

// RuntimeClient is the client API for the Runtime service.
type RuntimeClient interface {
	Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error)
}

type runtimeClient struct {
	cc grpc.ClientConnInterface
}

// NewRuntimeClient returns a raw Runtime client on cc. Errors are returned
// as gRPC status errors; Client wraps this with error classification.
func NewRuntimeClient(cc grpc.ClientConnInterface) RuntimeClient {
	return &runtimeClient{cc: cc}
}

func (c *runtimeClient) Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	out := new(RunResponse)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := c.cc.Invoke(ctx, RunMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RuntimeServer is the server API for the Runtime service.
type RuntimeServer interface {
	Run(context.Context, *RunRequest) (*RunResponse, error)
}

// UnimplementedRuntimeServer can be embedded to satisfy RuntimeServer.
type UnimplementedRuntimeServer struct{}

func (UnimplementedRuntimeServer) Run(context.Context, *RunRequest) (*RunResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Run not implemented")
}

// RegisterRuntimeServer registers srv on s. The server must be created
// with grpc.ForceServerCodec(Codec{}); NewGRPCServer does that.
func RegisterRuntimeServer(s grpc.ServiceRegistrar, srv RuntimeServer) {
	s.RegisterService(&RuntimeServiceDesc, srv)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RunMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServer).Run(ctx, req.(*RunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RuntimeServiceDesc is the grpc.ServiceDesc for the Runtime service.
var RuntimeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuntimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler:    runHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "runtime.proto",
}
