package protocol

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ormasoftchile/nttrun/pkg/logging"
)

// Engine runs one test. It is implemented by Client for remote engines and
// by in-process engines such as the stub engine. Implementations must be
// safe for concurrent use.
type Engine interface {
	Run(ctx context.Context, req *RunRequest) (*RunResponse, error)
}

// Client runs tests on a remote engine over gRPC. Every failure is
// returned as a *TransportError or a *ProtocolError; a test that ran and
// failed is a response with a fail or error verdict, never an error.
//
// Client never retries and does not deduplicate: issuing the same request
// twice may run the test twice.
type Client struct {
	rc   RuntimeClient
	conn *grpc.ClientConn
	log  zerolog.Logger
}

// NewClient returns a Client on an existing connection. The caller keeps
// ownership of cc.
func NewClient(cc grpc.ClientConnInterface, log zerolog.Logger) *Client {
	return &Client{rc: NewRuntimeClient(cc), log: log}
}

// Dial creates a connection to the engine at addr. Without a transport
// credentials option the connection is plaintext. The connection is
// established lazily on the first Run.
func Dial(addr string, log zerolog.Logger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(logging.UnaryClientInterceptor(log)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, &TransportError{Op: "dial " + addr, Code: codes.Unavailable, Err: err}
	}
	c := NewClient(conn, log)
	c.conn = conn
	return c, nil
}

// Close releases the connection if the Client created it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Run executes one test. A caller that cancels ctx must discard the run:
// the engine may still complete it.
func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &ProtocolError{Op: "run", Code: codes.InvalidArgument, Err: err}
	}
	resp, err := c.rc.Run(ctx, req)
	if err != nil {
		return nil, classify("run", req.TestName, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, &ProtocolError{Op: "run", TestName: req.TestName, Code: codes.OK, Err: err}
	}
	if resp.TestName != req.TestName {
		c.log.Debug().
			Str("test", req.TestName).
			Str("echo", resp.TestName).
			Msg("engine response does not echo the test name")
	}
	return resp, nil
}
