package protocol

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors. TransportError matches ErrTransport and ProtocolError
// matches ErrProtocol under errors.Is; the remaining sentinels describe
// why a ProtocolError happened.
var (
	ErrTransport = errors.New("transport error")
	ErrProtocol  = errors.New("protocol error")

	ErrEmptyTestName      = errors.New("test name is empty")
	ErrUnknownTest        = errors.New("unknown test")
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrFailedPrecondition = errors.New("engine not ready")
)

// TransportError reports that the call did not complete: the connection
// failed, the deadline passed, the call was cancelled, or a message could
// not be serialised. Whether the engine ran the test is unknown.
type TransportError struct {
	Op   string
	Code codes.Code
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error (%s): %v", e.Op, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError reports a completed exchange that is semantically invalid:
// the engine refused the request (unknown test, malformed parameters) or
// returned a malformed response. The test did not produce a verdict.
type ProtocolError struct {
	Op       string
	TestName string
	Code     codes.Code
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.TestName != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.TestName, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// classify converts an error returned by a gRPC call into a TransportError
// or ProtocolError.
func classify(op, testName string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &TransportError{Op: op, Code: codes.Canceled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: op, Code: codes.DeadlineExceeded, Err: err}
	}
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{Op: op, Code: codes.Unknown, Err: err}
	}
	switch st.Code() {
	case codes.NotFound:
		return &ProtocolError{Op: op, TestName: testName, Code: st.Code(), Err: fmt.Errorf("%w: %s", ErrUnknownTest, st.Message())}
	case codes.InvalidArgument, codes.OutOfRange:
		return &ProtocolError{Op: op, TestName: testName, Code: st.Code(), Err: fmt.Errorf("%w: %s", ErrInvalidParameters, st.Message())}
	case codes.FailedPrecondition:
		return &ProtocolError{Op: op, TestName: testName, Code: st.Code(), Err: fmt.Errorf("%w: %s", ErrFailedPrecondition, st.Message())}
	}
	return &TransportError{Op: op, Code: st.Code(), Err: errors.New(st.Message())}
}

// statusError converts an engine error into the gRPC status sent to the
// client, the inverse of classify.
func statusError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownTest):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, ErrEmptyTestName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrFailedPrecondition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
