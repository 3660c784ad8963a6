// Package protocol implements the ntt.Runtime remote interface: the
// RunRequest/RunResponse messages, their protobuf wire encoding and the
// unary Run call between a test client and a test execution engine.
//
// The messages are plain Go structs with a hand-written protobuf codec that
// follows the schema below field for field. Field numbers are load-bearing
// for interoperability with existing engines.
//
//	message Value {
//	  oneof kind {
//	    bytes     byte_value      = 1;
//	    bool      bool_value      = 2;
//	    Verdict   verdict_value   = 3;
//	    string    string_value    = 4;
//	    double    float_value     = 5;
//	    int32     int_value       = 6;
//	    string    big_value       = 7;
//	    Composite composite_value = 8;
//	  }
//	}
//	message Composite   { repeated Value values = 1; }
//	message Parameter   { string name = 1; Value value = 2; }
//	message RunRequest  { string test_name = 1; repeated Parameter parameters = 2; }
//	message RunResponse { string test_name = 1; repeated Parameter parameters = 2; Verdict verdict = 3; }
//	service Runtime     { rpc Run(RunRequest) returns (RunResponse); }
package protocol

import (
	"fmt"

	"github.com/ormasoftchile/nttrun/pkg/value"
)

// RunRequest asks the engine to execute one test.
type RunRequest struct {
	// TestName identifies the test within the suite loaded by the engine.
	TestName string
	// Parameters are bound in order; names may repeat.
	Parameters []value.Parameter
}

// GetTestName returns the test name, or "" for a nil request.
func (x *RunRequest) GetTestName() string {
	if x != nil {
		return x.TestName
	}
	return ""
}

// GetParameters returns the parameters, or nil for a nil request.
func (x *RunRequest) GetParameters() []value.Parameter {
	if x != nil {
		return x.Parameters
	}
	return nil
}

// Validate checks the request preconditions that do not depend on the engine.
func (x *RunRequest) Validate() error {
	if x == nil || x.TestName == "" {
		return ErrEmptyTestName
	}
	return nil
}

func (x *RunRequest) String() string {
	return fmt.Sprintf("RunRequest{test_name:%q parameters:%v}", x.GetTestName(), x.GetParameters())
}

// RunResponse carries the outcome of one executed test.
type RunResponse struct {
	// TestName echoes the request's test name on success.
	TestName string
	// Parameters hold post-execution values; length and order need not
	// match the request.
	Parameters []value.Parameter
	// Verdict is stored as received. Decoding keeps unknown ordinals so
	// that Validate can reject them as a malformed response.
	Verdict value.Verdict
}

// GetTestName returns the echoed test name, or "" for a nil response.
func (x *RunResponse) GetTestName() string {
	if x != nil {
		return x.TestName
	}
	return ""
}

// GetParameters returns the output parameters, or nil for a nil response.
func (x *RunResponse) GetParameters() []value.Parameter {
	if x != nil {
		return x.Parameters
	}
	return nil
}

// GetVerdict returns the settled verdict, failing with an
// *value.UnknownVerdictError if the ordinal is outside the verdict set.
func (x *RunResponse) GetVerdict() (value.Verdict, error) {
	if x == nil {
		return value.VerdictError, fmt.Errorf("%w: nil response", ErrMalformedResponse)
	}
	return value.VerdictFromOrdinal(int32(x.Verdict))
}

// Validate checks that the response carries a settled verdict.
func (x *RunResponse) Validate() error {
	if _, err := x.GetVerdict(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func (x *RunResponse) String() string {
	if x == nil {
		return "RunResponse{}"
	}
	return fmt.Sprintf("RunResponse{test_name:%q parameters:%v verdict:%s}", x.TestName, x.Parameters, x.Verdict)
}
