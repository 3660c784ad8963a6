package suite

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestJSONRPCListerIntegration builds a mock engine and tests the full
// flow: spawn, ready signal, listing calls, engine errors, shutdown.
func TestJSONRPCListerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	mockSrc := filepath.Join("..", "..", "testdata", "tools", "mock-suite-server.go")
	if _, err := os.Stat(mockSrc); err != nil {
		t.Fatalf("mock server source not found: %v", err)
	}
	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	}
	mockBin := filepath.Join(t.TempDir(), "mock-suite-server"+ext)
	buildCmd := exec.Command("go", "build", "-o", mockBin, mockSrc)
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		t.Fatalf("build mock server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("list", func(t *testing.T) {
		lister := NewJSONRPCLister(JSONRPCConfig{
			Binary:         mockBin,
			ReadySignal:    "listening",
			StartupTimeout: 5 * time.Second,
		}, zerolog.Nop())
		defer lister.Close()

		s, err := Load(ctx, lister, "suites/smoke")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if s.Len() != 2 {
			t.Fatalf("len = %d, want 2", s.Len())
		}
		if tc, ok := s.Lookup("m1.tc_a"); !ok || !tc.HasTag("smoke") {
			t.Errorf("m1.tc_a = %v, %v", tc, ok)
		}

		// the same process answers the next query
		pid := lister.proc.cmd.Process.Pid
		_, err = Load(ctx, lister, "suites/broken")
		var le *LoadError
		if !errors.As(err, &le) || le.Phase != PhaseSchema {
			t.Errorf("broken listing error = %v", err)
		}
		if lister.proc == nil || lister.proc.cmd.Process.Pid != pid {
			t.Error("process should be reused")
		}

		_, err = Load(ctx, lister, "suites/missing")
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) || rpcErr.CodeText != "NOT_FOUND" {
			t.Errorf("missing suite error = %v", err)
		}
		if !lister.proc.alive() {
			t.Error("an engine error must not kill the process")
		}
	})

	t.Run("cancelled call restarts process", func(t *testing.T) {
		lister := NewJSONRPCLister(JSONRPCConfig{
			Binary:      mockBin,
			ReadySignal: "listening",
			Method:      "test/hang",
		}, zerolog.Nop())
		defer lister.Close()

		callCtx, callCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer callCancel()
		_, err := lister.List(callCtx, "suites/smoke")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("error = %v, want deadline exceeded", err)
		}
		if lister.proc != nil {
			t.Error("process should be discarded after a cancelled call")
		}
	})

	t.Run("missing ready signal", func(t *testing.T) {
		lister := NewJSONRPCLister(JSONRPCConfig{
			Binary:         mockBin,
			ReadySignal:    "never printed",
			StartupTimeout: 300 * time.Millisecond,
		}, zerolog.Nop())
		defer lister.Close()
		if _, err := lister.List(ctx, "suites/smoke"); err == nil {
			t.Error("expected startup error")
		}
	})
}

func TestRPCError_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in       string
		code     int
		codeText string
	}{
		{`{"code":-32601,"message":"m"}`, -32601, "-32601"},
		{`{"code":"42","message":"m"}`, 42, "42"},
		{`{"code":"NOT_FOUND","message":"m"}`, 0, "NOT_FOUND"},
	}
	for _, tt := range tests {
		var e RPCError
		if err := e.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if e.Code != tt.code || e.CodeText != tt.codeText || e.Message != "m" {
			t.Errorf("%s: got %+v", tt.in, e)
		}
	}
	var e RPCError
	if err := e.UnmarshalJSON([]byte(`{"code":true}`)); err == nil {
		t.Error("expected error for boolean code")
	}
}
