package suite

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for JSONRPCConfig.
const (
	DefaultListMethod     = "suite/list"
	DefaultShutdownMethod = "shutdown"
	defaultStartupTimeout = 10 * time.Second
	shutdownGrace         = 2 * time.Second
)

// JSONRPCConfig describes a long-lived engine process that answers
// listing queries with newline-delimited JSON-RPC 2.0 over stdio.
type JSONRPCConfig struct {
	Binary         string
	Args           []string
	Env            []string      // appended to the current environment
	ReadySignal    string        // substring of a stderr line that marks the process ready
	StartupTimeout time.Duration // how long to wait for ReadySignal
	Method         string        // defaults to DefaultListMethod
}

// JSONRPCLister queries a persistent engine process. The process is
// started on the first List and kept until Close. Calls are serialised.
// If a call is cancelled the process is killed and restarted on the next
// List, since its output stream can no longer be trusted.
type JSONRPCLister struct {
	cfg  JSONRPCConfig
	log  zerolog.Logger
	mu   sync.Mutex
	proc *jsonrpcProcess
}

// NewJSONRPCLister returns a lister for cfg. Nothing is started yet.
func NewJSONRPCLister(cfg JSONRPCConfig, log zerolog.Logger) *JSONRPCLister {
	if cfg.Method == "" {
		cfg.Method = DefaultListMethod
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	return &JSONRPCLister{cfg: cfg, log: log}
}

// List calls the listing method with {"path": source} and returns the
// result.
func (l *JSONRPCLister) List(ctx context.Context, source string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.proc == nil || !l.proc.alive() {
		proc, err := spawnJSONRPC(ctx, l.cfg, l.log)
		if err != nil {
			return nil, err
		}
		l.proc = proc
	}
	result, err := l.proc.call(ctx, l.cfg.Method, map[string]string{"path": source})
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			l.proc.kill()
			l.proc = nil
		}
		return nil, err
	}
	return result, nil
}

// Close asks the process to shut down and kills it if it has not exited
// within a short grace period.
func (l *JSONRPCLister) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.proc == nil {
		return nil
	}
	err := l.proc.shutdown(DefaultShutdownMethod, shutdownGrace)
	l.proc = nil
	return err
}

type jsonrpcProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	nextID int64
	done   chan struct{} // closed when the process exits
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCError is an error object returned by the engine process.
type RPCError struct {
	Code     int
	CodeText string
	Message  string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("engine error [%s]: %s", e.CodeText, e.Message)
}

// UnmarshalJSON accepts both numeric and string error codes.
func (e *RPCError) UnmarshalJSON(data []byte) error {
	var aux struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Message = aux.Message

	var code int
	if err := json.Unmarshal(aux.Code, &code); err == nil {
		e.Code = code
		e.CodeText = strconv.Itoa(code)
		return nil
	}
	var text string
	if err := json.Unmarshal(aux.Code, &text); err == nil {
		e.CodeText = text
		if n, err := strconv.Atoi(text); err == nil {
			e.Code = n
		}
		return nil
	}
	return fmt.Errorf("invalid jsonrpc error code: %s", string(aux.Code))
}

// spawnJSONRPC starts the process and waits for the ready signal. ctx only
// bounds the startup; the process itself lives until killed.
func spawnJSONRPC(ctx context.Context, cfg JSONRPCConfig, log zerolog.Logger) (*jsonrpcProcess, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("jsonrpc lister has no binary")
	}
	cmd := exec.Command(cfg.Binary, cfg.Args...) //#nosec G204 -- binary comes from the user's configuration
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine process %q: %w", cfg.Binary, err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	p := &jsonrpcProcess{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
		done:   done,
	}

	ready := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		signalled := cfg.ReadySignal == ""
		if signalled {
			ready <- nil
		}
		for scanner.Scan() {
			line := scanner.Text()
			log.Debug().Str("process", cfg.Binary).Msg(line)
			if !signalled && strings.Contains(line, cfg.ReadySignal) {
				signalled = true
				ready <- nil
			}
		}
		if !signalled {
			ready <- fmt.Errorf("process exited before ready signal %q", cfg.ReadySignal)
		}
	}()

	timer := time.NewTimer(cfg.StartupTimeout)
	defer timer.Stop()
	select {
	case err := <-ready:
		if err != nil {
			p.kill()
			return nil, err
		}
	case <-timer.C:
		p.kill()
		return nil, fmt.Errorf("engine %q did not emit ready signal %q within %v", cfg.Binary, cfg.ReadySignal, cfg.StartupTimeout)
	case <-ctx.Done():
		p.kill()
		return nil, ctx.Err()
	}
	return p, nil
}

// call sends one request and waits for the response with the same id.
// Notifications and responses to other ids are skipped.
func (p *jsonrpcProcess) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !p.alive() {
		return nil, fmt.Errorf("engine process has exited")
	}
	p.nextID++
	id := p.nextID
	data, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	type reply struct {
		result json.RawMessage
		err    error
	}
	ch := make(chan reply, 1)
	go func() {
		result, err := p.roundTrip(data, id)
		ch <- reply{result, err}
	}()

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *jsonrpcProcess) roundTrip(data []byte, id int64) (json.RawMessage, error) {
	if _, err := fmt.Fprintf(p.stdin, "%s\n", data); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		var env struct {
			ID     json.RawMessage `json:"id,omitempty"`
			Result json.RawMessage `json:"result,omitempty"`
			Error  *RPCError       `json:"error,omitempty"`
		}
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w (raw: %s)", err, strings.TrimSpace(line))
		}
		if len(env.ID) == 0 || !matchID(env.ID, id) {
			continue
		}
		if env.Error != nil {
			return nil, env.Error
		}
		return env.Result, nil
	}
}

// matchID accepts both numeric ids (1) and string ids ("1").
func matchID(raw json.RawMessage, id int64) bool {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == id
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == strconv.FormatInt(id, 10)
	}
	return false
}

func (p *jsonrpcProcess) shutdown(method string, grace time.Duration) error {
	data, _ := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", Method: method})
	if _, err := fmt.Fprintf(p.stdin, "%s\n", data); err == nil {
		select {
		case <-p.done:
			return nil
		case <-time.After(grace):
		}
	}
	return p.kill()
}

func (p *jsonrpcProcess) kill() error {
	p.stdin.Close()
	select {
	case <-p.done:
		return nil
	default:
	}
	if p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

func (p *jsonrpcProcess) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
