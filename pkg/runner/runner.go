// Package runner runs a selection of tests against an engine and collects
// their verdicts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/suite"
	"github.com/ormasoftchile/nttrun/pkg/trace"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

var (
	// ErrSkipped marks tests that were not started, or were cancelled,
	// because a fail-fast batch stopped.
	ErrSkipped = errors.New("skipped")
	// ErrParameters marks tests whose parameters could not be built.
	ErrParameters = errors.New("parameters")
)

// Error kinds returned by Result.ErrorKind.
const (
	KindTransport  = "transport"
	KindProtocol   = "protocol"
	KindSkipped    = "skipped"
	KindParameters = "parameters"
	KindEngine     = "engine"
)

// Runner executes tests against an Engine.
type Runner struct {
	Engine      protocol.Engine
	EngineName  string        // recorded in the trace, e.g. the engine address
	BatchID     string        // defaults to a random UUID
	Concurrency int           // parallel runs; values below 1 mean 1
	Timeout     time.Duration // per run; zero means no timeout
	FailFast    bool          // stop after the first fail, error or could-not-run
	Trace       *trace.Writer
	Logger      *zerolog.Logger
	OnEvent     func(Event) // called from worker goroutines
}

// EventKind distinguishes progress events.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
)

// Event reports progress of a batch. Result is set for EventFinished.
type Event struct {
	Kind   EventKind
	Index  int
	Test   suite.Test
	Result *Result
}

// Result is the outcome of one test.
type Result struct {
	Test         suite.Test
	Parameters   []value.Parameter // sent to the engine
	Response     *protocol.RunResponse
	Verdict      value.Verdict // valid only if Ran
	Err          error
	Duration     time.Duration
	EchoMismatch bool // the response named a different test
}

// Ran reports whether the engine returned a verdict. A result that did
// not run has no verdict; it is counted separately from verdicts.
func (r *Result) Ran() bool { return r.Err == nil && r.Response != nil }

// ErrorKind classifies Err, or returns "" for a result that ran.
func (r *Result) ErrorKind() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrSkipped):
		return KindSkipped
	case errors.Is(r.Err, ErrParameters):
		return KindParameters
	case errors.Is(r.Err, protocol.ErrProtocol):
		return KindProtocol
	case errors.Is(r.Err, protocol.ErrTransport):
		return KindTransport
	}
	return KindEngine
}

// Output is the outcome of a batch.
type Output struct {
	BatchID  string
	Engine   string
	Results  []Result // in the order the tests were given
	Summary  Summary
	Duration time.Duration
	// TraceErr joins every trace event that could not be written. A
	// non-nil TraceErr means the trace does not record the whole batch.
	TraceErr error
}

// traceErrors collects failed trace writes across workers.
type traceErrors struct {
	mu   sync.Mutex
	errs []error
}

func (te *traceErrors) add(err error) {
	if err == nil {
		return
	}
	te.mu.Lock()
	te.errs = append(te.errs, err)
	te.mu.Unlock()
}

func (te *traceErrors) err() error {
	te.mu.Lock()
	defer te.mu.Unlock()
	return errors.Join(te.errs...)
}

func (r *Runner) logger() *zerolog.Logger {
	if r.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return r.Logger
}

// RunAll runs tests with up to Concurrency runs in flight and returns
// their results in order. If ctx is cancelled the batch is abandoned and
// ctx.Err() is returned without results.
func (r *Runner) RunAll(ctx context.Context, tests []suite.Test, params ParamSource) (*Output, error) {
	if r.Engine == nil {
		return nil, fmt.Errorf("runner has no engine")
	}
	if params == nil {
		params = Static(nil)
	}
	batchID := r.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	log := r.logger().With().Str("batch", batchID).Logger()
	conc := max(1, r.Concurrency)

	start := time.Now()
	traced := new(traceErrors)
	traced.add(r.Trace.EmitBatchStart(r.EngineName, len(tests), conc))
	log.Info().Int("tests", len(tests)).Int("concurrency", conc).Msg("batch started")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	results := make([]Result, len(tests))
	launched := make([]bool, len(tests))
	g := new(errgroup.Group)
	g.SetLimit(conc)
	for i, t := range tests {
		if runCtx.Err() != nil {
			break
		}
		launched[i] = true
		g.Go(func() error {
			res := r.runOne(runCtx, i, t, params, &log, traced)
			if r.FailFast && failed(&res) && ctx.Err() == nil {
				if runCtx.Err() == nil {
					log.Info().Str("test", t.Name()).Msg("fail-fast: stopping batch")
				}
				stop()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("batch abandoned")
		return nil, err
	}

	for i, t := range tests {
		if !launched[i] {
			results[i] = Result{Test: t, Err: fmt.Errorf("%w: batch stopped", ErrSkipped)}
			traced.add(r.Trace.EmitRunError(t.Name(), KindSkipped, results[i].Err, 0))
			r.emit(Event{Kind: EventFinished, Index: i, Test: t, Result: &results[i]})
		}
	}

	out := &Output{
		BatchID:  batchID,
		Engine:   r.EngineName,
		Results:  results,
		Summary:  Summarize(results),
		Duration: time.Since(start),
	}
	traced.add(r.Trace.EmitBatchComplete(out.Summary.Overall, out.Summary.Counts(), out.Duration))
	out.TraceErr = traced.err()
	if out.TraceErr != nil {
		log.Error().Err(out.TraceErr).Msg("trace incomplete")
	}
	log.Info().
		Str("verdict", out.Summary.Overall.String()).
		Int("not_run", out.Summary.NotRun).
		Dur("duration", out.Duration).
		Msg("batch complete")
	return out, nil
}

// failed reports whether a result stops a fail-fast batch.
func failed(res *Result) bool {
	if !res.Ran() {
		return !errors.Is(res.Err, ErrSkipped)
	}
	return res.Verdict.OrError() >= value.VerdictFail
}

func (r *Runner) emit(ev Event) {
	if r.OnEvent != nil {
		r.OnEvent(ev)
	}
}

func (r *Runner) runOne(ctx context.Context, i int, t suite.Test, params ParamSource, log *zerolog.Logger, traced *traceErrors) (res Result) {
	res.Test = t
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if res.Ran() {
			traced.add(r.Trace.EmitRunComplete(t.Name(), res.Response.TestName, res.Verdict, res.Response.Parameters, res.Duration))
			log.Debug().Str("test", t.Name()).Str("verdict", res.Verdict.String()).Dur("duration", res.Duration).Msg("run complete")
		} else {
			traced.add(r.Trace.EmitRunError(t.Name(), res.ErrorKind(), res.Err, res.Duration))
			log.Debug().Str("test", t.Name()).Str("kind", res.ErrorKind()).Err(res.Err).Msg("run failed")
		}
		r.emit(Event{Kind: EventFinished, Index: i, Test: t, Result: &res})
	}()

	ps, err := params.Parameters(t)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrParameters, err)
		return res
	}
	res.Parameters = ps

	// Waiting for a slot may outlast a fail-fast stop.
	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrSkipped, err)
		return res
	}

	r.emit(Event{Kind: EventStarted, Index: i, Test: t})
	traced.add(r.Trace.EmitRunStart(t.Name(), ps))

	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	resp, err := r.Engine.Run(callCtx, &protocol.RunRequest{TestName: t.Name(), Parameters: ps})
	switch {
	case err != nil && ctx.Err() != nil:
		res.Err = fmt.Errorf("%w: %w", ErrSkipped, err)
	case err != nil:
		res.Err = err
	case resp == nil:
		res.Err = &protocol.ProtocolError{Op: "run", TestName: t.Name(), Code: codes.OK, Err: protocol.ErrMalformedResponse}
	default:
		if verr := resp.Validate(); verr != nil {
			res.Err = &protocol.ProtocolError{Op: "run", TestName: t.Name(), Code: codes.OK, Err: verr}
			break
		}
		res.Response = resp
		res.Verdict = resp.Verdict
		res.EchoMismatch = resp.TestName != t.Name()
	}
	return res
}
