package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/report"
	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/suite"
	"github.com/ormasoftchile/nttrun/pkg/trace"
	"github.com/ormasoftchile/nttrun/pkg/tui"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

var (
	runFlags       selectFlags
	runEngine      string
	runParams      []string
	runParamsFile  string
	runConcurrency int
	runTimeout     time.Duration
	runFailFast    bool
	runFormat      string
	runTrace       string
	runTUI         bool
)

// dialEngine connects to the engine. Tests replace it.
var dialEngine = func(addr string) (protocol.Engine, error) {
	return protocol.Dial(addr, log)
}

var runCmd = &cobra.Command{
	Use:   "run [source] [test...]",
	Short: "Run tests against an engine",
	Long: `Load a suite, select tests and run each of them with one ntt.Runtime/Run
call. Tests named after the source or with --test must exist in the
suite. Basket flags, environment baskets and --where further restrict the
selection.

Parameters come from --params (a YAML file with common and per-test
parameters) followed by every --param name=kind:value, e.g.
  --param count=int:3 --param peer=string:10.0.0.1 --param expect=verdict:pass

Exit codes:
  0  every test ran and the overall verdict is none or pass
  1  a test failed, was inconclusive, errored or could not run, or the
     batch ran but its report or trace could not be written
  2  the batch could not be started (bad flags, suite load failure)`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	source, err := resolveSource(args)
	if err != nil {
		return err
	}
	sel := runFlags
	if len(args) > 1 {
		sel.names = append(slices.Clone(sel.names), args[1:]...)
	}

	ctx := cmd.Context()
	tests, err := selectTests(ctx, cmd, &sel, source)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return fmt.Errorf("no tests selected from %s", source)
	}

	params, err := loadParams()
	if err != nil {
		return err
	}

	r := &runner.Runner{
		EngineName:  cfg.EngineAddress(),
		Concurrency: cfg.Concurrency(),
		Logger:      &log,
	}
	if cfg != nil {
		r.Timeout = cfg.Engine.Timeout
		r.FailFast = cfg.Run.FailFast
	}
	if cmd.Flags().Changed("engine") {
		r.EngineName = runEngine
	}
	if cmd.Flags().Changed("concurrency") {
		r.Concurrency = runConcurrency
	}
	if cmd.Flags().Changed("timeout") {
		r.Timeout = runTimeout
	}
	if cmd.Flags().Changed("fail-fast") {
		r.FailFast = runFailFast
	}

	format := cfg.Format()
	if cmd.Flags().Changed("format") {
		format = runFormat
	}
	printer, err := report.New(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	tracePath := runTrace
	if tracePath == "" && cfg != nil {
		tracePath = cfg.Path(cfg.Run.Trace)
	}
	if tracePath != "" {
		r.BatchID = uuid.NewString()
		tw, err := trace.NewFileWriter(tracePath, r.BatchID)
		if err != nil {
			return err
		}
		defer tw.Close()
		r.Trace = tw
	}

	engine, err := dialEngine(r.EngineName)
	if err != nil {
		return err
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}
	r.Engine = engine

	out, err := execute(ctx, r, tests, params)
	if err != nil {
		return err
	}
	if err := printer.Print(out); err != nil {
		return &exitError{code: exitVerdict, err: fmt.Errorf("batch ran (%s) but the report failed: %w", report.SummaryLine(out.Summary), err)}
	}
	var errs []error
	if !out.Summary.OK() {
		errs = append(errs, fmt.Errorf("%s", report.SummaryLine(out.Summary)))
	}
	if out.TraceErr != nil {
		errs = append(errs, fmt.Errorf("trace %s is incomplete: %w", tracePath, out.TraceErr))
	}
	if len(errs) > 0 {
		return &exitError{code: exitVerdict, err: errors.Join(errs...)}
	}
	return nil
}

// execute runs the batch, with the progress view when requested.
func execute(ctx context.Context, r *runner.Runner, tests []suite.Test, params runner.ParamSource) (*runner.Output, error) {
	if runTUI {
		return tui.Run(ctx, r, tests, params, os.Stdin, os.Stderr)
	}
	return r.RunAll(ctx, tests, params)
}

// loadParams combines the parameter file and the --param flags.
func loadParams() (*runner.ParamSet, error) {
	path := runParamsFile
	if path == "" && cfg != nil {
		path = cfg.Path(cfg.Run.Params)
	}
	ps := &runner.ParamSet{}
	if path != "" {
		var err error
		if ps, err = runner.LoadParamSet(path); err != nil {
			return nil, err
		}
	}
	extra := make([]value.Parameter, 0, len(runParams))
	for _, s := range runParams {
		p, err := value.ParseParameter(s)
		if err != nil {
			return nil, fmt.Errorf("--param: %w", err)
		}
		extra = append(extra, p)
	}
	return ps.With(extra...), nil
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().StringArrayVar(&runFlags.names, "test", nil, "Run the named test, repeatable")
	runCmd.Flags().StringVar(&runEngine, "engine", "", "Engine address host:port (default from nttrun.yaml or localhost:9999)")
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "Set a parameter (name=kind:value), repeatable")
	runCmd.Flags().StringVar(&runParamsFile, "params", "", "Path to a parameter file")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 1, "Parallel runs")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-run timeout (e.g. 30s); 0 means none")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop after the first failing test")
	runCmd.Flags().StringVar(&runFormat, "format", report.FormatConsole, "Report format: console, plain, json or tap")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a JSONL trace of the batch to this file")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress while tests run")
}
