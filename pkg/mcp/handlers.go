package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/ormasoftchile/nttrun/pkg/config"
	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/report"
	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/selection"
	"github.com/ormasoftchile/nttrun/pkg/suite"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

// Dialer connects to the engine at addr. If the returned engine implements
// io.Closer it is closed after the batch.
type Dialer func(addr string) (protocol.Engine, error)

// Handlers implements the MCP tools. The zero value uses no configuration
// file, the process environment and gRPC engines.
type Handlers struct {
	Config *config.Config
	Log    zerolog.Logger
	Dial   Dialer
	Env    func(string) (string, bool)
	Lister suite.Lister // overrides the configured lister
}

// HandleList implements the nttrun/list MCP tool.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	tests, res := h.selectTests(ctx, args, nil)
	if res != nil {
		return res, nil
	}
	records := make([]suite.Record, len(tests))
	for i, t := range tests {
		records[i] = suite.Record{Name: t.Name(), Tags: t.Tags(), Mod: t.Module()}
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRun implements the nttrun/run MCP tool.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	names, err := stringSlice(args, "tests")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	tests, res := h.selectTests(ctx, args, names)
	if res != nil {
		return res, nil
	}
	if len(tests) == 0 {
		return errorResult("no tests selected"), nil
	}

	rawParams, err := stringSlice(args, "params")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	params := make(runner.Static, 0, len(rawParams))
	for _, s := range rawParams {
		p, err := value.ParseParameter(s)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		params = append(params, p)
	}

	r := &runner.Runner{
		EngineName:  h.Config.EngineAddress(),
		Concurrency: h.Config.Concurrency(),
		FailFast:    h.Config != nil && h.Config.Run.FailFast,
		Logger:      &h.Log,
	}
	if h.Config != nil {
		r.Timeout = h.Config.Engine.Timeout
	}
	if addr, _ := args["engine"].(string); addr != "" {
		r.EngineName = addr
	}
	if n, ok := args["concurrency"].(float64); ok && n > 0 {
		r.Concurrency = int(n)
	}
	if s, _ := args["timeout"].(string); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return errorResult(fmt.Sprintf("timeout: %s", err)), nil
		}
		r.Timeout = d
	}
	if b, ok := args["fail_fast"].(bool); ok {
		r.FailFast = b
	}

	dial := h.Dial
	if dial == nil {
		dial = func(addr string) (protocol.Engine, error) { return protocol.Dial(addr, h.Log) }
	}
	engine, err := dial(r.EngineName)
	if err != nil {
		return errorResult(fmt.Sprintf("connect to engine: %s", err)), nil
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}
	r.Engine = engine

	out, err := r.RunAll(ctx, tests, params)
	if err != nil {
		return errorResult(fmt.Sprintf("run: %s", err)), nil
	}

	var buf bytes.Buffer
	p, _ := report.New(report.FormatJSON, &buf)
	if err := p.Print(out); err != nil {
		return errorResult(err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
		IsError: !out.Summary.OK(),
	}, nil
}

// HandleSchema implements the nttrun/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := suite.GenerateListingJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// selectTests loads the suite named by args and applies the configured
// baskets and the where and tags arguments. A non-nil result reports a
// failure to the caller.
func (h *Handlers) selectTests(ctx context.Context, args map[string]any, names []string) ([]suite.Test, *mcp.CallToolResult) {
	source, _ := args["source"].(string)
	if source == "" && h.Config != nil {
		source = h.Config.Path(h.Config.Suite.Source)
	}
	if source == "" {
		return nil, errorResult("source argument is required (no suite.source configured)")
	}

	lister := h.Lister
	if lister == nil {
		l, err := h.Config.Lister("", h.Log)
		if err != nil {
			return nil, errorResult(err.Error())
		}
		if c, ok := l.(io.Closer); ok {
			defer c.Close()
		}
		lister = l
	}
	s, err := suite.Load(ctx, lister, source)
	if err != nil {
		return nil, errorResult(err.Error())
	}

	tags, err := stringSlice(args, "tags")
	if err != nil {
		return nil, errorResult(err.Error())
	}
	var tagArgs []string
	for _, t := range tags {
		tagArgs = append(tagArgs, "-R", t)
	}
	basket, err := selection.NewBasket("mcp", tagArgs...)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	env := h.Env
	if env == nil {
		env = os.LookupEnv
	}
	if err := basket.LoadBaskets(h.Config.BasketLookup(env, selection.EnvBaskets), selection.EnvBaskets); err != nil {
		return nil, errorResult(err.Error())
	}

	where, _ := args["where"].(string)
	tests, err := selection.Query{Names: names, Basket: &basket, Where: where}.Apply(s)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	return tests, nil
}

// stringSlice reads an optional array of strings argument.
func stringSlice(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string, got %T", key, i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected array of strings, got %T", key, raw)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
