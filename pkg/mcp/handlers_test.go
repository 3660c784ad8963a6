package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/ormasoftchile/nttrun/pkg/config"
	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/stubengine"
	"github.com/ormasoftchile/nttrun/pkg/suite"
)

const script = `
tests:
  - {name: m1.tc_a, mod: m1, tags: ["@smoke"], verdict: pass}
  - {name: m1.tc_b, mod: m1, verdict: fail}
  - {name: m2.tc_c, mod: m2, tags: ["@smoke"], verdict: pass, parameters: [{name: rtt, value: {float: 0.5}}]}
`

func newHandlers(t *testing.T) (*Handlers, *stubengine.Engine) {
	t.Helper()
	engine, err := stubengine.Parse([]byte(script))
	if err != nil {
		t.Fatal(err)
	}
	return &Handlers{
		Config: &config.Config{Suite: config.SuiteConfig{Source: "stub"}},
		Log:    zerolog.Nop(),
		Lister: engine,
		Env:    func(string) (string, bool) { return "", false },
		Dial:   func(string) (protocol.Engine, error) { return engine, nil },
	}, engine
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleList(t *testing.T) {
	h, _ := newHandlers(t)
	res, err := h.HandleList(context.Background(), call(map[string]any{"tags": []any{"@smoke"}}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	var records []suite.Record
	if err := json.Unmarshal([]byte(text(t, res)), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Name != "m1.tc_a" || records[1].Name != "m2.tc_c" {
		t.Errorf("records = %+v", records)
	}
}

func TestHandleList_Where(t *testing.T) {
	h, _ := newHandlers(t)
	res, _ := h.HandleList(context.Background(), call(map[string]any{"where": `module == "m2"`}))
	if res.IsError || !strings.Contains(text(t, res), "m2.tc_c") || strings.Contains(text(t, res), "m1.") {
		t.Errorf("result = %s", text(t, res))
	}

	res, _ = h.HandleList(context.Background(), call(map[string]any{"where": "name +"}))
	if !res.IsError {
		t.Error("expected error for a bad expression")
	}
}

func TestHandleList_NoSource(t *testing.T) {
	h, _ := newHandlers(t)
	h.Config = nil
	res, _ := h.HandleList(context.Background(), call(map[string]any{}))
	if !res.IsError {
		t.Error("expected error without a source")
	}
}

func TestHandleRun(t *testing.T) {
	h, engine := newHandlers(t)
	res, err := h.HandleRun(context.Background(), call(map[string]any{
		"tests":  []any{"m1.tc_a", "m2.tc_c"},
		"params": []any{"count=int:3"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	var doc struct {
		Results []struct {
			Test    string `json:"test"`
			Verdict string `json:"verdict"`
		} `json:"results"`
		Summary struct {
			Overall string `json:"overall"`
			OK      bool   `json:"ok"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text(t, res)), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Results) != 2 || doc.Summary.Overall != "pass" || !doc.Summary.OK {
		t.Errorf("report = %+v", doc)
	}
	if engine.Calls("m1.tc_b") != 0 {
		t.Error("unselected test was run")
	}
}

func TestHandleRun_FailingBatchIsError(t *testing.T) {
	h, _ := newHandlers(t)
	res, _ := h.HandleRun(context.Background(), call(map[string]any{}))
	if !res.IsError {
		t.Error("a batch with a failing test should be reported as an error")
	}
	if !strings.Contains(text(t, res), `"overall": "fail"`) {
		t.Errorf("report = %s", text(t, res))
	}
}

func TestHandleRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"unknown test", map[string]any{"tests": []any{"m9.tc_x"}}},
		{"bad tests type", map[string]any{"tests": "m1.tc_a"}},
		{"bad param", map[string]any{"params": []any{"novalue"}}},
		{"bad timeout", map[string]any{"timeout": "soon"}},
		{"nothing selected", map[string]any{"where": "false"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandlers(t)
			res, err := h.HandleRun(context.Background(), call(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsError {
				t.Errorf("expected error result, got %s", text(t, res))
			}
		})
	}

	h, _ := newHandlers(t)
	h.Dial = func(string) (protocol.Engine, error) { return nil, errors.New("refused") }
	res, _ := h.HandleRun(context.Background(), call(map[string]any{}))
	if !res.IsError || !strings.Contains(text(t, res), "refused") {
		t.Errorf("dial failure = %s", text(t, res))
	}
}

func TestHandleSchema(t *testing.T) {
	h, _ := newHandlers(t)
	res, err := h.HandleSchema(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(text(t, res), `"name"`) {
		t.Errorf("schema = %s", text(t, res))
	}
}

func TestNewServer(t *testing.T) {
	h, _ := newHandlers(t)
	if NewServer("test", h) == nil {
		t.Fatal("nil server")
	}
}
