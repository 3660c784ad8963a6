// Package stubengine is a scripted test engine. It answers Run requests
// and listing queries from a YAML script, which makes it usable as a
// stand-in for a real engine in tests and demos.
//
//	unknown: reject            # or error-verdict
//	tests:
//	  - name: m1.tc_pass
//	    mod: m1
//	    tags: ["@smoke"]
//	    verdict: pass
//	  - name: m1.tc_slow
//	    mod: m1
//	    verdict: inconc
//	    delay: 200ms
//	    require: [peer]        # missing parameters are rejected
//	    parameters:            # returned instead of echoing the request
//	      - name: rtt
//	        value: {float: 0.12}
//	  - name: m1.tc_broken
//	    mod: m1
//	    fail: invalid          # unknown | invalid | precondition | <message>
package stubengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/suite"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

// Policies for requests naming a test that is not in the script.
const (
	UnknownReject       = "reject"
	UnknownErrorVerdict = "error-verdict"
)

// Script is the YAML document driving an Engine.
type Script struct {
	Unknown string       `yaml:"unknown,omitempty"`
	Tests   []ScriptTest `yaml:"tests"`
}

// ScriptTest scripts the behaviour of one test.
type ScriptTest struct {
	Name       string            `yaml:"name"`
	Mod        string            `yaml:"mod,omitempty"`
	Tags       []string          `yaml:"tags,omitempty"`
	Verdict    value.Verdict     `yaml:"verdict,omitempty"`
	Ordinal    *int32            `yaml:"ordinal,omitempty"` // sent as the verdict without validation
	Parameters []value.Parameter `yaml:"parameters,omitempty"`
	Require    []string          `yaml:"require,omitempty"`
	Delay      time.Duration     `yaml:"delay,omitempty"`
	Fail       string            `yaml:"fail,omitempty"`
	Echo       string            `yaml:"echo,omitempty"` // test name to answer with
}

// Engine runs scripted tests. It is safe for concurrent use.
type Engine struct {
	script Script
	index  map[string]int
	calls  []atomic.Int64
}

// Load reads a script file.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stub script: %w", err)
	}
	e, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("stub script %s: %w", path, err)
	}
	return e, nil
}

// Parse decodes a script. Unknown keys are rejected.
func Parse(data []byte) (*Engine, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return New(s)
}

// New returns an engine for s.
func New(s Script) (*Engine, error) {
	switch s.Unknown {
	case "":
		s.Unknown = UnknownReject
	case UnknownReject, UnknownErrorVerdict:
	default:
		return nil, fmt.Errorf("unknown: %q is neither %q nor %q", s.Unknown, UnknownReject, UnknownErrorVerdict)
	}
	e := &Engine{
		script: s,
		index:  make(map[string]int, len(s.Tests)),
		calls:  make([]atomic.Int64, len(s.Tests)),
	}
	for i, t := range s.Tests {
		if t.Name == "" {
			return nil, fmt.Errorf("tests[%d]: empty name", i)
		}
		if _, dup := e.index[t.Name]; dup {
			return nil, fmt.Errorf("tests[%d]: duplicate test %q", i, t.Name)
		}
		if !t.Verdict.Valid() {
			return nil, fmt.Errorf("tests[%d]: %w", i, &value.UnknownVerdictError{Ordinal: int32(t.Verdict)})
		}
		e.index[t.Name] = i
	}
	return e, nil
}

// Calls returns how many times the named test was run.
func (e *Engine) Calls(name string) int {
	i, ok := e.index[name]
	if !ok {
		return 0
	}
	return int(e.calls[i].Load())
}

// Run implements protocol.Engine.
func (e *Engine) Run(ctx context.Context, req *protocol.RunRequest) (*protocol.RunResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, ok := e.index[req.TestName]
	if !ok {
		if e.script.Unknown == UnknownErrorVerdict {
			return &protocol.RunResponse{TestName: req.TestName, Verdict: value.VerdictError}, nil
		}
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownTest, req.TestName)
	}
	e.calls[i].Add(1)
	t := &e.script.Tests[i]

	for _, name := range t.Require {
		if !slices.ContainsFunc(req.Parameters, func(p value.Parameter) bool { return p.Name == name }) {
			return nil, fmt.Errorf("%w: missing parameter %q", protocol.ErrInvalidParameters, name)
		}
	}

	if t.Delay > 0 {
		timer := time.NewTimer(t.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch t.Fail {
	case "":
	case "unknown":
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownTest, req.TestName)
	case "invalid":
		return nil, fmt.Errorf("%w: rejected by script", protocol.ErrInvalidParameters)
	case "precondition":
		return nil, fmt.Errorf("%w: rejected by script", protocol.ErrFailedPrecondition)
	default:
		return nil, errors.New(t.Fail)
	}

	resp := &protocol.RunResponse{
		TestName:   req.TestName,
		Parameters: slices.Clone(req.Parameters),
		Verdict:    t.Verdict,
	}
	if t.Echo != "" {
		resp.TestName = t.Echo
	}
	if t.Parameters != nil {
		resp.Parameters = slices.Clone(t.Parameters)
	}
	if t.Ordinal != nil {
		resp.Verdict = value.Verdict(*t.Ordinal)
	}
	return resp, nil
}

// List implements suite.Lister. The source is ignored; the listing holds
// every scripted test.
func (e *Engine) List(ctx context.Context, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]suite.Record, len(e.script.Tests))
	for i, t := range e.script.Tests {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		records[i] = suite.Record{Name: t.Name, Tags: tags, Mod: t.Mod}
	}
	return json.Marshal(records)
}
