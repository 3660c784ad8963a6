package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/suite"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

func sampleOutput() *runner.Output {
	results := []runner.Result{
		{
			Test:     suite.NewTest("m1.tc_pass", "m1"),
			Response: &protocol.RunResponse{TestName: "m1.tc_pass", Verdict: value.VerdictPass},
			Verdict:  value.VerdictPass,
			Duration: 12 * time.Millisecond,
		},
		{
			Test: suite.NewTest("m1.tc_fail", "m1"),
			Response: &protocol.RunResponse{
				TestName:   "m1.tc_fail",
				Parameters: []value.Parameter{value.NewParameter("rtt", value.Float(0.5))},
				Verdict:    value.VerdictFail,
			},
			Verdict:  value.VerdictFail,
			Duration: 3 * time.Millisecond,
		},
		{
			Test:     suite.NewTest("m2.tc_gone", "m2"),
			Err:      &protocol.TransportError{Op: "run", Err: errors.New("connection refused")},
			Duration: time.Millisecond,
		},
	}
	return &runner.Output{
		BatchID:  "b1",
		Engine:   "localhost:9999",
		Results:  results,
		Summary:  runner.Summarize(results),
		Duration: 20 * time.Millisecond,
	}
}

func TestNew(t *testing.T) {
	for _, f := range append(Formats(), "") {
		if _, err := New(f, &bytes.Buffer{}); err != nil {
			t.Errorf("New(%q): %v", f, err)
		}
	}
	if _, err := New("xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSummaryLine(t *testing.T) {
	got := SummaryLine(sampleOutput().Summary)
	want := "3 tests: 1 pass, 1 fail, 1 not run; overall fail"
	if got != want {
		t.Errorf("SummaryLine = %q, want %q", got, want)
	}
	if got := SummaryLine(runner.Summarize(nil)); got != "0 tests; overall none" {
		t.Errorf("empty SummaryLine = %q", got)
	}
}

func TestPlain(t *testing.T) {
	var buf bytes.Buffer
	p, _ := New(FormatPlain, &buf)
	if err := p.Print(sampleOutput()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "PASS") || !strings.Contains(lines[0], "m1.tc_pass (12ms)") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "NOT-RUN") || !strings.Contains(lines[2], "transport: ") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsole(&buf).Print(sampleOutput()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{GlyphPass, GlyphFail, GlyphNotRun, "m2.tc_gone", "overall fail"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	p, _ := New(FormatJSON, &buf)
	if err := p.Print(sampleOutput()); err != nil {
		t.Fatal(err)
	}
	var doc jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if doc.Summary.Overall != "fail" || doc.Summary.OK || doc.Summary.NotRun != 1 {
		t.Errorf("summary = %+v", doc.Summary)
	}
	if len(doc.Results) != 3 {
		t.Fatalf("results = %d", len(doc.Results))
	}
	if r := doc.Results[1]; r.Verdict != "fail" || len(r.Parameters) != 1 {
		t.Errorf("fail result = %+v", r)
	}
	if r := doc.Results[2]; r.Ran || r.ErrorKind != runner.KindTransport || r.Verdict != "" {
		t.Errorf("not-run result = %+v", r)
	}
}

func TestJSON_NonFiniteParameter(t *testing.T) {
	out := sampleOutput()
	out.Results[1].Response.Parameters = []value.Parameter{value.NewParameter("x", value.Float(math.NaN()))}
	var buf bytes.Buffer
	if err := (&JSON{w: &buf}).Print(out); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(buf.String(), `"float": "NaN"`) {
		t.Errorf("report = %s", buf.String())
	}
}

func TestTAP(t *testing.T) {
	var buf bytes.Buffer
	p, _ := New(FormatTAP, &buf)
	if err := p.Print(sampleOutput()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"TAP version 13\n1..3\n",
		"ok 1 - m1.tc_pass # pass\n",
		"not ok 2 - m1.tc_fail # fail\n  ---\n  verdict: fail\n",
		"not ok 3 - m2.tc_gone # not run\n",
		"  error_kind: transport\n",
		"# 3 tests: 1 pass, 1 fail, 1 not run; overall fail\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("TAP output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "  ...\n") != 2 {
		t.Errorf("expected 2 diagnostic blocks:\n%s", out)
	}
}
