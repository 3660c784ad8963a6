package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

// JSON writes the whole batch as one indented JSON document.
type JSON struct {
	w io.Writer
}

type jsonOutput struct {
	BatchID    string       `json:"batch_id"`
	Engine     string       `json:"engine,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	Results    []jsonResult `json:"results"`
	Summary    jsonSummary  `json:"summary"`
}

type jsonResult struct {
	Test       string            `json:"test"`
	Module     string            `json:"module,omitempty"`
	Ran        bool              `json:"ran"`
	Verdict    string            `json:"verdict,omitempty"`
	Echo       string            `json:"echo,omitempty"`
	Parameters []value.Parameter `json:"parameters,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

type jsonSummary struct {
	Total   int            `json:"total"`
	NotRun  int            `json:"not_run"`
	Overall string         `json:"overall"`
	Counts  map[string]int `json:"counts"`
	OK      bool           `json:"ok"`
}

func (j *JSON) Print(out *runner.Output) error {
	doc := jsonOutput{
		BatchID:    out.BatchID,
		Engine:     out.Engine,
		DurationMs: out.Duration.Milliseconds(),
		Results:    make([]jsonResult, len(out.Results)),
		Summary: jsonSummary{
			Total:   out.Summary.Total,
			NotRun:  out.Summary.NotRun,
			Overall: out.Summary.Overall.String(),
			Counts:  out.Summary.Counts(),
			OK:      out.Summary.OK(),
		},
	}
	for i := range out.Results {
		res := &out.Results[i]
		jr := jsonResult{
			Test:       res.Test.Name(),
			Module:     res.Test.Module(),
			Ran:        res.Ran(),
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Ran() {
			jr.Verdict = res.Verdict.String()
			jr.Parameters = res.Response.Parameters
			if res.EchoMismatch {
				jr.Echo = res.Response.TestName
			}
		} else {
			jr.ErrorKind = res.ErrorKind()
			jr.Error = res.Err.Error()
		}
		doc.Results[i] = jr
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode JSON report: %w", err)
	}
	return nil
}

// TAP writes a TAP version 13 stream. Tests with a none or pass verdict
// are "ok"; everything else, including tests that did not run, is
// "not ok" with a YAML diagnostic block.
type TAP struct {
	w io.Writer
}

type tapDiagnostic struct {
	Verdict    string            `yaml:"verdict,omitempty"`
	Echo       string            `yaml:"echo,omitempty"`
	ErrorKind  string            `yaml:"error_kind,omitempty"`
	Error      string            `yaml:"error,omitempty"`
	DurationMs int64             `yaml:"duration_ms"`
	Parameters []value.Parameter `yaml:"parameters,omitempty"`
}

func (t *TAP) Print(out *runner.Output) error {
	var b strings.Builder
	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", len(out.Results))
	for i := range out.Results {
		res := &out.Results[i]
		ok := res.Ran() && !value.Worse(res.Verdict, value.VerdictPass)
		status := "ok"
		if !ok {
			status = "not ok"
		}
		directive := res.Verdict.String()
		if !res.Ran() {
			directive = "not run"
		}
		fmt.Fprintf(&b, "%s %d - %s # %s\n", status, i+1, res.Test.Name(), directive)
		if ok {
			continue
		}

		diag := tapDiagnostic{DurationMs: res.Duration.Milliseconds()}
		if res.Ran() {
			diag.Verdict = res.Verdict.String()
			diag.Parameters = res.Response.Parameters
			if res.EchoMismatch {
				diag.Echo = res.Response.TestName
			}
		} else {
			diag.ErrorKind = res.ErrorKind()
			diag.Error = res.Err.Error()
		}
		data, err := yaml.Marshal(diag)
		if err != nil {
			return fmt.Errorf("encode TAP diagnostic: %w", err)
		}
		b.WriteString("  ---\n")
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("  ...\n")
	}
	fmt.Fprintf(&b, "# %s\n", SummaryLine(out.Summary))
	_, err := io.WriteString(t.w, b.String())
	return err
}
