// Package report renders the results of a batch of runs.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

// Output formats accepted by New.
const (
	FormatConsole = "console"
	FormatPlain   = "plain"
	FormatJSON    = "json"
	FormatTAP     = "tap"
)

// Formats lists the accepted formats.
func Formats() []string {
	return []string{FormatConsole, FormatPlain, FormatJSON, FormatTAP}
}

// Printer writes a batch report.
type Printer interface {
	Print(out *runner.Output) error
}

// New returns the printer for format writing to w.
func New(format string, w io.Writer) (Printer, error) {
	switch format {
	case "", FormatConsole:
		return NewConsole(w), nil
	case FormatPlain:
		return &Plain{w: w}, nil
	case FormatJSON:
		return &JSON{w: w}, nil
	case FormatTAP:
		return &TAP{w: w}, nil
	}
	return nil, fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats(), ", "))
}

// Plain writes one uncoloured line per test and a summary line.
type Plain struct {
	w io.Writer
}

func (p *Plain) Print(out *runner.Output) error {
	for i := range out.Results {
		res := &out.Results[i]
		if _, err := fmt.Fprintf(p.w, "%-7s %s (%s)%s\n", Status(res), res.Test.Name(), round(res.Duration), detail(res)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(p.w, SummaryLine(out.Summary))
	return err
}

// Status returns the upper-case verdict of a result, or NOT-RUN.
func Status(res *runner.Result) string {
	if !res.Ran() {
		return "NOT-RUN"
	}
	return strings.ToUpper(res.Verdict.String())
}

func detail(res *runner.Result) string {
	switch {
	case !res.Ran():
		return fmt.Sprintf(" %s: %v", res.ErrorKind(), res.Err)
	case res.EchoMismatch:
		return fmt.Sprintf(" answered as %q", res.Response.TestName)
	}
	return ""
}

// SummaryLine renders counts and the overall verdict, e.g.
// "4 tests: 2 pass, 1 fail, 1 not run; overall fail".
func SummaryLine(s runner.Summary) string {
	var parts []string
	verdicts := make([]value.Verdict, 0, len(s.ByVerdict))
	for v := range s.ByVerdict {
		verdicts = append(verdicts, v)
	}
	sort.Slice(verdicts, func(i, j int) bool { return value.Compare(verdicts[i], verdicts[j]) < 0 })
	for _, v := range verdicts {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByVerdict[v], v))
	}
	if s.NotRun > 0 {
		parts = append(parts, fmt.Sprintf("%d not run", s.NotRun))
	}
	noun := "tests"
	if s.Total == 1 {
		noun = "test"
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d %s; overall %s", s.Total, noun, s.Overall)
	}
	return fmt.Sprintf("%d %s: %s; overall %s", s.Total, noun, strings.Join(parts, ", "), s.Overall)
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Millisecond)
	}
	return d.Round(time.Microsecond)
}
