package runner

import "github.com/ormasoftchile/nttrun/pkg/value"

// Summary aggregates the results of a batch.
type Summary struct {
	Total     int
	NotRun    int // results without a verdict
	ByVerdict map[value.Verdict]int
	Overall   value.Verdict // worse-wins combination of received verdicts
}

// Summarize counts verdicts. Results that did not run do not contribute a
// verdict to Overall.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), ByVerdict: make(map[value.Verdict]int)}
	for i := range results {
		res := &results[i]
		if !res.Ran() {
			s.NotRun++
			continue
		}
		v := res.Verdict.OrError()
		s.ByVerdict[v]++
		s.Overall = value.Combine(s.Overall, v)
	}
	return s
}

// OK reports whether every test ran and none did worse than pass.
func (s Summary) OK() bool {
	return s.NotRun == 0 && !value.Worse(s.Overall, value.VerdictPass)
}

// Counts returns the verdict counts keyed by verdict name, plus "not_run".
func (s Summary) Counts() map[string]int {
	m := make(map[string]int, len(s.ByVerdict)+1)
	for v, n := range s.ByVerdict {
		m[v.String()] = n
	}
	if s.NotRun > 0 {
		m["not_run"] = s.NotRun
	}
	return m
}
