package value

import (
	"fmt"
	"strings"
)

// Verdict is the outcome of a test run. Ordinals are load-bearing on the
// wire and double as the severity order: a larger ordinal is worse.
type Verdict int32

const (
	VerdictNone   Verdict = 0
	VerdictPass   Verdict = 1
	VerdictInconc Verdict = 2
	VerdictFail   Verdict = 3
	VerdictError  Verdict = 4
)

var verdictNames = [...]string{
	VerdictNone:   "none",
	VerdictPass:   "pass",
	VerdictInconc: "inconc",
	VerdictFail:   "fail",
	VerdictError:  "error",
}

// Verdicts lists every verdict from least to most severe.
func Verdicts() []Verdict {
	return []Verdict{VerdictNone, VerdictPass, VerdictInconc, VerdictFail, VerdictError}
}

// Valid reports whether v is one of the five known verdicts.
func (v Verdict) Valid() bool {
	return v >= VerdictNone && v <= VerdictError
}

func (v Verdict) String() string {
	if !v.Valid() {
		return fmt.Sprintf("verdict(%d)", int32(v))
	}
	return verdictNames[v]
}

// OrError returns v if it is a known verdict and VerdictError otherwise.
// Callers that must report something for an unrecognised verdict use this
// to fail closed.
func (v Verdict) OrError() Verdict {
	if !v.Valid() {
		return VerdictError
	}
	return v
}

// VerdictFromOrdinal decodes a wire ordinal. Out-of-range ordinals are an
// *UnknownVerdictError, never a silent none.
func VerdictFromOrdinal(n int32) (Verdict, error) {
	v := Verdict(n)
	if !v.Valid() {
		return VerdictError, &UnknownVerdictError{Ordinal: n}
	}
	return v, nil
}

// ParseVerdict parses the string form of a verdict. "inconclusive" is
// accepted as an alias for inconc.
func ParseVerdict(s string) (Verdict, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "inconclusive" {
		return VerdictInconc, nil
	}
	for i, n := range verdictNames {
		if n == name {
			return Verdict(i), nil
		}
	}
	return VerdictError, &UnknownVerdictError{Ordinal: -1, Name: s}
}

// Compare orders verdicts by severity. It returns -1 if a is less severe
// than b, +1 if it is more severe and 0 if they are equal. Unknown verdicts
// compare as error.
func Compare(a, b Verdict) int {
	a, b = a.OrError(), b.OrError()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Worse reports whether a is strictly more severe than b.
func Worse(a, b Verdict) bool {
	return Compare(a, b) > 0
}

// Combine merges two verdicts; the worse one wins.
func Combine(a, b Verdict) Verdict {
	if Compare(a, b) >= 0 {
		return a.OrError()
	}
	return b.OrError()
}

// CombineAll folds Combine over vs, starting from none.
func CombineAll(vs ...Verdict) Verdict {
	result := VerdictNone
	for _, v := range vs {
		result = Combine(result, v)
	}
	return result
}

// MarshalText encodes the verdict's string form.
func (v Verdict) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, &UnknownVerdictError{Ordinal: int32(v)}
	}
	return []byte(v.String()), nil
}

// UnmarshalText decodes the verdict's string form.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
