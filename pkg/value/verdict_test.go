package value

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCombine_CommutativeAndIdempotent(t *testing.T) {
	for _, a := range Verdicts() {
		if got := Combine(a, a); got != a {
			t.Errorf("Combine(%s, %s) = %s, want %s", a, a, got, a)
		}
		for _, b := range Verdicts() {
			if Combine(a, b) != Combine(b, a) {
				t.Errorf("Combine(%s, %s) = %s but Combine(%s, %s) = %s",
					a, b, Combine(a, b), b, a, Combine(b, a))
			}
		}
	}
}

func TestCombine_WorseWins(t *testing.T) {
	tests := []struct {
		a, b, want Verdict
	}{
		{VerdictPass, VerdictFail, VerdictFail},
		{VerdictNone, VerdictInconc, VerdictInconc},
		{VerdictNone, VerdictPass, VerdictPass},
		{VerdictInconc, VerdictPass, VerdictInconc},
		{VerdictFail, VerdictError, VerdictError},
		{VerdictError, VerdictNone, VerdictError},
	}
	for _, tt := range tests {
		if got := Combine(tt.a, tt.b); got != tt.want {
			t.Errorf("Combine(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCombine_UnknownFailsClosed(t *testing.T) {
	if got := Combine(VerdictPass, Verdict(9)); got != VerdictError {
		t.Errorf("Combine(pass, 9) = %s, want error", got)
	}
}

func TestCombineAll(t *testing.T) {
	if got := CombineAll(); got != VerdictNone {
		t.Errorf("CombineAll() = %s, want none", got)
	}
	if got := CombineAll(VerdictPass, VerdictInconc, VerdictPass); got != VerdictInconc {
		t.Errorf("CombineAll = %s, want inconc", got)
	}
}

func TestCompare(t *testing.T) {
	vs := Verdicts()
	for i := range vs {
		for j := range vs {
			got := Compare(vs[i], vs[j])
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", vs[i], vs[j], got, want)
			}
		}
	}
	if !Worse(VerdictFail, VerdictInconc) {
		t.Error("fail should be worse than inconc")
	}
}

func TestVerdictFromOrdinal(t *testing.T) {
	for n := int32(0); n <= 4; n++ {
		v, err := VerdictFromOrdinal(n)
		if err != nil {
			t.Fatalf("VerdictFromOrdinal(%d): %v", n, err)
		}
		if int32(v) != n {
			t.Errorf("VerdictFromOrdinal(%d) = %d", n, v)
		}
	}
	for _, n := range []int32{-1, 5, 42} {
		v, err := VerdictFromOrdinal(n)
		if !errors.Is(err, ErrUnknownVerdict) {
			t.Errorf("VerdictFromOrdinal(%d) error = %v, want ErrUnknownVerdict", n, err)
		}
		if v == VerdictNone {
			t.Errorf("VerdictFromOrdinal(%d) must not default to none", n)
		}
	}
}

func TestParseVerdict(t *testing.T) {
	tests := map[string]Verdict{
		"none":         VerdictNone,
		"pass":         VerdictPass,
		"inconc":       VerdictInconc,
		"inconclusive": VerdictInconc,
		"FAIL":         VerdictFail,
		" error ":      VerdictError,
	}
	for in, want := range tests {
		got, err := ParseVerdict(in)
		if err != nil {
			t.Errorf("ParseVerdict(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseVerdict(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseVerdict("bogus"); !errors.Is(err, ErrUnknownVerdict) {
		t.Errorf("ParseVerdict(bogus) error = %v", err)
	}
}

func TestVerdict_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Verdict{"v": VerdictInconc})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":"inconc"}` {
		t.Errorf("got %s", data)
	}
	var out map[string]Verdict
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["v"] != VerdictInconc {
		t.Errorf("decoded %s", out["v"])
	}
	if _, err := json.Marshal(Verdict(7)); err == nil {
		t.Error("expected error marshalling unknown verdict")
	}
}
