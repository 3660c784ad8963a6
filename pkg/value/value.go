// Package value defines the typed values exchanged with a test engine:
// parameter values passed into and out of a run, and the verdict a run
// settles on.
package value

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies which member of the Value union is set. The numbering
// matches the oneof field numbers of the wire schema.
type Kind int

const (
	KindNone      Kind = 0
	KindBytes     Kind = 1
	KindBool      Kind = 2
	KindVerdict   Kind = 3
	KindString    Kind = 4
	KindFloat     Kind = 5
	KindInt       Kind = 6
	KindBig       Kind = 7
	KindComposite Kind = 8
)

var kindNames = map[Kind]string{
	KindNone:      "none",
	KindBytes:     "bytes",
	KindBool:      "bool",
	KindVerdict:   "verdict",
	KindString:    "string",
	KindFloat:     "float",
	KindInt:       "int",
	KindBig:       "big",
	KindComposite: "composite",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the kind with the given name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown value kind %q", s)
}

// Value is a tagged union holding exactly one kind of data. The zero Value
// holds nothing (KindNone). Values are immutable once constructed.
type Value struct {
	kind Kind
	b    []byte
	s    string // string_value and big_value (decimal)
	f    float64
	i    int32
	t    bool
	v    Verdict
	c    []Value
}

// Bytes returns a byte-string value.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, b: bytes.Clone(b)}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, t: b} }

// VerdictValue returns a value holding a verdict.
func VerdictValue(v Verdict) Value { return Value{kind: KindVerdict, v: v} }

// String returns a character-string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Int returns a 32-bit integer value.
func Int(i int32) Value { return Value{kind: KindInt, i: i} }

// Big returns an arbitrary precision integer value.
func Big(n *big.Int) Value {
	if n == nil {
		n = new(big.Int)
	}
	return Value{kind: KindBig, s: n.String()}
}

// ParseBig returns a big integer value from its decimal representation.
func ParseBig(s string) (Value, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Value{}, fmt.Errorf("invalid big integer %q", s)
	}
	return Big(n), nil
}

// Composite returns a value holding an ordered list of element values.
func Composite(elems ...Value) Value {
	c := make([]Value, len(elems))
	copy(c, elems)
	return Value{kind: KindComposite, c: c}
}

// Kind reports which member of the union is set.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether no member is set.
func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) expect(k Kind) error {
	if v.kind != k {
		return &TypeMismatchError{Want: k, Got: v.kind}
	}
	return nil
}

// AsBytes returns the byte string held by v.
func (v Value) AsBytes() ([]byte, error) {
	if err := v.expect(KindBytes); err != nil {
		return nil, err
	}
	return bytes.Clone(v.b), nil
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, error) {
	if err := v.expect(KindBool); err != nil {
		return false, err
	}
	return v.t, nil
}

// AsVerdict returns the verdict held by v. A verdict decoded from an
// out-of-range ordinal is reported here as an *UnknownVerdictError.
func (v Value) AsVerdict() (Verdict, error) {
	if err := v.expect(KindVerdict); err != nil {
		return VerdictError, err
	}
	return VerdictFromOrdinal(int32(v.v))
}

// AsString returns the character string held by v.
func (v Value) AsString() (string, error) {
	if err := v.expect(KindString); err != nil {
		return "", err
	}
	return v.s, nil
}

// AsFloat returns the float held by v.
func (v Value) AsFloat() (float64, error) {
	if err := v.expect(KindFloat); err != nil {
		return 0, err
	}
	return v.f, nil
}

// AsInt returns the 32-bit integer held by v.
func (v Value) AsInt() (int32, error) {
	if err := v.expect(KindInt); err != nil {
		return 0, err
	}
	return v.i, nil
}

// AsBig returns the big integer held by v.
func (v Value) AsBig() (*big.Int, error) {
	if err := v.expect(KindBig); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(v.s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid big integer %q", v.s)
	}
	return n, nil
}

// BigText returns the decimal text of a big integer value without parsing it.
func (v Value) BigText() (string, error) {
	if err := v.expect(KindBig); err != nil {
		return "", err
	}
	return v.s, nil
}

// AsComposite returns a copy of the elements held by v.
func (v Value) AsComposite() ([]Value, error) {
	if err := v.expect(KindComposite); err != nil {
		return nil, err
	}
	c := make([]Value, len(v.c))
	copy(c, v.c)
	return c, nil
}

// Equal reports whether a and b hold the same kind and data. Floats are
// compared bit for bit so that NaN equals itself.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindBytes:
		return bytes.Equal(a.b, b.b)
	case KindBool:
		return a.t == b.t
	case KindVerdict:
		return a.v == b.v
	case KindString, KindBig:
		return a.s == b.s
	case KindFloat:
		return math.Float64bits(a.f) == math.Float64bits(b.f)
	case KindInt:
		return a.i == b.i
	case KindComposite:
		if len(a.c) != len(b.c) {
			return false
		}
		for i := range a.c {
			if !Equal(a.c[i], b.c[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String formats v in the kind:text form accepted by Parse. Composites
// are written as a bracketed list.
func (v Value) String() string {
	switch v.kind {
	case KindBytes:
		return fmt.Sprintf("bytes:%x", v.b)
	case KindBool:
		return "bool:" + strconv.FormatBool(v.t)
	case KindVerdict:
		return "verdict:" + v.v.String()
	case KindString:
		return "string:" + v.s
	case KindFloat:
		return "float:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return "int:" + strconv.FormatInt(int64(v.i), 10)
	case KindBig:
		return "big:" + v.s
	case KindComposite:
		parts := make([]string, len(v.c))
		for i, e := range v.c {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "none"
}
