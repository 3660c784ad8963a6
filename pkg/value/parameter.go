package value

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Parameter is a named value passed to or returned from a test. Parameter
// lists are ordered and may repeat names; nothing in this module reorders
// or deduplicates them.
type Parameter struct {
	Name  string `json:"name"  yaml:"name"`
	Value Value  `json:"value" yaml:"value"`
}

// NewParameter returns a parameter binding name to v.
func NewParameter(name string, v Value) Parameter {
	return Parameter{Name: name, Value: v}
}

func (p Parameter) String() string {
	return p.Name + "=" + p.Value.String()
}

// EqualParameters reports whether two parameter lists hold the same names
// and values in the same order.
func EqualParameters(a, b []Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// Parse reads a scalar value written as kind:text, e.g. "int:42",
// "verdict:pass" or "bytes:0aff". Text without a known kind prefix is a
// string value.
func Parse(s string) (Value, error) {
	kindName, text, found := strings.Cut(s, ":")
	if !found {
		return String(s), nil
	}
	switch kindName {
	case "bytes", "hex":
		b, err := hex.DecodeString(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bytes %q: %w", text, err)
		}
		return Bytes(b), nil
	case "bool":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return Bool(b), nil
	case "verdict":
		v, err := ParseVerdict(text)
		if err != nil {
			return Value{}, err
		}
		return VerdictValue(v), nil
	case "string", "str":
		return String(text), nil
	case "float":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float %q: %w", text, err)
		}
		return Float(f), nil
	case "int":
		i, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", text, err)
		}
		return Int(int32(i)), nil
	case "big":
		return ParseBig(text)
	}
	return String(s), nil
}

// ParseParameter reads a name=kind:text assignment as used on command lines.
func ParseParameter(s string) (Parameter, error) {
	name, text, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return Parameter{}, fmt.Errorf("invalid parameter %q: expected name=value", s)
	}
	v, err := Parse(text)
	if err != nil {
		return Parameter{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	return NewParameter(name, v), nil
}
