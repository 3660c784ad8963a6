package value

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"gopkg.in/yaml.v3"
)

// Values are written to JSON and YAML documents as single-key objects
// naming the kind: {"int": 5}, {"verdict": "pass"}, {"composite": [...]}.
// Byte strings are hex encoded. A none value is null. Non-finite floats
// are the strings "NaN", "Infinity" and "-Infinity", as in protojson.

func floatPayload(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

func parseNonFinite(s string) (float64, bool) {
	switch s {
	case "NaN":
		return math.NaN(), true
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	return 0, false
}

func (v Value) tagged() (map[string]any, error) {
	var payload any
	switch v.kind {
	case KindNone:
		return nil, nil
	case KindBytes:
		payload = hex.EncodeToString(v.b)
	case KindBool:
		payload = v.t
	case KindVerdict:
		text, err := v.v.MarshalText()
		if err != nil {
			return nil, err
		}
		payload = string(text)
	case KindString, KindBig:
		payload = v.s
	case KindFloat:
		payload = floatPayload(v.f)
	case KindInt:
		payload = v.i
	case KindComposite:
		elems := v.c
		if elems == nil {
			elems = []Value{}
		}
		payload = elems
	default:
		return nil, fmt.Errorf("cannot encode value of %s", v.kind)
	}
	return map[string]any{v.kind.String(): payload}, nil
}

// fromTagged builds a value from the kind name of a tagged object and a
// function decoding its payload.
func fromTagged(kindName string, decode func(any) error) (Value, error) {
	kind, err := ParseKind(kindName)
	if err != nil || kind == KindNone {
		return Value{}, fmt.Errorf("unknown value kind %q", kindName)
	}
	switch kind {
	case KindBytes:
		var s string
		if err := decode(&s); err != nil {
			return Value{}, fmt.Errorf("bytes: %w", err)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("bytes: %w", err)
		}
		return Bytes(b), nil
	case KindBool:
		var b bool
		if err := decode(&b); err != nil {
			return Value{}, fmt.Errorf("bool: %w", err)
		}
		return Bool(b), nil
	case KindVerdict:
		var s string
		if err := decode(&s); err != nil {
			return Value{}, fmt.Errorf("verdict: %w", err)
		}
		vd, err := ParseVerdict(s)
		if err != nil {
			return Value{}, err
		}
		return VerdictValue(vd), nil
	case KindString:
		var s string
		if err := decode(&s); err != nil {
			return Value{}, fmt.Errorf("string: %w", err)
		}
		return String(s), nil
	case KindFloat:
		var f float64
		if err := decode(&f); err != nil {
			var s string
			if decode(&s) != nil {
				return Value{}, fmt.Errorf("float: %w", err)
			}
			nf, ok := parseNonFinite(s)
			if !ok {
				return Value{}, fmt.Errorf("float: invalid number %q", s)
			}
			f = nf
		}
		return Float(f), nil
	case KindInt:
		var i int32
		if err := decode(&i); err != nil {
			return Value{}, fmt.Errorf("int: %w", err)
		}
		return Int(i), nil
	case KindBig:
		var s string
		if err := decode(&s); err != nil {
			return Value{}, fmt.Errorf("big: %w", err)
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return Value{}, fmt.Errorf("big: invalid integer %q", s)
		}
		return Big(n), nil
	case KindComposite:
		var elems []Value
		if err := decode(&elems); err != nil {
			return Value{}, fmt.Errorf("composite: %w", err)
		}
		return Composite(elems...), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %q", kindName)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	m, err := v.tagged()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if m == nil {
		*v = Value{}
		return nil
	}
	if len(m) != 1 {
		return fmt.Errorf("value: expected exactly one kind, got %d", len(m))
	}
	for k, raw := range m {
		parsed, err := fromTagged(k, func(out any) error { return json.Unmarshal(raw, out) })
		if err != nil {
			return err
		}
		*v = parsed
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	m, err := v.tagged()
	if err != nil || m == nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*v = Value{}
		return nil
	}
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("value at line %d: expected a mapping with exactly one kind", node.Line)
	}
	payload := node.Content[1]
	parsed, err := fromTagged(node.Content[0].Value, payload.Decode)
	if err != nil {
		return fmt.Errorf("value at line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}
