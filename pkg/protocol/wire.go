package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ormasoftchile/nttrun/pkg/value"
)

// Field numbers of the wire schema.
const (
	fieldTestName   protowire.Number = 1
	fieldParameters protowire.Number = 2
	fieldVerdict    protowire.Number = 3

	fieldParamName  protowire.Number = 1
	fieldParamValue protowire.Number = 2

	fieldCompositeValues protowire.Number = 1
)

// Marshal encodes the request in protobuf wire format.
func (x *RunRequest) Marshal() ([]byte, error) {
	var b []byte
	if x.TestName != "" {
		b = protowire.AppendTag(b, fieldTestName, protowire.BytesType)
		b = protowire.AppendString(b, x.TestName)
	}
	return appendParameters(b, fieldParameters, x.Parameters)
}

// Unmarshal decodes a request from protobuf wire format, replacing x.
// Unknown fields are skipped.
func (x *RunRequest) Unmarshal(b []byte) error {
	*x = RunRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldTestName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			x.TestName = s
			return n, nil
		case num == fieldParameters && typ == protowire.BytesType:
			p, n, err := consumeParameter(b)
			if err != nil {
				return n, fmt.Errorf("parameters[%d]: %w", len(x.Parameters), err)
			}
			x.Parameters = append(x.Parameters, p)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// Marshal encodes the response in protobuf wire format.
func (x *RunResponse) Marshal() ([]byte, error) {
	var b []byte
	if x.TestName != "" {
		b = protowire.AppendTag(b, fieldTestName, protowire.BytesType)
		b = protowire.AppendString(b, x.TestName)
	}
	b, err := appendParameters(b, fieldParameters, x.Parameters)
	if err != nil {
		return nil, err
	}
	if x.Verdict != value.VerdictNone {
		b = protowire.AppendTag(b, fieldVerdict, protowire.VarintType)
		b = appendEnum(b, int32(x.Verdict))
	}
	return b, nil
}

// Unmarshal decodes a response from protobuf wire format, replacing x.
// Verdict ordinals are kept as received; see RunResponse.Validate.
func (x *RunResponse) Unmarshal(b []byte) error {
	*x = RunResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldTestName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			x.TestName = s
			return n, nil
		case num == fieldParameters && typ == protowire.BytesType:
			p, n, err := consumeParameter(b)
			if err != nil {
				return n, fmt.Errorf("parameters[%d]: %w", len(x.Parameters), err)
			}
			x.Parameters = append(x.Parameters, p)
			return n, nil
		case num == fieldVerdict && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			x.Verdict = decodeVerdict(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// consumeFields walks the top-level fields of a message. fn consumes the
// value of one field and returns the number of bytes read, or a negative
// protowire error code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// outOfRangeVerdict stands in for a verdict varint that does not fit in
// an int32. It is outside the verdict set, so VerdictFromOrdinal rejects it.
const outOfRangeVerdict = value.Verdict(math.MinInt32)

// decodeVerdict keeps the ordinal as received. A varint wider than int32
// is not truncated into a possibly valid ordinal.
func decodeVerdict(x uint64) value.Verdict {
	if int64(x) != int64(int32(x)) {
		return outOfRangeVerdict
	}
	return value.Verdict(int32(x))
}

func appendEnum(b []byte, v int32) []byte {
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendParameters(b []byte, num protowire.Number, params []value.Parameter) ([]byte, error) {
	for i, p := range params {
		inner, err := marshalParameter(p)
		if err != nil {
			return nil, fmt.Errorf("parameters[%d]: %w", i, err)
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b, nil
}

func marshalParameter(p value.Parameter) ([]byte, error) {
	var b []byte
	if p.Name != "" {
		b = protowire.AppendTag(b, fieldParamName, protowire.BytesType)
		b = protowire.AppendString(b, p.Name)
	}
	if !p.Value.IsNone() {
		inner, err := marshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		b = protowire.AppendTag(b, fieldParamValue, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b, nil
}

// marshalValue encodes the oneof member that is set. Oneof members are
// written even when they hold their zero value.
func marshalValue(v value.Value) ([]byte, error) {
	var b []byte
	num := protowire.Number(v.Kind())
	switch v.Kind() {
	case value.KindNone:
		return b, nil
	case value.KindBytes:
		data, _ := v.AsBytes()
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, data)
	case value.KindBool:
		t, _ := v.AsBool()
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(t))
	case value.KindVerdict:
		vd, err := v.AsVerdict()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = appendEnum(b, int32(vd))
	case value.KindString:
		s, _ := v.AsString()
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	case value.KindFloat:
		f, _ := v.AsFloat()
		b = protowire.AppendTag(b, num, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(f))
	case value.KindInt:
		i, _ := v.AsInt()
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = appendEnum(b, i)
	case value.KindBig:
		s, _ := v.BigText()
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	case value.KindComposite:
		elems, _ := v.AsComposite()
		var inner []byte
		for i, e := range elems {
			data, err := marshalValue(e)
			if err != nil {
				return nil, fmt.Errorf("composite[%d]: %w", i, err)
			}
			inner = protowire.AppendTag(inner, fieldCompositeValues, protowire.BytesType)
			inner = protowire.AppendBytes(inner, data)
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	default:
		return nil, fmt.Errorf("cannot encode value of %s", v.Kind())
	}
	return b, nil
}

func consumeParameter(b []byte) (value.Parameter, int, error) {
	data, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return value.Parameter{}, n, nil
	}
	var p value.Parameter
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldParamName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			p.Name = s
			return n, nil
		case num == fieldParamValue && typ == protowire.BytesType:
			inner, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			v, err := unmarshalValue(inner)
			if err != nil {
				return n, err
			}
			p.Value = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return p, n, err
}

// unmarshalValue decodes a Value message. As with any oneof, the last
// member on the wire wins.
func unmarshalValue(b []byte) (value.Value, error) {
	var v value.Value
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		kind := value.Kind(num)
		switch {
		case kind == value.KindBytes && typ == protowire.BytesType:
			data, n := protowire.ConsumeBytes(b)
			v = value.Bytes(data)
			return n, nil
		case kind == value.KindBool && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			v = value.Bool(protowire.DecodeBool(x))
			return n, nil
		case kind == value.KindVerdict && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			v = value.VerdictValue(decodeVerdict(x))
			return n, nil
		case kind == value.KindString && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			v = value.String(s)
			return n, nil
		case kind == value.KindFloat && typ == protowire.Fixed64Type:
			x, n := protowire.ConsumeFixed64(b)
			v = value.Float(math.Float64frombits(x))
			return n, nil
		case kind == value.KindInt && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			v = value.Int(int32(x))
			return n, nil
		case kind == value.KindBig && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, nil
			}
			if s == "" {
				// An empty string is the proto3 default: zero.
				v = value.Big(nil)
				return n, nil
			}
			big, err := value.ParseBig(s)
			if err != nil {
				return n, err
			}
			v = big
			return n, nil
		case kind == value.KindComposite && typ == protowire.BytesType:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			elems, err := unmarshalComposite(data)
			if err != nil {
				return n, err
			}
			v = value.Composite(elems...)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return v, err
}

func unmarshalComposite(b []byte) ([]value.Value, error) {
	elems := []value.Value{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldCompositeValues || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		data, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		e, err := unmarshalValue(data)
		if err != nil {
			return n, fmt.Errorf("composite[%d]: %w", len(elems), err)
		}
		elems = append(elems, e)
		return n, nil
	})
	return elems, err
}
