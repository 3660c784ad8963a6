package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ormasoftchile/nttrun/pkg/value"
)

func TestRunRequest_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  RunRequest
	}{
		{"empty parameters", RunRequest{TestName: "t1"}},
		{"duplicate names", RunRequest{
			TestName: "m1.tc_dup",
			Parameters: []value.Parameter{
				value.NewParameter("x", value.Int(1)),
				value.NewParameter("x", value.Int(2)),
				value.NewParameter("x", value.String("three")),
			},
		}},
		{"every kind", RunRequest{
			TestName: "m1.tc_kinds",
			Parameters: []value.Parameter{
				value.NewParameter("b", value.Bytes([]byte{0, 1, 0xff})),
				value.NewParameter("t", value.Bool(false)),
				value.NewParameter("v", value.VerdictValue(value.VerdictNone)),
				value.NewParameter("s", value.String("")),
				value.NewParameter("f", value.Float(math.Inf(-1))),
				value.NewParameter("i", value.Int(-7)),
				value.NewParameter("n", mustBig(t, "-123456789012345678901234567890")),
				value.NewParameter("c", value.Composite(value.Int(0), value.Composite())),
				value.NewParameter("none", value.Value{}),
				value.NewParameter("", value.Int(5)),
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.req.Marshal()
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got RunRequest
			if err := got.Unmarshal(data); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.TestName != tt.req.TestName {
				t.Errorf("test name = %q, want %q", got.TestName, tt.req.TestName)
			}
			if !value.EqualParameters(got.Parameters, tt.req.Parameters) {
				t.Errorf("parameters = %v, want %v", got.Parameters, tt.req.Parameters)
			}
		})
	}
}

func TestRunResponse_RoundTrip(t *testing.T) {
	for _, v := range value.Verdicts() {
		resp := RunResponse{
			TestName: "t1",
			Parameters: []value.Parameter{
				value.NewParameter("out", value.Int(1)),
				value.NewParameter("out", value.VerdictValue(value.VerdictFail)),
			},
			Verdict: v,
		}
		data, err := resp.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		var got RunResponse
		if err := got.Unmarshal(data); err != nil {
			t.Fatal(err)
		}
		if got.TestName != resp.TestName || got.Verdict != resp.Verdict {
			t.Errorf("got %s, want %s", &got, &resp)
		}
		if !value.EqualParameters(got.Parameters, resp.Parameters) {
			t.Errorf("parameters = %v, want %v", got.Parameters, resp.Parameters)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	}
}

func TestRunRequest_WireLayout(t *testing.T) {
	req := RunRequest{
		TestName:   "t1",
		Parameters: []value.Parameter{value.NewParameter("a", value.Int(1))},
	}
	got, err := req.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x0a, 0x02, 't', '1', // test_name = 1
		0x12, 0x07, // parameters = 2, 7 bytes
		0x0a, 0x01, 'a', // name = 1
		0x12, 0x02, 0x30, 0x01, // value = 2 { int_value = 6: 1 }
	}
	if !bytes.Equal(got, want) {
		t.Errorf("wire = % x\nwant   % x", got, want)
	}
}

func TestRunResponse_UnknownVerdict(t *testing.T) {
	for _, ordinal := range []uint64{9, 1<<32 | 1, 1 << 40, math.MaxUint64 - 1} {
		var b []byte
		b = protowire.AppendTag(b, fieldTestName, protowire.BytesType)
		b = protowire.AppendString(b, "t1")
		b = protowire.AppendTag(b, fieldVerdict, protowire.VarintType)
		b = protowire.AppendVarint(b, ordinal)

		var resp RunResponse
		if err := resp.Unmarshal(b); err != nil {
			t.Fatalf("Unmarshal(%d): %v", ordinal, err)
		}
		_, err := resp.GetVerdict()
		if !errors.Is(err, value.ErrUnknownVerdict) {
			t.Errorf("ordinal %d: GetVerdict error = %v, want ErrUnknownVerdict", ordinal, err)
		}
		err = resp.Validate()
		if !errors.Is(err, ErrMalformedResponse) || !errors.Is(err, value.ErrUnknownVerdict) {
			t.Errorf("ordinal %d: Validate error = %v", ordinal, err)
		}
	}
}

func TestValue_WideVerdictOrdinal(t *testing.T) {
	var val []byte
	val = protowire.AppendTag(val, protowire.Number(value.KindVerdict), protowire.VarintType)
	val = protowire.AppendVarint(val, 1<<32|1)

	v, err := unmarshalValue(val)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.AsVerdict(); !errors.Is(err, value.ErrUnknownVerdict) {
		t.Errorf("AsVerdict error = %v, want ErrUnknownVerdict", err)
	}
}

func TestValue_EmptyBigIsZero(t *testing.T) {
	var val []byte
	val = protowire.AppendTag(val, protowire.Number(value.KindBig), protowire.BytesType)
	val = protowire.AppendString(val, "")

	v, err := unmarshalValue(val)
	if err != nil {
		t.Fatal(err)
	}
	n, err := v.AsBig()
	if err != nil {
		t.Fatal(err)
	}
	if n.Sign() != 0 {
		t.Errorf("big = %s, want 0", n)
	}

	val = protowire.AppendTag(nil, protowire.Number(value.KindBig), protowire.BytesType)
	val = protowire.AppendString(val, "12x")
	if _, err := unmarshalValue(val); err == nil {
		t.Error("expected error for malformed big integer text")
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 12345)
	b = protowire.AppendTag(b, fieldTestName, protowire.BytesType)
	b = protowire.AppendString(b, "t2")
	b = protowire.AppendTag(b, 4, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 0)

	var req RunRequest
	if err := req.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if req.TestName != "t2" {
		t.Errorf("test name = %q", req.TestName)
	}
}

func TestUnmarshal_Truncated(t *testing.T) {
	data, err := (&RunRequest{TestName: "truncated"}).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var req RunRequest
	if err := req.Unmarshal(data[:len(data)-2]); err == nil {
		t.Error("expected error for truncated message")
	}
}

func TestUnmarshal_ResetsMessage(t *testing.T) {
	req := RunRequest{TestName: "old", Parameters: []value.Parameter{value.NewParameter("p", value.Int(1))}}
	data, _ := (&RunRequest{TestName: "new"}).Marshal()
	if err := req.Unmarshal(data); err != nil {
		t.Fatal(err)
	}
	if req.TestName != "new" || len(req.Parameters) != 0 {
		t.Errorf("got %s", &req)
	}
}

func mustBig(t *testing.T, s string) value.Value {
	t.Helper()
	v, err := value.ParseBig(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
