package boundary

import (
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-marshal/marshal"
)

func TestValueTypes(t *testing.T) {
	i32, i64, f32, f64 := api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64

	tests := []struct {
		typ  reflect.Type
		want []api.ValueType
	}{
		{reflect.TypeFor[marshal.Ptr](), []api.ValueType{i32}},
		{reflect.TypeFor[uint8](), []api.ValueType{i32}},
		{reflect.TypeFor[int16](), []api.ValueType{i32}},
		{reflect.TypeFor[uint64](), []api.ValueType{i64}},
		{reflect.TypeFor[float32](), []api.ValueType{f32}},
		{reflect.TypeFor[float64](), []api.ValueType{f64}},
		{reflect.TypeFor[marshal.Descriptor](), []api.ValueType{i32, i32}},
		{reflect.TypeFor[struct{}](), nil},
	}
	for _, tt := range tests {
		if got := valueTypes(tt.typ); !slices.Equal(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestValueTypes_Unsupported(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for string slot")
		}
	}()
	valueTypes(reflect.TypeFor[string]())
}

func TestEncodeDecode(t *testing.T) {
	if got := decodeFrom[int8](Encode(int8(-3))); got != -3 {
		t.Errorf("int8: got %d", got)
	}
	if got := decodeFrom[int32](Encode(int32(math.MinInt32))); got != math.MinInt32 {
		t.Errorf("int32: got %d", got)
	}
	if got := decodeFrom[uint64](Encode(uint64(math.MaxUint64))); got != math.MaxUint64 {
		t.Errorf("uint64: got %d", got)
	}
	if got := decodeFrom[float64](Encode(1.5)); got != 1.5 {
		t.Errorf("float64: got %v", got)
	}
	if got := decodeFrom[float32](Encode(float32(-0.25))); got != -0.25 {
		t.Errorf("float32: got %v", got)
	}

	d := marshal.Descriptor{Ptr: 0x1000, Len: 3}
	raw := Encode(d)
	if len(raw) != 2 || raw[0] != 0x1000 || raw[1] != 3 {
		t.Fatalf("descriptor encoding: %v", raw)
	}
	if got := decodeFrom[marshal.Descriptor](raw); got != d {
		t.Errorf("descriptor: got %s", got)
	}

	if raw := Encode(struct{}{}); len(raw) != 0 {
		t.Errorf("unit should encode to nothing, got %v", raw)
	}
}

func TestDecodeParam_BoolWholeWord(t *testing.T) {
	for _, raw := range []uint64{1, 0x100, 0x10000, 0x80000000} {
		f := decodeParam([]uint64{raw}, marshal.Inbound[uint8, bool](marshal.Bool{}))
		if v, _ := (marshal.Bool{}).FromForeign(nil, f); !v {
			t.Errorf("%#x: decoded as false", raw)
		}
	}
	if f := decodeParam([]uint64{0}, marshal.Inbound[uint8, bool](marshal.Bool{})); f != 0 {
		t.Errorf("zero: got %d", f)
	}
	// Other u8 slots keep the low byte.
	if f := decodeParam([]uint64{0x1ff}, marshal.Inbound[uint8, uint8](marshal.Copy[uint8]{})); f != 0xff {
		t.Errorf("u8: got %#x", f)
	}
}

func TestDefault(t *testing.T) {
	if got := Default[uint8](marshal.Bool{}); len(got) != 1 || got[0] != 0 {
		t.Fatalf("bool default: %v", got)
	}
	if got := Default[marshal.Descriptor](marshal.Vec[int32]{}); len(got) != 2 {
		t.Fatalf("vec default: %v", got)
	}
}

func TestArgRet(t *testing.T) {
	s := Arg("xs", marshal.VecRef[uint16]{})
	if s.Width() != 2 || marshal.FormatWIT(s.WIT) != "list<u16>" {
		t.Fatalf("unexpected slot %+v", s)
	}
	r := Ret("ok", marshal.Bool{})
	if r.Width() != 1 || marshal.FormatWIT(r.WIT) != "bool" {
		t.Fatalf("unexpected slot %+v", r)
	}
	u := Ret("none", marshal.Unit{})
	if u.Width() != 0 {
		t.Fatalf("unit slot should be empty: %+v", u)
	}
}
