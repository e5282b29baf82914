package boundary

import (
	"fmt"
	"reflect"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-marshal/marshal"
)

var descriptorType = reflect.TypeFor[marshal.Descriptor]()

// Slot describes one parameter or result of a boundary function: its name,
// the wasm values it occupies, and its WIT type when known.
type Slot struct {
	WIT   wit.Type
	Name  string
	Types []api.ValueType
}

// Width returns the number of wasm values the slot occupies.
func (s Slot) Width() int {
	return len(s.Types)
}

// Arg declares a parameter read with m.
func Arg[F, L any](name string, m marshal.Inbound[F, L]) Slot {
	return slotOf[F](name, m)
}

// Ret declares a result written with m.
func Ret[L, F any](name string, m marshal.Outbound[L, F]) Slot {
	return slotOf[F](name, m)
}

func slotOf[F any](name string, m any) Slot {
	s := Slot{Name: name, Types: valueTypes(reflect.TypeFor[F]())}
	if d, ok := m.(marshal.Describer); ok {
		s.WIT = d.WIT()
	}
	return s
}

// valueTypes maps a foreign Go type onto wasm value types. Descriptors take
// two i32s and struct{} takes none.
func valueTypes(rt reflect.Type) []api.ValueType {
	if rt == descriptorType {
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	}
	switch rt.Kind() {
	case reflect.Struct:
		if rt.NumField() == 0 {
			return nil
		}
	case reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16, reflect.Int32, reflect.Uint32:
		return []api.ValueType{api.ValueTypeI32}
	case reflect.Int64, reflect.Uint64:
		return []api.ValueType{api.ValueTypeI64}
	case reflect.Float32:
		return []api.ValueType{api.ValueTypeF32}
	case reflect.Float64:
		return []api.ValueType{api.ValueTypeF64}
	}
	panic(fmt.Sprintf("boundary: %s has no wasm representation", rt))
}

// Encode lowers a foreign value onto wasm stack values.
func Encode[F any](v F) []uint64 {
	out := make([]uint64, len(valueTypes(reflect.TypeFor[F]())))
	encodeInto(out, v)
	return out
}

// Default encodes m's fallback value.
func Default[F any](m marshal.ReturnType[F]) []uint64 {
	return Encode(m.ForeignDefault())
}

func encodeInto[F any](stack []uint64, v F) {
	if d, ok := any(v).(marshal.Descriptor); ok {
		stack[0] = api.EncodeU32(uint32(d.Ptr))
		stack[1] = api.EncodeU32(d.Len)
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		stack[0] = api.EncodeI32(int32(rv.Int()))
	case reflect.Int64:
		stack[0] = api.EncodeI64(rv.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		stack[0] = api.EncodeU32(uint32(rv.Uint()))
	case reflect.Uint64:
		stack[0] = rv.Uint()
	case reflect.Float32:
		stack[0] = api.EncodeF32(float32(rv.Float()))
	case reflect.Float64:
		stack[0] = api.EncodeF64(rv.Float())
	}
}

func decodeFrom[F any](stack []uint64) F {
	var v F
	if d, ok := any(&v).(*marshal.Descriptor); ok {
		d.Ptr = marshal.Ptr(api.DecodeU32(stack[0]))
		d.Len = api.DecodeU32(stack[1])
		return v
	}
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		rv.SetInt(int64(api.DecodeI32(stack[0])))
	case reflect.Int64:
		rv.SetInt(int64(stack[0]))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		rv.SetUint(uint64(api.DecodeU32(stack[0])))
	case reflect.Uint64:
		rv.SetUint(stack[0])
	case reflect.Float32:
		rv.SetFloat(float64(api.DecodeF32(stack[0])))
	case reflect.Float64:
		rv.SetFloat(api.DecodeF64(stack[0]))
	}
	return v
}

// decodeParam decodes a parameter for m. A bool parameter is lifted from
// the whole i32, so any nonzero word is true.
func decodeParam[F, L any](stack []uint64, m marshal.Inbound[F, L]) F {
	if _, ok := any(m).(marshal.Bool); ok && api.DecodeU32(stack[0]) != 0 {
		var v F
		reflect.ValueOf(&v).Elem().SetUint(1)
		return v
	}
	return decodeFrom[F](stack)
}

func width[F any]() int {
	return len(valueTypes(reflect.TypeFor[F]()))
}
