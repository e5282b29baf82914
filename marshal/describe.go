package marshal

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"
)

// Describer is implemented by marshalers that can name their slot as a
// WIT type. Unit describes itself as nil: it occupies no slot.
type Describer interface {
	WIT() wit.Type
}

func (Copy[T]) WIT() wit.Type   { return scalarWIT[T]() }
func (Unit) WIT() wit.Type      { return nil }
func (Bool) WIT() wit.Type      { return wit.Bool{} }
func (String) WIT() wit.Type    { return wit.String{} }
func (Str) WIT() wit.Type       { return wit.String{} }
func (Path) WIT() wit.Type      { return wit.String{} }
func (PathRef) WIT() wit.Type   { return wit.String{} }
func (URL) WIT() wit.Type       { return wit.String{} }
func (UUID) WIT() wit.Type      { return wit.String{} }
func (Vec[T]) WIT() wit.Type    { return listOf(scalarWIT[T]()) }
func (VecRef[T]) WIT() wit.Type { return listOf(scalarWIT[T]()) }

func (BoxMarshaler[T]) WIT() wit.Type {
	return &wit.TypeDef{Kind: &wit.Own{Type: resourceDef(boxName[T]())}}
}

func (BoxRef[T]) WIT() wit.Type {
	return &wit.TypeDef{Kind: &wit.Borrow{Type: resourceDef(boxName[T]())}}
}

func (ArcMarshaler[T]) WIT() wit.Type {
	return &wit.TypeDef{Kind: &wit.Own{Type: resourceDef(arcName[T]())}}
}

func (ArcRef[T]) WIT() wit.Type {
	return &wit.TypeDef{Kind: &wit.Borrow{Type: resourceDef(arcName[T]())}}
}

func (o Option[L, M]) WIT() wit.Type {
	d, ok := any(o.Inner).(Describer)
	if !ok {
		return nil
	}
	return &wit.TypeDef{Kind: &wit.Option{Type: d.WIT()}}
}

func scalarWIT[T Scalar]() wit.Type {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Int8:
		return wit.S8{}
	case reflect.Uint8:
		return wit.U8{}
	case reflect.Int16:
		return wit.S16{}
	case reflect.Uint16:
		return wit.U16{}
	case reflect.Int32:
		return wit.S32{}
	case reflect.Uint32:
		return wit.U32{}
	case reflect.Int64:
		return wit.S64{}
	case reflect.Uint64:
		return wit.U64{}
	case reflect.Float32:
		return wit.F32{}
	default:
		return wit.F64{}
	}
}

func listOf(t wit.Type) wit.Type {
	return &wit.TypeDef{Kind: &wit.List{Type: t}}
}

// resourceDef names a host object kind as a WIT resource.
func resourceDef(goName string) *wit.TypeDef {
	name := kebab(goName)
	return &wit.TypeDef{Name: &name, Kind: &wit.Resource{}}
}

// kebab folds a Go type name like "Arc[*main.counter]" into "arc-main-counter".
func kebab(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// FormatWIT renders t the way it would appear in a WIT signature.
func FormatWIT(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v == nil {
			return "resource"
		}
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + FormatWIT(k.Type) + ">"
		case *wit.Option:
			return "option<" + FormatWIT(k.Type) + ">"
		case *wit.Own:
			return "own<" + FormatWIT(k.Type) + ">"
		case *wit.Borrow:
			return "borrow<" + FormatWIT(k.Type) + ">"
		case *wit.Resource:
			return "resource"
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
