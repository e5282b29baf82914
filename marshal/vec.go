package marshal

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/wippyai/wasm-marshal/errors"
)

// hostLittleEndian reports whether host scalars share the guest's byte order,
// in which case element data can be copied or viewed without decoding.
var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// Vec marshals a slice of scalars as a {ptr, len} descriptor over a guest
// allocation of exactly len*size(T) bytes. Len counts elements.
type Vec[T Scalar] struct{}

// ToForeign copies v into a fresh guest allocation. An empty slice yields a
// dangling, non-null descriptor and allocates nothing.
func (Vec[T]) ToForeign(env *Env, v []T) (Descriptor, error) {
	goType := "[]" + typeName[T]()
	trace("to_foreign", "Vec", goType, 0)

	size, align := elemLayout[T]()
	if len(v) == 0 {
		return Descriptor{Ptr: Ptr(align), Len: 0}, nil
	}
	total, err := byteLen(errors.PhaseOutbound, goType, uint64(len(v)), size)
	if err != nil {
		return Descriptor{}, err
	}

	mem, err := env.memory(errors.PhaseOutbound)
	if err != nil {
		return Descriptor{}, err
	}
	alloc, err := env.allocator(errors.PhaseOutbound)
	if err != nil {
		return Descriptor{}, err
	}

	ptr, err := alloc.Alloc(total, align)
	if err != nil {
		return Descriptor{}, errors.AllocationFailed(errors.PhaseOutbound, total, align, err)
	}
	if ptr == 0 {
		return Descriptor{}, errors.AllocationFailed(errors.PhaseOutbound, total, align, nil)
	}

	if err := mem.Write(ptr, encodeElems(v)); err != nil {
		alloc.Free(ptr, total, align)
		return Descriptor{}, errors.OutOfBounds(errors.PhaseOutbound, ptr, total, err)
	}
	return Descriptor{Ptr: Ptr(ptr), Len: uint32(len(v))}, nil
}

// FromForeign reclaims a buffer produced by ToForeign: the elements are
// copied out and the guest allocation is freed.
func (Vec[T]) FromForeign(env *Env, d Descriptor) ([]T, error) {
	goType := "[]" + typeName[T]()
	trace("from_foreign", "Vec", goType, d.Ptr)
	if IsAbsent(d.Ptr) {
		return nil, NullPointerError(errors.PhaseInbound, goType)
	}
	if d.Len == 0 {
		return []T{}, nil
	}

	raw, total, err := readElems[T](env, errors.PhaseInbound, goType, d)
	if err != nil {
		return nil, err
	}
	out := decodeElems[T](raw, d.Len, false)

	alloc, err := env.allocator(errors.PhaseInbound)
	if err != nil {
		return nil, err
	}
	_, align := elemLayout[T]()
	alloc.Free(uint32(d.Ptr), total, align)
	return out, nil
}

// Release frees exactly the allocation ToForeign made for d.
func (Vec[T]) Release(env *Env, d Descriptor) error {
	goType := "[]" + typeName[T]()
	trace("release", "Vec", goType, d.Ptr)
	if IsAbsent(d.Ptr) {
		return NullPointerError(errors.PhaseRelease, goType)
	}
	if d.Len == 0 {
		return nil
	}

	size, align := elemLayout[T]()
	total, err := byteLen(errors.PhaseRelease, goType, uint64(d.Len), size)
	if err != nil {
		return err
	}
	alloc, err := env.allocator(errors.PhaseRelease)
	if err != nil {
		return err
	}
	alloc.Free(uint32(d.Ptr), total, align)
	return nil
}

func (Vec[T]) ForeignDefault() Descriptor {
	return Descriptor{}
}

// VecRef borrows a buffer the guest still owns. Where layout allows, the
// result is a view over linear memory valid only for the current call;
// otherwise it is a decoded copy.
type VecRef[T Scalar] struct{}

func (VecRef[T]) FromForeign(env *Env, d Descriptor) ([]T, error) {
	goType := "[]" + typeName[T]()
	trace("from_foreign", "VecRef", goType, d.Ptr)
	if IsAbsent(d.Ptr) {
		return nil, NullPointerError(errors.PhaseInbound, goType)
	}
	if d.Len == 0 {
		return []T{}, nil
	}

	raw, _, err := readElems[T](env, errors.PhaseInbound, goType, d)
	if err != nil {
		return nil, err
	}
	return decodeElems[T](raw, d.Len, true), nil
}

func (VecRef[T]) ForeignDefault() Descriptor {
	return Descriptor{}
}

// elemLayout returns the guest size and alignment of T. Wasm scalars are
// naturally aligned.
func elemLayout[T Scalar]() (size, align uint32) {
	var zero T
	size = uint32(unsafe.Sizeof(zero))
	return size, size
}

func byteLen(phase errors.Phase, goType string, count uint64, size uint32) (uint32, error) {
	total := count * uint64(size)
	if total > math.MaxUint32 {
		return 0, errors.New(phase, errors.KindInvalidData).
			GoType(goType).
			Value(count).
			Detail("%d elements exceed the 32-bit address space", count).
			Build()
	}
	return uint32(total), nil
}

func readElems[T Scalar](env *Env, phase errors.Phase, goType string, d Descriptor) ([]byte, uint32, error) {
	size, _ := elemLayout[T]()
	total, err := byteLen(phase, goType, uint64(d.Len), size)
	if err != nil {
		return nil, 0, err
	}
	mem, err := env.memory(phase)
	if err != nil {
		return nil, 0, err
	}
	raw, err := mem.Read(uint32(d.Ptr), total)
	if err != nil {
		return nil, 0, errors.OutOfBounds(phase, uint32(d.Ptr), total, err)
	}
	return raw, total, nil
}

// encodeElems returns the little-endian bytes of v. On little-endian hosts
// this is a view of v itself.
func encodeElems[T Scalar](v []T) []byte {
	size, _ := elemLayout[T]()
	if size == 1 || hostLittleEndian {
		return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(size))
	}
	out, _ := binary.Append(make([]byte, 0, len(v)*int(size)), binary.LittleEndian, v)
	return out
}

// decodeElems turns count little-endian elements into a []T. With alias set
// the result views raw directly when its address suits T.
func decodeElems[T Scalar](raw []byte, count uint32, alias bool) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	base := unsafe.Pointer(&raw[0])

	if alias && (size == 1 || hostLittleEndian) && uintptr(base)%unsafe.Alignof(zero) == 0 {
		return unsafe.Slice((*T)(base), count)
	}

	out := make([]T, count)
	if size == 1 || hostLittleEndian {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(raw)), raw)
		return out
	}
	_, _ = binary.Decode(raw, binary.LittleEndian, out)
	return out
}
