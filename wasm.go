package wasmmarshal

import "fmt"

// Memory represents guest linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in guest linear memory.
// Every Alloc must be paired with exactly one Free of the same size and align.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Ptr is a foreign address. It is either an offset into linear memory or a
// handle naming a host object. Zero is reserved for "absent".
type Ptr uint32

// IsNull reports whether p is the reserved absent address.
func (p Ptr) IsNull() bool {
	return p == 0
}

func (p Ptr) String() string {
	return fmt.Sprintf("0x%08x", uint32(p))
}

// Descriptor describes a variable-size buffer across the boundary without
// committing to its element layout. Len counts elements, not bytes.
type Descriptor struct {
	Ptr Ptr
	Len uint32
}

// Pack encodes d into a single 64-bit slot as ptr<<32 | len.
func (d Descriptor) Pack() uint64 {
	return uint64(d.Ptr)<<32 | uint64(d.Len)
}

// UnpackDescriptor is the inverse of Descriptor.Pack.
func UnpackDescriptor(v uint64) Descriptor {
	return Descriptor{Ptr: Ptr(v >> 32), Len: uint32(v)}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("{ptr: %s, len: %d}", d.Ptr, d.Len)
}
