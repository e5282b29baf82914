package memory

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasmmarshal "github.com/wippyai/wasm-marshal"
	"github.com/wippyai/wasm-marshal/errors"
)

// WrapMemory exposes a wazero memory as wasmmarshal.Memory. The result
// also implements wasmmarshal.MemorySizer.
func WrapMemory(mem api.Memory) wasmmarshal.Memory {
	if mem == nil {
		return nil
	}
	return linear{mem: mem}
}

// WrapAllocator allocates through a cabi_realloc export.
func WrapAllocator(ctx context.Context, fn api.Function) wasmmarshal.Allocator {
	if fn == nil {
		return nil
	}
	return &realloc{ctx: ctx, fn: fn}
}

// WrapMallocFree allocates through C-style malloc(size) and free(ptr)
// exports. Alignment is whatever the guest malloc guarantees.
func WrapMallocFree(ctx context.Context, malloc, free api.Function) wasmmarshal.Allocator {
	if malloc == nil || free == nil {
		return nil
	}
	return &mallocFree{ctx: ctx, malloc: malloc, free: free}
}

// linear is guest memory seen through wazero. Slices returned by Read
// alias linear memory until the next grow.
type linear struct {
	mem api.Memory
}

// loaded turns a wazero (value, ok) access into a bounds-checked result.
func loaded[T any](v T, ok bool, offset, width uint32) (T, error) {
	if !ok {
		var zero T
		return zero, errors.OutOfBounds(errors.PhaseMemory, offset, width, nil)
	}
	return v, nil
}

func stored(ok bool, offset, width uint32) error {
	if !ok {
		return errors.OutOfBounds(errors.PhaseMemory, offset, width, nil)
	}
	return nil
}

func (m linear) Size() uint32 {
	return m.mem.Size()
}

func (m linear) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	return loaded(data, ok, offset, length)
}

func (m linear) Write(offset uint32, data []byte) error {
	return stored(m.mem.Write(offset, data), offset, uint32(len(data)))
}

func (m linear) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	return loaded(v, ok, offset, 1)
}

func (m linear) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	return loaded(v, ok, offset, 2)
}

func (m linear) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	return loaded(v, ok, offset, 4)
}

func (m linear) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	return loaded(v, ok, offset, 8)
}

func (m linear) WriteU8(offset uint32, v uint8) error {
	return stored(m.mem.WriteByte(offset, v), offset, 1)
}

func (m linear) WriteU16(offset uint32, v uint16) error {
	return stored(m.mem.WriteUint16Le(offset, v), offset, 2)
}

func (m linear) WriteU32(offset uint32, v uint32) error {
	return stored(m.mem.WriteUint32Le(offset, v), offset, 4)
}

func (m linear) WriteU64(offset uint32, v uint64) error {
	return stored(m.mem.WriteUint64Le(offset, v), offset, 8)
}

// guestPtr checks the single i32 result of a guest allocation call.
func guestPtr(results []uint64, err error, export string, size, align uint32) (uint32, error) {
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align, err)
	}
	if len(results) == 0 {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align, fmt.Errorf("%s returned no result", export))
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align, fmt.Errorf("%s returned null", export))
	}
	return ptr, nil
}

type realloc struct {
	ctx context.Context
	fn  api.Function
}

// Alloc calls cabi_realloc(0, 0, align, size).
func (a *realloc) Alloc(size, align uint32) (uint32, error) {
	results, err := a.fn.Call(a.ctx, 0, 0, api.EncodeU32(align), api.EncodeU32(size))
	return guestPtr(results, err, "cabi_realloc", size, align)
}

// Free calls cabi_realloc(ptr, size, align, 0).
func (a *realloc) Free(ptr, size, align uint32) {
	if _, err := a.fn.Call(a.ctx, api.EncodeU32(ptr), api.EncodeU32(size), api.EncodeU32(align), 0); err != nil {
		Logger().Warn("cabi_realloc free failed", zapPtr(ptr), zapErr(err))
	}
}

type mallocFree struct {
	ctx    context.Context
	malloc api.Function
	free   api.Function
}

func (a *mallocFree) Alloc(size, align uint32) (uint32, error) {
	results, err := a.malloc.Call(a.ctx, api.EncodeU32(size))
	return guestPtr(results, err, "malloc", size, align)
}

func (a *mallocFree) Free(ptr, _, _ uint32) {
	if _, err := a.free.Call(a.ctx, api.EncodeU32(ptr)); err != nil {
		Logger().Warn("free failed", zapPtr(ptr), zapErr(err))
	}
}
