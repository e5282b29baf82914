// Package memtest provides in-process linear memory for tests.
package memtest

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Linear is a fixed-size little-endian byte arena implementing
// wasmmarshal.Memory and wasmmarshal.MemorySizer.
type Linear struct {
	buf []byte
}

// NewLinear returns size bytes of zeroed memory.
func NewLinear(size uint32) *Linear {
	return &Linear{buf: make([]byte, size)}
}

func (m *Linear) Size() uint32 { return uint32(len(m.buf)) }

// Bytes exposes the backing buffer.
func (m *Linear) Bytes() []byte { return m.buf }

func (m *Linear) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return fmt.Errorf("memtest: access of %d bytes at %d out of bounds (size %d)", length, offset, len(m.buf))
	}
	return nil
}

func (m *Linear) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.buf[offset : offset+length : offset+length], nil
}

func (m *Linear) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *Linear) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

func (m *Linear) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), nil
}

func (m *Linear) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

func (m *Linear) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

func (m *Linear) WriteU8(offset uint32, v uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = v
	return nil
}

func (m *Linear) WriteU16(offset uint32, v uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], v)
	return nil
}

func (m *Linear) WriteU32(offset uint32, v uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return nil
}

func (m *Linear) WriteU64(offset uint32, v uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], v)
	return nil
}

// Bump is a never-reusing bump allocator over a Linear. Freed blocks are
// poisoned with 0xDD so use-after-free reads are visible.
type Bump struct {
	mem   *Linear
	next  uint32
	limit uint32
	mu    sync.Mutex
	Fail  bool
}

// NewBump allocates from [base, mem.Size()).
func NewBump(mem *Linear, base uint32) *Bump {
	return &Bump{mem: mem, next: base, limit: mem.Size()}
}

func (b *Bump) Alloc(size, align uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail {
		return 0, fmt.Errorf("memtest: allocation disabled")
	}
	if align == 0 {
		align = 1
	}
	p := (b.next + align - 1) &^ (align - 1)
	if uint64(p)+uint64(size) > uint64(b.limit) {
		return 0, fmt.Errorf("memtest: out of memory allocating %d bytes", size)
	}
	b.next = p + size
	return p, nil
}

func (b *Bump) Free(ptr, size, _ uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if uint64(ptr)+uint64(size) <= uint64(len(b.mem.buf)) {
		for i := ptr; i < ptr+size; i++ {
			b.mem.buf[i] = 0xDD
		}
	}
}

// Heap bundles a Linear with a Bump allocator starting at 64.
type Heap struct {
	*Linear
	Alloc *Bump
}

// NewHeap returns a heap of size bytes.
func NewHeap(size uint32) *Heap {
	mem := NewLinear(size)
	return &Heap{Linear: mem, Alloc: NewBump(mem, 64)}
}

// Guard is a Memory that fails the test on any access. It proves a code
// path never dereferences an address.
type Guard struct {
	T interface {
		Helper()
		Fatalf(format string, args ...any)
	}
}

func (g Guard) touched(op string, offset uint32) {
	g.T.Helper()
	g.T.Fatalf("memtest: guard memory touched: %s at %d", op, offset)
}

func (g Guard) Read(offset, _ uint32) ([]byte, error) { g.touched("Read", offset); return nil, nil }
func (g Guard) Write(offset uint32, _ []byte) error   { g.touched("Write", offset); return nil }
func (g Guard) ReadU8(offset uint32) (uint8, error)   { g.touched("ReadU8", offset); return 0, nil }
func (g Guard) ReadU16(offset uint32) (uint16, error) { g.touched("ReadU16", offset); return 0, nil }
func (g Guard) ReadU32(offset uint32) (uint32, error) { g.touched("ReadU32", offset); return 0, nil }
func (g Guard) ReadU64(offset uint32) (uint64, error) { g.touched("ReadU64", offset); return 0, nil }
func (g Guard) WriteU8(offset uint32, _ uint8) error   { g.touched("WriteU8", offset); return nil }
func (g Guard) WriteU16(offset uint32, _ uint16) error { g.touched("WriteU16", offset); return nil }
func (g Guard) WriteU32(offset uint32, _ uint32) error { g.touched("WriteU32", offset); return nil }
func (g Guard) WriteU64(offset uint32, _ uint64) error { g.touched("WriteU64", offset); return nil }
func (g Guard) Size() uint32                           { g.touched("Size", 0); return 0 }

// GuardAllocator fails the test on any allocator call.
type GuardAllocator struct {
	T interface {
		Helper()
		Fatalf(format string, args ...any)
	}
}

func (g GuardAllocator) Alloc(size, _ uint32) (uint32, error) {
	g.T.Helper()
	g.T.Fatalf("memtest: guard allocator asked for %d bytes", size)
	return 0, nil
}

func (g GuardAllocator) Free(ptr, _, _ uint32) {
	g.T.Helper()
	g.T.Fatalf("memtest: guard allocator asked to free %d", ptr)
}
