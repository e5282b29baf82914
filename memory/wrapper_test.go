package memory

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	wasmmarshal "github.com/wippyai/wasm-marshal"
	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/internal/guest"
)

func instantiateGuest(t *testing.T) (context.Context, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := guest.Instantiate(ctx, rt, "guest")
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	return ctx, mod
}

func TestWrapMemory_Nil(t *testing.T) {
	if WrapMemory(nil) != nil {
		t.Error("expected nil for nil memory")
	}
}

func TestWrapAllocator_Nil(t *testing.T) {
	if WrapAllocator(context.Background(), nil) != nil {
		t.Error("expected nil for nil function")
	}
	if WrapMallocFree(context.Background(), nil, nil) != nil {
		t.Error("expected nil for nil malloc/free")
	}
}

func TestWrapMemory_ReadWrite(t *testing.T) {
	_, mod := instantiateGuest(t)
	mem := WrapMemory(mod.ExportedMemory("memory"))

	data := []byte{1, 2, 3, 4}
	if err := mem.Write(0, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	read, err := mem.Read(0, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, b := range read {
		if b != data[i] {
			t.Errorf("byte %d: expected %d, got %d", i, data[i], b)
		}
	}
	if size := mem.(wasmmarshal.MemorySizer).Size(); size != 65536 {
		t.Errorf("expected one page, got %d bytes", size)
	}
}

func TestWrapMemory_OutOfBounds(t *testing.T) {
	_, mod := instantiateGuest(t)
	mem := WrapMemory(mod.ExportedMemory("memory"))

	if _, err := mem.Read(65536, 1); !errors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("read: expected out of bounds, got %v", err)
	}
	if err := mem.Write(65535, []byte{1, 2}); !errors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("write: expected out of bounds, got %v", err)
	}
	if _, err := mem.ReadU64(65532); !errors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("ReadU64: expected out of bounds, got %v", err)
	}
	if err := mem.WriteU32(65534, 1); !errors.Is(err, errors.ErrOutOfBounds) {
		t.Errorf("WriteU32: expected out of bounds, got %v", err)
	}
}

func TestWrapMemory_IntegerReadWrite(t *testing.T) {
	_, mod := instantiateGuest(t)
	mem := WrapMemory(mod.ExportedMemory("memory"))

	if err := mem.WriteU8(0, 42); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
	if v, err := mem.ReadU8(0); err != nil || v != 42 {
		t.Errorf("ReadU8: expected 42, got %d (%v)", v, err)
	}

	if err := mem.WriteU16(0, 0x1234); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	if v, err := mem.ReadU16(0); err != nil || v != 0x1234 {
		t.Errorf("ReadU16: expected 0x1234, got 0x%x (%v)", v, err)
	}

	if err := mem.WriteU32(0, 0x12345678); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	if v, err := mem.ReadU32(0); err != nil || v != 0x12345678 {
		t.Errorf("ReadU32: expected 0x12345678, got 0x%x (%v)", v, err)
	}

	if err := mem.WriteU64(0, 0x123456789ABCDEF0); err != nil {
		t.Fatalf("WriteU64 failed: %v", err)
	}
	if v, err := mem.ReadU64(0); err != nil || v != 0x123456789ABCDEF0 {
		t.Errorf("ReadU64: expected 0x123456789ABCDEF0, got 0x%x (%v)", v, err)
	}
}

func TestWrapAllocator_Bump(t *testing.T) {
	ctx, mod := instantiateGuest(t)
	alloc := WrapAllocator(ctx, mod.ExportedFunction("cabi_realloc"))

	p1, err := alloc.Alloc(5, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p1 != guest.HeapBase {
		t.Fatalf("first block at %d, want %d", p1, guest.HeapBase)
	}
	p2, err := alloc.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p2%8 != 0 || p2 < p1+5 {
		t.Fatalf("second block at %d overlaps or is misaligned", p2)
	}
	alloc.Free(p1, 5, 1)
	alloc.Free(p2, 16, 8)
}

func TestTracker_OverGuest(t *testing.T) {
	ctx, mod := instantiateGuest(t)
	tr := NewTracker(WrapAllocator(ctx, mod.ExportedFunction("cabi_realloc")))

	p, err := tr.Alloc(32, 4)
	if err != nil {
		t.Fatal(err)
	}
	tr.Free(p, 32, 4)
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
