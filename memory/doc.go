// Package memory provides linear memory and allocator adapters for wazero,
// plus an allocation tracker.
//
// WrapMemory exposes a guest's exported memory. WrapAllocator delegates
// allocation to the guest's cabi_realloc export; WrapMallocFree to a
// malloc/free pair. The layer never allocates guest memory on its own.
//
// Tracker wraps any Allocator and verifies the alloc/free pairing that
// every marshaler relies on:
//
//	tr := memory.NewTracker(memory.WrapAllocator(ctx, mod.ExportedFunction("cabi_realloc")))
//	// ... conversions ...
//	if err := tr.Verify(); err != nil {
//	    // leaks, double frees, size mismatches
//	}
package memory
