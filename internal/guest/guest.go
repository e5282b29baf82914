// Package guest holds a minimal WebAssembly guest used by tests and the CLI.
package guest

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HeapBase is the first address the bump allocator hands out.
const HeapBase = 1024

// Bump is a one-page module exporting its memory and a bump allocator
// behind the cabi_realloc signature. Frees are no-ops. Equivalent WAT:
//
//	(module
//	  (memory (export "memory") 1)
//	  (global $heap (mut i32) (i32.const 1024))
//	  (func (export "cabi_realloc")
//	    (param $old i32) (param $old_size i32) (param $align i32) (param $size i32)
//	    (result i32) (local $p i32)
//	    global.get $heap
//	    i32.const 7
//	    i32.add
//	    i32.const -8
//	    i32.and
//	    local.tee $p
//	    local.get $size
//	    i32.add
//	    global.set $heap
//	    local.get $p))
var Bump = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version

	// type: (i32 i32 i32 i32) -> i32
	0x01, 0x09, 0x01, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,

	// function: 1 func of type 0
	0x03, 0x02, 0x01, 0x00,

	// memory: 1 page, no max
	0x05, 0x03, 0x01, 0x00, 0x01,

	// global: mut i32 = 1024
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,

	// export: "memory" mem 0, "cabi_realloc" func 0
	0x07, 0x19, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0c, 'c', 'a', 'b', 'i', '_', 'r', 'e', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,

	// code
	0x0a, 0x17, 0x01, 0x15,
	0x01, 0x01, 0x7f, // one i32 local
	0x23, 0x00, // global.get 0
	0x41, 0x07, // i32.const 7
	0x6a,       // i32.add
	0x41, 0x78, // i32.const -8
	0x71,       // i32.and
	0x22, 0x04, // local.tee 4
	0x20, 0x03, // local.get 3
	0x6a,       // i32.add
	0x24, 0x00, // global.set 0
	0x20, 0x04, // local.get 4
	0x0b, // end
}

// Instantiate compiles and instantiates Bump under name.
func Instantiate(ctx context.Context, rt wazero.Runtime, name string) (api.Module, error) {
	return rt.InstantiateWithConfig(ctx, Bump, wazero.NewModuleConfig().WithName(name))
}
