// Package wasmmarshal moves Go values across the boundary to a WebAssembly
// guest without leaks, double frees, or dangling references.
//
// The guest only understands flat data: i32/i64 values, addresses into its
// linear memory, and (ptr, len) pairs. It has no notion of ownership. Each
// Go value shape gets a marshaler that defines an outbound conversion
// (host to guest, optionally transferring ownership) and an inbound one
// (guest to host, optionally taking ownership back).
//
// # Architecture Overview
//
//	wasmmarshal/         Root package with Memory, Allocator, Ptr, Descriptor
//	├── marshal/         Marshalers per value shape, Box and Arc ownership types
//	├── boundary/        Host function composition and the error-callback protocol
//	├── handle/          Handle table giving host objects a foreign address
//	├── memory/          wazero adapters and allocation tracking
//	├── errors/          Structured error types
//	└── cmd/marshalctl/  CLI and TUI driving a guest fixture
//
// # Value Shapes
//
//	Go value         Foreign slot     Marshaler
//	──────────────────────────────────────────────────────
//	int32, f64...    same scalar      marshal.Copy[T]
//	struct{}         (none)           marshal.Unit
//	bool             u8               marshal.Bool
//	string           ptr (NUL term)   marshal.String / marshal.Str
//	path             ptr (NUL term)   marshal.Path
//	[]T              {ptr, len}       marshal.Vec[T] / marshal.VecRef[T]
//	*Box[T]          handle           marshal.BoxMarshaler[T] / marshal.BoxRef[T]
//	*Arc[T]          handle           marshal.ArcMarshaler[T] / marshal.ArcRef[T]
//	*url.URL, UUID   ptr (NUL term)   marshal.URL / marshal.UUID, marshal.Option
//
// # Ownership
//
// An outbound owning conversion consumes the host value. The matching
// inbound owning conversion (or the marshaler's Release) ends the foreign
// lifetime; after that the address must not be used again. Shared values
// carry one unit of their reference count inside the foreign address.
//
// # Thread Safety
//
// Marshalers are stateless. The handle table and Arc counts are safe for
// concurrent use. A guest instance's memory is not; use one Env per call.
package wasmmarshal
