// Package handle gives host objects a foreign address.
//
// A guest cannot hold a Go pointer, so exclusively owned and shared host
// values cross the boundary as non-zero u32 handles into a Table. Handle 0
// plays the role of a null address.
//
//	table := handle.NewTable()
//
//	// Host to guest: the table now owns the value
//	h, err := table.Insert(handle.TypeOf[*Counter](), c)
//
//	// Guest passes h back by reference: read without removing
//	v, err := table.Peek(h, handle.TypeOf[*Counter]())
//
//	// Guest hands h back for good: ownership returns to the host
//	v, err := table.Take(h, handle.TypeOf[*Counter]())
//
// # Type Safety
//
// Every entry is tagged with the TypeID of the Go type it was inserted as.
// Peek and Take fail with ErrTypeMismatch when the guest passes a handle of
// another type, and with ErrNotFound for unknown or reclaimed handles.
//
// # Borrows
//
// Borrow and ReturnBorrow count call-scoped readers. Take refuses a handle
// with outstanding borrows. Scope collects the borrows of one call and
// returns them together.
//
// # Observers
//
// Subscribe to receive Inserted, Taken, Dropped, Borrowed and
// BorrowReturned events.
//
// # Memory Management
//
// Entries are not garbage collected. Whatever the guest never hands back
// is dropped by Clear or Close, calling Drop on values implementing Dropper.
package handle
