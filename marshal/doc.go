// Package marshal converts Go values to and from their guest representation.
//
// Each marshaler pairs one Go shape with one foreign shape and implements
// Outbound (host to guest), Inbound (guest to host), or both. Marshalers
// hold no state; everything a conversion touches comes from the Env.
//
// # Marshalers
//
//	Marshaler          Go value        Guest slot    Direction
//	Copy[T]            T               T             both
//	Unit               struct{}        none          both
//	Bool               bool            u8            both
//	String             string          ptr           owning out/in, Release
//	Str                string          ptr           borrowing in
//	Path / PathRef     string          ptr           as String / Str
//	Vec[T]             []T             {ptr,len}     owning out/in, Release
//	VecRef[T]          []T             {ptr,len}     borrowing in
//	BoxMarshaler[T]    *Box[T]         handle        owning out/in, Release
//	BoxRef[T]          *T              handle        borrowing in
//	ArcMarshaler[T]    *Arc[T]         handle        owning out/in, Release
//	ArcRef[T]          *Arc[T]         handle        borrowing in (BorrowRaw)
//	URL, UUID          *url.URL, UUID  ptr           out, borrowing in, Release
//	Option[L, M]       L (zero=absent) ptr           as M, 0 allowed
//
// # Ownership
//
// An owning outbound conversion consumes its value: the buffer or handle it
// returns belongs to the guest until the guest hands it back through the
// matching owning inbound conversion or Release, exactly once. Borrowing
// conversions never transfer anything and their results are only valid for
// the current call.
//
// Arc crossings never change the strong count. ToForeign moves the caller's
// unit into the handle; FromForeign moves it back out. ArcRef uses BorrowRaw
// to reconstruct an Arc whose Release is skipped.
//
// # Absent Addresses
//
// Every inbound conversion checks for address 0 before touching memory or
// the handle table and fails with a KindInvalidData "null pointer" error.
// Option is the only marshaler that accepts 0.
//
// # Example
//
//	env := &marshal.Env{Memory: mem, Allocator: alloc, Handles: table}
//
//	p, err := marshal.String{}.ToForeign(env, "hello")
//	// ... guest uses p, then hands it back ...
//	s, err := marshal.String{}.FromForeign(env, p)
package marshal
