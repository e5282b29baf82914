package marshal

import (
	"sync/atomic"

	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/handle"
)

// arcInner is the shared allocation: the value plus its strong count.
type arcInner[T any] struct {
	value  T
	strong atomic.Int64
}

// release gives up one unit of the strong count and drops the value when
// it was the last.
func (in *arcInner[T]) release() {
	if in.strong.Add(-1) == 0 {
		dropValue(&in.value)
	}
}

// Drop lets a handle table release the unit held by an unreclaimed entry.
func (in *arcInner[T]) Drop() {
	in.release()
}

// Arc is one counted reference to a shared host value. Each Arc owns one
// unit of the strong count and gives it up on Release. An Arc obtained
// through BorrowRaw owns nothing and its Release is a no-op.
//
// The count is updated atomically so Arcs to the same value may be used
// from different goroutines; a single Arc should be used by one at a time.
type Arc[T any] struct {
	inner    atomic.Pointer[arcInner[T]]
	borrowed bool
}

// NewArc allocates v with a strong count of one.
func NewArc[T any](v T) *Arc[T] {
	in := &arcInner[T]{value: v}
	in.strong.Store(1)
	a := &Arc[T]{}
	a.inner.Store(in)
	return a
}

// Clone returns a new owning Arc to the same value, adding one unit.
// Cloning a borrowed Arc is allowed and yields an owning one.
func (a *Arc[T]) Clone() *Arc[T] {
	in := a.load()
	if in == nil {
		return nil
	}
	in.strong.Add(1)
	c := &Arc[T]{}
	c.inner.Store(in)
	return c
}

// Release gives up this Arc's unit. Calling it more than once, or on a
// borrowed or transferred Arc, does nothing.
func (a *Arc[T]) Release() {
	if a == nil || a.borrowed {
		return
	}
	if in := a.inner.Swap(nil); in != nil {
		in.release()
	}
}

// Get returns the shared value, or nil once this Arc was released or
// transferred.
func (a *Arc[T]) Get() *T {
	in := a.load()
	if in == nil {
		return nil
	}
	return &in.value
}

// StrongCount returns the current number of owning references, including
// any carried by guest handles.
func (a *Arc[T]) StrongCount() int64 {
	in := a.load()
	if in == nil {
		return 0
	}
	return in.strong.Load()
}

// Borrowed reports whether a was produced by BorrowRaw.
func (a *Arc[T]) Borrowed() bool {
	return a != nil && a.borrowed
}

// Same reports whether a and b refer to the same allocation.
func (a *Arc[T]) Same(b *Arc[T]) bool {
	x, y := a.load(), b.load()
	return x != nil && x == y
}

func (a *Arc[T]) load() *arcInner[T] {
	if a == nil {
		return nil
	}
	return a.inner.Load()
}

// forget marks a so that Release skips it. Only BorrowRaw uses it.
func (a *Arc[T]) forget() {
	a.borrowed = true
}

func arcType[T any]() handle.TypeID {
	return handle.TypeOf[Arc[T]]()
}

func arcName[T any]() string {
	return "Arc[" + typeName[T]() + "]"
}

// BorrowRaw reconstructs a typed Arc from a guest-held handle without
// consuming it: the entry stays in the table, the strong count is not
// touched, and the returned Arc's Release is a no-op. The result must not
// outlive the current call; Clone it to keep the value.
func BorrowRaw[T any](env *Env, p Ptr) (*Arc[T], error) {
	goType := arcName[T]()
	if IsAbsent(p) {
		return nil, NullPointerError(errors.PhaseInbound, goType)
	}
	table, err := env.handles(errors.PhaseInbound)
	if err != nil {
		return nil, err
	}
	v, err := table.Peek(p, arcType[T]())
	if err != nil {
		return nil, tableError(errors.PhaseInbound, goType, p, err)
	}

	a := &Arc[T]{}
	a.inner.Store(v.(*arcInner[T]))
	a.forget()
	env.borrow(p)
	return a, nil
}

// ArcMarshaler moves one unit of an Arc's count to the guest as a handle
// and reclaims it. The count is never changed by the crossing itself.
type ArcMarshaler[T any] struct{}

// ToForeign transfers a's unit into the handle table. a is consumed on
// success and untouched on failure.
func (ArcMarshaler[T]) ToForeign(env *Env, a *Arc[T]) (Ptr, error) {
	goType := arcName[T]()
	trace("to_foreign", "Arc", goType, 0)
	if a.Borrowed() {
		return 0, errors.New(errors.PhaseOutbound, errors.KindInvalidData).
			GoType(goType).
			Detail("borrowed Arc owns no reference to transfer; Clone it first").
			Build()
	}
	table, err := env.handles(errors.PhaseOutbound)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, errors.Consumed(errors.PhaseOutbound, goType)
	}
	in := a.inner.Swap(nil)
	if in == nil {
		return 0, errors.Consumed(errors.PhaseOutbound, goType)
	}
	h, err := table.Insert(arcType[T](), in)
	if err != nil {
		a.inner.Store(in)
		return 0, tableError(errors.PhaseOutbound, goType, 0, err)
	}
	return h, nil
}

// FromForeign reclaims the unit behind p. The returned Arc owns it and
// must be released like any other.
func (ArcMarshaler[T]) FromForeign(env *Env, p Ptr) (*Arc[T], error) {
	goType := arcName[T]()
	trace("from_foreign", "Arc", goType, p)
	if IsAbsent(p) {
		return nil, NullPointerError(errors.PhaseInbound, goType)
	}
	table, err := env.handles(errors.PhaseInbound)
	if err != nil {
		return nil, err
	}
	v, err := table.Take(p, arcType[T]())
	if err != nil {
		return nil, tableError(errors.PhaseInbound, goType, p, err)
	}
	a := &Arc[T]{}
	a.inner.Store(v.(*arcInner[T]))
	return a, nil
}

// Release reclaims the unit behind p and gives it up.
func (m ArcMarshaler[T]) Release(env *Env, p Ptr) error {
	a, err := m.FromForeign(env, p)
	if err != nil {
		return rephase(err, errors.PhaseRelease)
	}
	a.Release()
	return nil
}

func (ArcMarshaler[T]) ForeignDefault() Ptr {
	return 0
}

// ArcRef lends a guest-held Arc for one call without changing its count.
// There is no mutable variant: shared values are read-only across the
// boundary.
type ArcRef[T any] struct{}

func (ArcRef[T]) FromForeign(env *Env, p Ptr) (*Arc[T], error) {
	trace("from_foreign", "ArcRef", arcName[T](), p)
	return BorrowRaw[T](env, p)
}

func (ArcRef[T]) ForeignDefault() Ptr {
	return 0
}
