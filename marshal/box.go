package marshal

import (
	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/handle"
)

// Box is a uniquely owned host value. Moving it to the guest consumes the
// box; any later use reports KindConsumed. A Box is not safe for
// concurrent use.
type Box[T any] struct {
	p *T
}

// NewBox moves v onto the heap under a new box.
func NewBox[T any](v T) *Box[T] {
	return &Box[T]{p: &v}
}

// BoxFrom takes ownership of p. The caller must not use p afterwards.
func BoxFrom[T any](p *T) *Box[T] {
	return &Box[T]{p: p}
}

// Get returns the boxed value, or a consumed error once ownership moved.
func (b *Box[T]) Get() (*T, error) {
	if b.Consumed() {
		return nil, errors.Consumed(errors.PhaseOutbound, boxName[T]())
	}
	return b.p, nil
}

// Consumed reports whether the box no longer owns a value.
func (b *Box[T]) Consumed() bool {
	return b == nil || b.p == nil
}

// Drop destroys the value, running its Drop method if it has one.
func (b *Box[T]) Drop() {
	if b.Consumed() {
		return
	}
	p := b.p
	b.p = nil
	dropValue(p)
}

// boxSlot is what a handle table entry holds for a box. When the table
// drops an unreclaimed entry the value is dropped with it.
type boxSlot[T any] struct {
	p *T
}

func (s boxSlot[T]) Drop() {
	dropValue(s.p)
}

func boxType[T any]() handle.TypeID {
	return handle.TypeOf[Box[T]]()
}

func boxName[T any]() string {
	return "Box[" + typeName[T]() + "]"
}

// BoxMarshaler transfers a Box to the guest as a handle and reclaims it.
type BoxMarshaler[T any] struct{}

// ToForeign stores the boxed value in the handle table and consumes b.
// On failure b still owns its value.
func (BoxMarshaler[T]) ToForeign(env *Env, b *Box[T]) (Ptr, error) {
	goType := boxName[T]()
	trace("to_foreign", "Box", goType, 0)
	if b.Consumed() {
		return 0, errors.Consumed(errors.PhaseOutbound, goType)
	}
	table, err := env.handles(errors.PhaseOutbound)
	if err != nil {
		return 0, err
	}
	h, err := table.Insert(boxType[T](), boxSlot[T]{p: b.p})
	if err != nil {
		return 0, tableError(errors.PhaseOutbound, goType, 0, err)
	}
	b.p = nil
	return h, nil
}

// FromForeign reclaims the box behind p. The handle is invalid afterwards.
func (BoxMarshaler[T]) FromForeign(env *Env, p Ptr) (*Box[T], error) {
	goType := boxName[T]()
	trace("from_foreign", "Box", goType, p)
	if IsAbsent(p) {
		return nil, NullPointerError(errors.PhaseInbound, goType)
	}
	table, err := env.handles(errors.PhaseInbound)
	if err != nil {
		return nil, err
	}
	v, err := table.Take(p, boxType[T]())
	if err != nil {
		return nil, tableError(errors.PhaseInbound, goType, p, err)
	}
	return &Box[T]{p: v.(boxSlot[T]).p}, nil
}

// Release reclaims the box behind p and drops it.
func (m BoxMarshaler[T]) Release(env *Env, p Ptr) error {
	b, err := m.FromForeign(env, p)
	if err != nil {
		return rephase(err, errors.PhaseRelease)
	}
	b.Drop()
	return nil
}

func (BoxMarshaler[T]) ForeignDefault() Ptr {
	return 0
}

// BoxRef lends the value behind a guest-held box handle for one call. The
// handle stays owned by the guest.
type BoxRef[T any] struct{}

func (BoxRef[T]) FromForeign(env *Env, p Ptr) (*T, error) {
	goType := boxName[T]()
	trace("from_foreign", "BoxRef", goType, p)
	if IsAbsent(p) {
		return nil, NullPointerError(errors.PhaseInbound, goType)
	}
	table, err := env.handles(errors.PhaseInbound)
	if err != nil {
		return nil, err
	}
	v, err := table.Peek(p, boxType[T]())
	if err != nil {
		return nil, tableError(errors.PhaseInbound, goType, p, err)
	}
	env.borrow(p)
	return v.(boxSlot[T]).p, nil
}

func (BoxRef[T]) ForeignDefault() Ptr {
	return 0
}
