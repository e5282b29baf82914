package marshal

import (
	"reflect"

	wasmmarshal "github.com/wippyai/wasm-marshal"
	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/handle"
)

// Ptr is a foreign address; see wasmmarshal.Ptr.
type Ptr = wasmmarshal.Ptr

// Descriptor is a foreign {ptr, len} pair; see wasmmarshal.Descriptor.
type Descriptor = wasmmarshal.Descriptor

// Outbound converts a host value L into its foreign representation F.
// Owning implementations consume the host value on success and leave it
// untouched on failure.
type Outbound[L, F any] interface {
	ToForeign(env *Env, v L) (F, error)
}

// Inbound reconstructs a host value L from its foreign representation F.
// Implementations null-check F before touching memory or handles.
type Inbound[F, L any] interface {
	FromForeign(env *Env, f F) (L, error)
}

// Releaser drops a foreign-held value that an outbound conversion handed
// out: the exact inverse reconstruction followed by a drop.
type Releaser[F any] interface {
	Release(env *Env, f F) error
}

// ReturnType supplies the value a boundary function returns in place of a
// result when it fails.
type ReturnType[F any] interface {
	ForeignDefault() F
}

// Env is what a conversion may touch during one boundary call: the guest's
// linear memory, its allocator, and the host handle table. Fields that a
// marshaler does not need may be nil.
type Env struct {
	Memory    wasmmarshal.Memory
	Allocator wasmmarshal.Allocator
	Handles   *handle.Table

	// Scope, when set, records borrows taken by reference marshalers so the
	// handles cannot be reclaimed until the call ends.
	Scope *handle.Scope
}

// IsAbsent reports whether p is the reserved absent address.
func IsAbsent(p Ptr) bool {
	return p == 0
}

// NullPointerError is the standardized failure for an absent address.
func NullPointerError(phase errors.Phase, goType string) error {
	return errors.NullPointer(phase, goType)
}

func (e *Env) memory(phase errors.Phase) (wasmmarshal.Memory, error) {
	if e == nil || e.Memory == nil {
		return nil, errors.InvalidData(phase, "no linear memory bound to call")
	}
	return e.Memory, nil
}

func (e *Env) allocator(phase errors.Phase) (wasmmarshal.Allocator, error) {
	if e == nil || e.Allocator == nil {
		return nil, errors.InvalidData(phase, "no allocator bound to call")
	}
	return e.Allocator, nil
}

func (e *Env) handles(phase errors.Phase) (*handle.Table, error) {
	if e == nil || e.Handles == nil {
		return nil, errors.InvalidData(phase, "no handle table bound to call")
	}
	return e.Handles, nil
}

// borrow records h in the call scope if there is one.
func (e *Env) borrow(h Ptr) {
	if e.Scope != nil {
		e.Scope.Borrow(h)
	}
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// tableError maps handle table failures onto the error taxonomy.
func tableError(phase errors.Phase, goType string, h Ptr, err error) error {
	var mismatch *handle.MismatchError
	switch {
	case errors.As(err, &mismatch):
		return errors.TypeMismatch(phase, goType, mismatch.Got.Name())
	case errors.Is(err, handle.ErrNotFound):
		return errors.HandleNotFound(phase, goType, uint32(h))
	case errors.Is(err, handle.ErrOutstandingBorrow):
		return errors.New(phase, errors.KindInvalidData).
			GoType(goType).
			Value(uint32(h)).
			Cause(err).
			Detail("handle %d is borrowed by the current call", uint32(h)).
			Build()
	case errors.Is(err, handle.ErrClosed):
		return errors.Closed(phase, "handle table")
	default:
		return errors.Wrap(phase, errors.KindInvalidData, err, "handle table")
	}
}

// rephase reports an inbound failure under the phase of the operation that
// triggered it.
func rephase(err error, phase errors.Phase) error {
	var e *errors.Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	cp.Phase = phase
	return &cp
}

// dropValue runs Drop on a value that implements handle.Dropper either
// directly or through its pointer.
func dropValue[T any](p *T) {
	if p == nil {
		return
	}
	if d, ok := any(p).(handle.Dropper); ok {
		d.Drop()
		return
	}
	if d, ok := any(*p).(handle.Dropper); ok {
		d.Drop()
	}
}
