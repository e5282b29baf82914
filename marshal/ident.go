package marshal

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/wasm-marshal/errors"
)

// PtrCodec is a marshaler whose foreign side is a single address.
type PtrCodec[L any] interface {
	Outbound[L, Ptr]
	Inbound[Ptr, L]
}

// URL marshals *url.URL as its string form. Inbound borrows the guest's
// string and parses a host-owned copy.
type URL struct{}

func (URL) ToForeign(env *Env, u *url.URL) (Ptr, error) {
	if u == nil {
		return 0, errors.New(errors.PhaseOutbound, errors.KindInvalidData).
			GoType("*url.URL").
			Detail("nil URL; wrap the marshaler in Option to send absence").
			Build()
	}
	return String{}.ToForeign(env, u.String())
}

func (URL) FromForeign(env *Env, p Ptr) (*url.URL, error) {
	if IsAbsent(p) {
		return nil, NullPointerError(errors.PhaseInbound, "*url.URL")
	}
	s, err := Str{}.FromForeign(env, p)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.Clone(s))
	if err != nil {
		return nil, errors.New(errors.PhaseInbound, errors.KindInvalidData).
			GoType("*url.URL").
			Cause(err).
			Detail("malformed URL").
			Build()
	}
	return u, nil
}

// Release frees a buffer produced by ToForeign.
func (URL) Release(env *Env, p Ptr) error {
	return String{}.Release(env, p)
}

func (URL) ForeignDefault() Ptr {
	return 0
}

// UUID marshals uuid.UUID as its canonical 36-character string.
type UUID struct{}

func (UUID) ToForeign(env *Env, id uuid.UUID) (Ptr, error) {
	return String{}.ToForeign(env, id.String())
}

func (UUID) FromForeign(env *Env, p Ptr) (uuid.UUID, error) {
	if IsAbsent(p) {
		return uuid.Nil, NullPointerError(errors.PhaseInbound, "uuid.UUID")
	}
	s, err := Str{}.FromForeign(env, p)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New(errors.PhaseInbound, errors.KindInvalidData).
			GoType("uuid.UUID").
			Cause(err).
			Detail("malformed UUID").
			Build()
	}
	return id, nil
}

func (UUID) Release(env *Env, p Ptr) error {
	return String{}.Release(env, p)
}

func (UUID) ForeignDefault() Ptr {
	return 0
}

// Option makes absence legal for a pointer marshaler: the zero host value
// crosses as address 0 and address 0 comes back as the zero value, neither
// an error.
type Option[L comparable, M PtrCodec[L]] struct {
	Inner M
}

func (o Option[L, M]) ToForeign(env *Env, v L) (Ptr, error) {
	var zero L
	if v == zero {
		return 0, nil
	}
	return o.Inner.ToForeign(env, v)
}

func (o Option[L, M]) FromForeign(env *Env, p Ptr) (L, error) {
	if IsAbsent(p) {
		var zero L
		return zero, nil
	}
	return o.Inner.FromForeign(env, p)
}

// Release forwards to the inner marshaler when it has a release operation.
func (o Option[L, M]) Release(env *Env, p Ptr) error {
	if IsAbsent(p) {
		return nil
	}
	if r, ok := any(o.Inner).(Releaser[Ptr]); ok {
		return r.Release(env, p)
	}
	return nil
}

func (Option[L, M]) ForeignDefault() Ptr {
	return 0
}
