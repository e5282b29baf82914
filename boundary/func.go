package boundary

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/marshal"
)

// Func is one boundary function. Params and Results declare the slots in
// order; Body reads them with Param and writes them with Result.
//
// When ErrCallback is set the function takes one extra trailing i32: a
// reference from the module's Callbacks. Any error or panic from Body is
// reported through that callback and the function returns Fallback
// (all zeros when nil).
type Func struct {
	Body        func(c *Call) error
	Name        string
	Params      []Slot
	Results     []Slot
	Fallback    []uint64
	ErrCallback bool
}

func (f *Func) paramTypes() []api.ValueType {
	var out []api.ValueType
	for _, s := range f.Params {
		out = append(out, s.Types...)
	}
	if f.ErrCallback {
		out = append(out, api.ValueTypeI32)
	}
	return out
}

func (f *Func) resultTypes() []api.ValueType {
	var out []api.ValueType
	for _, s := range f.Results {
		out = append(out, s.Types...)
	}
	return out
}

func (f *Func) paramWidth() int {
	n := 0
	for _, s := range f.Params {
		n += s.Width()
	}
	return n
}

func (f *Func) resultWidth() int {
	n := 0
	for _, s := range f.Results {
		n += s.Width()
	}
	return n
}

func (f *Func) validate() error {
	switch {
	case f.Name == "":
		return errors.InvalidData(errors.PhaseBoundary, "function has no name")
	case f.Body == nil:
		return errors.New(errors.PhaseBoundary, errors.KindInvalidData).
			Path(f.Name).
			Detail("function has no body").
			Build()
	case f.Fallback != nil && len(f.Fallback) != f.resultWidth():
		return errors.New(errors.PhaseBoundary, errors.KindInvalidData).
			Path(f.Name).
			Detail("fallback has %d values, results need %d", len(f.Fallback), f.resultWidth()).
			Build()
	}
	return nil
}

// Call is the state of one invocation: the resolved Env, the incoming
// parameters, and the results written so far.
type Call struct {
	ctx     context.Context
	env     *marshal.Env
	fn      *Func
	params  []uint64
	results []uint64
	undo    []func() error
	pi, ps  int
	ri, rs  int
}

// Context returns the invocation context.
func (c *Call) Context() context.Context {
	return c.ctx
}

// Env returns the environment conversions run in.
func (c *Call) Env() *marshal.Env {
	return c.env
}

func (c *Call) slotName(slots []Slot, i int) string {
	if i < len(slots) && slots[i].Name != "" {
		return slots[i].Name
	}
	return strconv.Itoa(i)
}

// Param reads the next parameter with m.
func Param[F, L any](c *Call, m marshal.Inbound[F, L]) (L, error) {
	var zero L
	slot := c.ps
	name := c.slotName(c.fn.Params, slot)
	w := width[F]()
	if slot >= len(c.fn.Params) || c.fn.Params[slot].Width() != w || c.pi+w > len(c.params) {
		return zero, errors.New(errors.PhaseBoundary, errors.KindTypeMismatch).
			Path(c.fn.Name, name).
			ForeignType(fmt.Sprintf("%T", *new(F))).
			Detail("parameter read does not match the declared slots").
			Build()
	}

	f := decodeParam(c.params[c.pi:], m)
	c.pi += w
	c.ps++

	v, err := m.FromForeign(c.env, f)
	if err != nil {
		return zero, errors.WithPath(err, c.fn.Name, name)
	}
	return v, nil
}

// Result converts v with m and writes it as the next result. If the call
// later fails, results already handed to the guest are released so no
// ownership leaks with the fallback.
func Result[L, F any](c *Call, m marshal.Outbound[L, F], v L) error {
	slot := c.rs
	name := c.slotName(c.fn.Results, slot)
	w := width[F]()
	if slot >= len(c.fn.Results) || c.fn.Results[slot].Width() != w || c.ri+w > len(c.results) {
		return errors.New(errors.PhaseBoundary, errors.KindTypeMismatch).
			Path(c.fn.Name, name).
			ForeignType(fmt.Sprintf("%T", *new(F))).
			Detail("result write does not match the declared slots").
			Build()
	}

	f, err := m.ToForeign(c.env, v)
	if err != nil {
		return errors.WithPath(err, c.fn.Name, name)
	}
	encodeInto(c.results[c.ri:], f)
	c.ri += w
	c.rs++

	if r, ok := any(m).(marshal.Releaser[F]); ok {
		env := c.env
		c.undo = append(c.undo, func() error { return r.Release(env, f) })
	}
	return nil
}

// rollback releases results written before a failure.
func (c *Call) rollback(log *zap.Logger) {
	for i := len(c.undo) - 1; i >= 0; i-- {
		if err := c.undo[i](); err != nil {
			log.Warn("cannot release result after failure", zap.String("func", c.fn.Name), zap.Error(err))
		}
	}
	c.undo = nil
}
