package boundary

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/handle"
	"github.com/wippyai/wasm-marshal/marshal"
)

// ErrCallback receives a failure description as a NUL-terminated string in
// guest memory. The buffer is only valid until the callback returns.
type ErrCallback func(ctx context.Context, msg marshal.Ptr)

// GuestCallback adapts a guest export taking one i32 to an ErrCallback.
func GuestCallback(fn api.Function) ErrCallback {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, msg marshal.Ptr) {
		if _, err := fn.Call(ctx, api.EncodeU32(uint32(msg))); err != nil {
			Logger().Warn("error callback trapped", zap.Error(err))
		}
	}
}

// ThrowError reports err through cb and returns fallback. The message is
// written to guest memory with the String marshaler and released once cb
// returns. A nil cb swallows the error. Delivery problems are logged and
// never replace the fallback.
func ThrowError[F any](ctx context.Context, env *marshal.Env, cb ErrCallback, err error, fallback F) F {
	if err == nil {
		return fallback
	}
	if cb == nil {
		Logger().Debug("error swallowed", zap.Error(err))
		return fallback
	}

	msg := strings.ReplaceAll(err.Error(), "\x00", `\0`)
	p, encErr := marshal.String{}.ToForeign(env, msg)
	if encErr != nil {
		Logger().Warn("cannot deliver error to callback",
			zap.Error(err),
			zap.NamedError("delivery", encErr),
		)
		return fallback
	}

	cb(ctx, p)

	if relErr := (marshal.String{}).Release(env, p); relErr != nil {
		Logger().Warn("cannot release error message", zap.Uint32("ptr", uint32(p)), zap.Error(relErr))
	}
	return fallback
}

// Callbacks maps non-zero u32 references to error callbacks so a guest can
// select one per call. Reference 0 means no callback.
type Callbacks struct {
	table *handle.Table
}

var callbackType = handle.TypeOf[ErrCallback]()

// NewCallbacks creates an empty registry.
func NewCallbacks() *Callbacks {
	return &Callbacks{table: handle.NewTable()}
}

// Register stores cb and returns its reference.
func (c *Callbacks) Register(cb ErrCallback) (uint32, error) {
	if cb == nil {
		return 0, errors.InvalidData(errors.PhaseBoundary, "nil error callback")
	}
	h, err := c.table.Insert(callbackType, cb)
	if err != nil {
		return 0, errors.Closed(errors.PhaseBoundary, "callback registry")
	}
	return uint32(h), nil
}

// Lookup returns the callback for ref, or nil for 0 and unknown references.
func (c *Callbacks) Lookup(ref uint32) ErrCallback {
	if ref == 0 {
		return nil
	}
	v, err := c.table.Peek(handle.Handle(ref), callbackType)
	if err != nil {
		Logger().Debug("unknown error callback reference", zap.Uint32("ref", ref), zap.Error(err))
		return nil
	}
	return v.(ErrCallback)
}

// Unregister removes ref.
func (c *Callbacks) Unregister(ref uint32) bool {
	return c.table.Drop(handle.Handle(ref))
}

// Len returns the number of registered callbacks.
func (c *Callbacks) Len() int {
	return c.table.Len()
}

// Close removes every callback.
func (c *Callbacks) Close() error {
	return c.table.Close()
}
