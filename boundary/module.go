package boundary

import (
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	wasmmarshal "github.com/wippyai/wasm-marshal"
	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/handle"
	"github.com/wippyai/wasm-marshal/marshal"
	"github.com/wippyai/wasm-marshal/memory"
)

// Options configures a Module.
type Options struct {
	// Env resolves memory and allocator per call. Defaults to CallerEnv.
	Env EnvResolver

	Logger *zap.Logger

	ModuleName string

	// AllocatorExport names the guest's cabi_realloc-style export. When the
	// guest lacks it, MallocExport and FreeExport are tried.
	AllocatorExport string
	MallocExport    string
	FreeExport      string
}

// DefaultOptions returns default module configuration.
func DefaultOptions() Options {
	return Options{
		ModuleName:      "env",
		AllocatorExport: "cabi_realloc",
		MallocExport:    "malloc",
		FreeExport:      "free",
	}
}

// EnvResolver supplies the guest memory and allocator for one call. caller
// is the module that invoked the host function.
type EnvResolver func(ctx context.Context, caller api.Module) (wasmmarshal.Memory, wasmmarshal.Allocator, error)

// CallerEnv resolves memory and allocator from the calling module.
func CallerEnv(opts Options) EnvResolver {
	return func(ctx context.Context, caller api.Module) (wasmmarshal.Memory, wasmmarshal.Allocator, error) {
		return moduleEnv(ctx, caller, opts)
	}
}

// GuestEnv always resolves against mod, whoever the caller is.
func GuestEnv(mod api.Module, opts Options) EnvResolver {
	return func(ctx context.Context, _ api.Module) (wasmmarshal.Memory, wasmmarshal.Allocator, error) {
		return moduleEnv(ctx, mod, opts)
	}
}

// StaticEnv always resolves to mem and alloc.
func StaticEnv(mem wasmmarshal.Memory, alloc wasmmarshal.Allocator) EnvResolver {
	return func(context.Context, api.Module) (wasmmarshal.Memory, wasmmarshal.Allocator, error) {
		return mem, alloc, nil
	}
}

func moduleEnv(ctx context.Context, mod api.Module, opts Options) (wasmmarshal.Memory, wasmmarshal.Allocator, error) {
	if mod == nil {
		return nil, nil, errors.InvalidData(errors.PhaseBoundary, "no module to resolve memory from")
	}
	mem := memory.WrapMemory(mod.Memory())
	if mem == nil {
		return nil, nil, errors.New(errors.PhaseBoundary, errors.KindNotFound).
			Detail("module %q has no memory", mod.Name()).
			Build()
	}

	var alloc wasmmarshal.Allocator
	if opts.AllocatorExport != "" {
		alloc = memory.WrapAllocator(ctx, mod.ExportedFunction(opts.AllocatorExport))
	}
	if alloc == nil && opts.MallocExport != "" && opts.FreeExport != "" {
		alloc = memory.WrapMallocFree(ctx, mod.ExportedFunction(opts.MallocExport), mod.ExportedFunction(opts.FreeExport))
	}
	// Memory alone is enough for borrowing conversions; allocating ones
	// report the missing allocator themselves.
	return mem, alloc, nil
}

// Module is a set of boundary functions sharing one handle table and one
// callback registry. Safe for concurrent calls once instantiated.
type Module struct {
	mod       api.Module
	handles   *handle.Table
	callbacks *Callbacks
	log       *zap.Logger
	opts      Options
	funcs     []*Func
	mu        sync.Mutex
}

// New creates an empty module.
func New(opts Options) *Module {
	if opts.ModuleName == "" {
		opts.ModuleName = DefaultOptions().ModuleName
	}
	if opts.Env == nil {
		opts.Env = CallerEnv(opts)
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	return &Module{
		handles:   handle.NewTable(),
		callbacks: NewCallbacks(),
		log:       log.With(zap.String("module", opts.ModuleName)),
		opts:      opts,
	}
}

// Func adds f to the module.
func (m *Module) Func(f *Func) *Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, f)
	return m
}

// Handles returns the table host objects are stored in.
func (m *Module) Handles() *handle.Table {
	return m.handles
}

// Callbacks returns the error callback registry.
func (m *Module) Callbacks() *Callbacks {
	return m.callbacks
}

// Env resolves an Env the way a call from caller would, without a borrow
// scope. Host code uses it to hand values to the guest outside a call.
func (m *Module) Env(ctx context.Context, caller api.Module) (*marshal.Env, error) {
	mem, alloc, err := m.opts.Env(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &marshal.Env{Memory: mem, Allocator: alloc, Handles: m.handles}, nil
}

// Instantiate builds the host module in rt. All functions are validated
// first and every problem is reported.
func (m *Module) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mod != nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindInvalidData).
			Detail("module %q already instantiated", m.opts.ModuleName).
			Build()
	}

	var err error
	seen := make(map[string]bool, len(m.funcs))
	for _, f := range m.funcs {
		err = multierr.Append(err, f.validate())
		if seen[f.Name] {
			err = multierr.Append(err, errors.New(errors.PhaseBoundary, errors.KindInvalidData).
				Path(f.Name).
				Detail("duplicate function").
				Build())
		}
		seen[f.Name] = true
	}
	if err != nil {
		return nil, err
	}

	builder := rt.NewHostModuleBuilder(m.opts.ModuleName)
	for _, f := range m.funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(m.handler(f), f.paramTypes(), f.resultTypes()).
			Export(f.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	m.mod = mod
	m.log.Debug("host module instantiated", zap.Int("funcs", len(m.funcs)))
	return mod, nil
}

// handler adapts f to the wazero calling convention.
func (m *Module) handler(f *Func) api.GoModuleFunc {
	np, nr := f.paramWidth(), f.resultWidth()
	fallback := f.Fallback
	if fallback == nil {
		fallback = make([]uint64, nr)
	}

	return func(ctx context.Context, caller api.Module, stack []uint64) {
		var cb ErrCallback
		if f.ErrCallback {
			cb = m.callbacks.Lookup(api.DecodeU32(stack[np]))
		}

		env, err := m.Env(ctx, caller)
		if err != nil {
			copy(stack, ThrowError(ctx, env, cb, errors.WithPath(err, f.Name), fallback))
			return
		}
		scope := m.handles.NewScope()
		env.Scope = scope
		defer scope.End()

		c := &Call{
			ctx:     ctx,
			env:     env,
			fn:      f,
			params:  append([]uint64(nil), stack[:np]...),
			results: make([]uint64, nr),
		}
		if err := m.invoke(c); err != nil {
			c.rollback(m.log)
			m.log.Debug("boundary call failed", zap.String("func", f.Name), zap.Error(err))
			copy(stack, ThrowError(ctx, env, cb, err, fallback))
			return
		}
		copy(stack, c.results)
	}
}

// Call runs the named function the way an import call from caller would,
// through the same handler the host module exports. params are the raw
// wasm values, including the trailing callback reference when the function
// takes one.
func (m *Module) Call(ctx context.Context, caller api.Module, name string, params ...uint64) ([]uint64, error) {
	m.mu.Lock()
	var f *Func
	for _, fn := range m.funcs {
		if fn.Name == name {
			f = fn
			break
		}
	}
	m.mu.Unlock()

	if f == nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindNotFound).
			Path(name).
			Detail("no such function").
			Build()
	}
	if want := len(f.paramTypes()); len(params) != want {
		return nil, errors.New(errors.PhaseBoundary, errors.KindTypeMismatch).
			Path(name).
			Detail("got %d parameters, want %d", len(params), want).
			Build()
	}

	nr := f.resultWidth()
	stack := make([]uint64, max(len(params), nr))
	copy(stack, params)
	m.handler(f)(ctx, caller, stack)
	return stack[:nr], nil
}

func (m *Module) invoke(c *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("boundary function panicked", zap.String("func", c.fn.Name), zap.Any("panic", r))
			err = errors.Panic(c.fn.Name, r)
		}
	}()
	return c.fn.Body(c)
}

// Describe renders the module's functions as WIT-style signatures.
func (m *Module) Describe() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	for _, f := range m.funcs {
		b.WriteString(f.Name)
		b.WriteString(": func(")
		for i, s := range f.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			writeSlot(&b, s)
		}
		if f.ErrCallback {
			if len(f.Params) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("on-error: u32")
		}
		b.WriteByte(')')

		switch len(f.Results) {
		case 0:
		case 1:
			b.WriteString(" -> ")
			b.WriteString(marshal.FormatWIT(f.Results[0].WIT))
		default:
			b.WriteString(" -> (")
			for i, s := range f.Results {
				if i > 0 {
					b.WriteString(", ")
				}
				writeSlot(&b, s)
			}
			b.WriteByte(')')
		}
		b.WriteString(";\n")
	}
	return b.String()
}

func writeSlot(b *strings.Builder, s Slot) {
	b.WriteString(s.Name)
	b.WriteString(": ")
	b.WriteString(marshal.FormatWIT(s.WIT))
}

// Close closes the host module and drops every handle and callback still
// held for the guest.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	mod := m.mod
	m.mod = nil
	m.mu.Unlock()

	var err error
	if mod != nil {
		err = multierr.Append(err, mod.Close(ctx))
	}
	return multierr.Combine(err, m.handles.Close(), m.callbacks.Close())
}
