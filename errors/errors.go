package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in a boundary crossing the error occurred
type Phase string

const (
	PhaseOutbound Phase = "outbound" // host to guest
	PhaseInbound  Phase = "inbound"  // guest to host
	PhaseRelease  Phase = "release"  // dropping a guest-held buffer or handle
	PhaseBoundary Phase = "boundary" // host function dispatch
	PhaseMemory   Phase = "memory"   // linear memory and allocator access
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData  Kind = "invalid_data"
	KindEncoding     Kind = "encoding"
	KindAllocation   Kind = "allocation"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindTypeMismatch Kind = "type_mismatch"
	KindNotFound     Kind = "not_found"
	KindConsumed     Kind = "consumed"
	KindClosed       Kind = "closed"
	KindPanic        Kind = "panic"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrInvalidData  = &Error{Kind: KindInvalidData}
	ErrEncoding     = &Error{Kind: KindEncoding}
	ErrAllocation   = &Error{Kind: KindAllocation}
	ErrOutOfBounds  = &Error{Kind: KindOutOfBounds}
	ErrTypeMismatch = &Error{Kind: KindTypeMismatch}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConsumed     = &Error{Kind: KindConsumed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	GoType      string
	ForeignType string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.ForeignType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.ForeignType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", foreign type ")
			b.WriteString(e.ForeignType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("foreign type ")
			b.WriteString(e.ForeignType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.ForeignType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the slot path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ForeignType sets the foreign slot type name
func (b *Builder) ForeignType(t string) *Builder {
	b.err.ForeignType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NullPointer is the standardized failure for an absent foreign address.
func NullPointer(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		GoType: goType,
		Detail: "null pointer",
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// EmbeddedNul reports text that cannot be NUL-terminated because it
// already contains a NUL byte at offset.
func EmbeddedNul(phase Phase, goType string, offset int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEncoding,
		GoType: goType,
		Detail: fmt.Sprintf("nul byte found in provided data at position: %d", offset),
		Value:  offset,
	}
}

// Unterminated reports a foreign string with no NUL before end of memory.
func Unterminated(phase Phase, ptr uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("string at 0x%08x is not nul-terminated", ptr),
		Value:  ptr,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at 0x%08x out of bounds", length, offset),
		Value:  offset,
		Cause:  cause,
	}
}

// TypeMismatch reports a handle that names a value of another type.
func TypeMismatch(phase Phase, goType, actual string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindTypeMismatch,
		GoType:      goType,
		ForeignType: actual,
		Detail:      "handle refers to a value of a different type",
	}
}

// HandleNotFound reports a handle that is unknown or already reclaimed.
func HandleNotFound(phase Phase, goType string, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		GoType: goType,
		Detail: fmt.Sprintf("handle %d not found or already reclaimed", handle),
		Value:  handle,
	}
}

// Consumed reports use of a host value whose ownership already moved.
func Consumed(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConsumed,
		GoType: goType,
		Detail: "value ownership already transferred",
	}
}

// Closed reports an operation on a closed table or module.
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// Panic wraps a value recovered at the boundary.
func Panic(path string, recovered any) *Error {
	e := &Error{
		Phase:  PhaseBoundary,
		Kind:   KindPanic,
		Path:   []string{path},
		Detail: fmt.Sprintf("%v", recovered),
		Value:  recovered,
	}
	if err, ok := recovered.(error); ok {
		e.Cause = err
	}
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath returns a copy of err with path prepended when err is an *Error.
// Other errors are wrapped as boundary invalid data.
func WithPath(err error, path ...string) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Phase: PhaseBoundary,
			Kind:  KindInvalidData,
			Path:  path,
			Cause: err,
		}
	}
	cp := *e
	cp.Path = append(append([]string{}, path...), e.Path...)
	return &cp
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
