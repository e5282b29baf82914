// Package errors provides structured error types for boundary conversions.
//
// Errors are categorized by Phase (direction of the crossing) and Kind
// (error category). The Error type carries the slot path, Go and foreign
// type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInbound, errors.KindTypeMismatch).
//		Path("check", "counter").
//		GoType("*Counter").
//		Detail("handle refers to %s", other).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NullPointer(errors.PhaseInbound, "string")
//	err := errors.EmbeddedNul(errors.PhaseOutbound, "string", 3)
//
// Kind-only sentinels match errors from any phase:
//
//	if errors.Is(err, wmerrors.ErrInvalidData) { ... }
package errors
