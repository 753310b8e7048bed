// Package bcerrors provides structured error types for the bitcode library.
//
// Errors are categorized by Phase (where in decoding the error occurred)
// and Kind (error category). The Error type includes rich context: the
// block and record being decoded, the stream bit position, and a cause
// chain.
//
// Use the Builder for structured error construction:
//
//	err := bcerrors.New(bcerrors.PhaseConstants, bcerrors.KindInvalidRecord).
//		Block("CONSTANTS").
//		Record(code).
//		Detail("empty aggregate").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", id, limit)
//	err := bcerrors.Unresolved(bcerrors.PhaseResolve, "value", idx)
//
// All errors implement the standard error interface and support errors.Is/As.
package bcerrors
