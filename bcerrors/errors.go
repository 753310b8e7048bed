package bcerrors

import (
	"fmt"
	"strings"
)

// Phase indicates where in decoding the error occurred
type Phase string

const (
	PhaseStream      Phase = "stream"      // bit-level container access
	PhaseModule      Phase = "module"      // top-level module records
	PhaseTypes       Phase = "types"       // type table
	PhaseAttrs       Phase = "attrs"       // attribute table
	PhaseConstants   Phase = "constants"   // constant pool
	PhaseMetadata    Phase = "metadata"    // metadata graph
	PhaseSymtab      Phase = "symtab"      // value symbol table
	PhaseFunction    Phase = "function"    // function bodies
	PhaseResolve     Phase = "resolve"     // forward-reference resolution
	PhaseMaterialize Phase = "materialize" // lazy body loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidSignature Kind = "invalid_signature"
	KindTruncated        Kind = "truncated"
	KindMalformedBlock   Kind = "malformed_block"
	KindInvalidRecord    Kind = "invalid_record"
	KindBadAbbrev        Kind = "bad_abbrev"
	KindOutOfRange       Kind = "out_of_range"
	KindTypeMismatch     Kind = "type_mismatch"
	KindDuplicate        Kind = "duplicate_definition"
	KindUnresolvedRef    Kind = "unresolved_ref"
	KindUnsupported      Kind = "unsupported"
	KindNotMaterializable Kind = "not_materializable"
)

// Error is the structured error type used throughout the decoder
type Error struct {
	Phase  Phase
	Kind   Kind
	Block  string // block being decoded, if known
	Record uint64 // record code within the block
	Bit    uint64 // bit position in the stream, if known
	Detail string
	Cause  error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Block != "" {
		b.WriteString(" in ")
		b.WriteString(e.Block)
		if e.Record != 0 {
			fmt.Fprintf(&b, " record %d", e.Record)
		}
	}
	if e.Bit != 0 {
		fmt.Fprintf(&b, " at bit %d", e.Bit)
	}
	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Block sets the block name
func (b *Builder) Block(name string) *Builder {
	b.err.Block = name
	return b
}

// Record sets the record code
func (b *Builder) Record(code uint64) *Builder {
	b.err.Record = code
	return b
}

// Bit sets the stream bit position
func (b *Builder) Bit(pos uint64) *Builder {
	b.err.Bit = pos
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

// InvalidRecord creates a malformed record error
func InvalidRecord(phase Phase, block string, code uint64, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidRecord,
		Block:  block,
		Record: code,
		Detail: detail,
	}
}

// OutOfRange creates an index range error
func OutOfRange(phase Phase, what string, index, limit uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Detail: fmt.Sprintf("%s index %d out of range (limit %d)", what, index, limit),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// Duplicate creates a duplicate definition error
func Duplicate(phase Phase, what string, index uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("%s %d already defined", what, index),
	}
}

// Unresolved creates an unresolved reference error
func Unresolved(phase Phase, what string, index uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnresolvedRef,
		Detail: fmt.Sprintf("%s %d never defined", what, index),
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Malformed creates a malformed block error
func Malformed(phase Phase, block, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedBlock,
		Block:  block,
		Detail: detail,
	}
}

// Stream wraps a bit-level container error with its position
func Stream(bit uint64, cause error) *Error {
	return &Error{
		Phase: PhaseStream,
		Kind:  KindTruncated,
		Bit:   bit,
		Cause: cause,
	}
}
