// Package ir defines the in-memory representation of a decoded bitcode
// module: the type descriptors, constants, global objects, functions,
// instructions and the metadata graph.
//
// Values form a graph addressed by Go pointers. Every value keeps a use
// list (which users reference it, at which operand), so a value can be
// replaced everywhere it appears in one pass with ReplaceAllUses. The
// decoder relies on this to patch forward references: a placeholder is
// an ordinary graph node that is later swapped for the real value.
//
// Value kinds are concrete structs, one per category, discriminated by
// type switches; instructions are a single Instr struct tagged with an
// Opcode, in the style of a flat opcode table.
package ir
