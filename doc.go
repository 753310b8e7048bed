// Package bitcode decodes LLVM 3.0-era bitcode files into an in-memory
// module representation.
//
// The module is split into focused packages:
//
//   - bitstream: the bit-level container format (blocks, records,
//     abbreviations), with a writer used mainly by tests.
//   - ir: the decoded representation (types, constants, globals,
//     functions, instructions, metadata) with use-list tracking.
//   - reader: the decoder proper, eager or lazy, plus a cheap target
//     triple probe.
//   - bcerrors: structured decode errors carrying phase, block and bit
//     position.
//
// Most callers need only reader.Decode:
//
//	m, err := reader.Decode(data, reader.Options{})
//
// cmd/bcdump is a small inspection tool built on the same API.
package bitcode
