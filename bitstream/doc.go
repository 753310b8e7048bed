// Package bitstream implements the LLVM bitstream container format.
//
// A bitstream is a sequence of 32-bit little-endian words read LSB-first.
// Content is organized into nested, length-prefixed blocks identified by a
// numeric ID, each carrying records: a numeric code plus a list of 64-bit
// fields. Records are encoded either with the builtin unabbreviated
// encoding or through abbreviations defined in the stream itself (fixed
// width, VBR, arrays, char6 text, blobs).
//
// # Reading
//
// A Reader is a cursor over one stream:
//
//	r := bitstream.NewReader(data)
//	ent, err := r.Advance()
//	switch ent.Kind {
//	case bitstream.EntrySubBlock:
//	    r.EnterSubBlock(ent.ID) // or r.SkipBlock()
//	case bitstream.EntryRecord:
//	    code, fields, err := r.ReadRecord(ent.ID)
//	case bitstream.EntryEndBlock:
//	}
//
// The cursor exposes its exact bit position via BitOffset, and Seek moves
// it back to a previously recorded position. Seek does not rewind the
// abbreviation scope stack; it is intended for re-entering a block whose
// ENTER_SUBBLOCK prelude was already consumed, the pattern used for
// deferred function bodies.
//
// # Writing
//
// A Writer produces streams the Reader accepts, including abbreviations
// and blob operands. It exists chiefly so tests can build containers
// without golden binaries.
package bitstream
