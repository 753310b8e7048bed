package bitstream

// Builtin abbreviation IDs. Application-defined abbreviations start at
// FirstAppAbbrev.
const (
	EndBlockID       = 0
	EnterSubBlockID  = 1
	DefineAbbrevID   = 2
	UnabbrevRecordID = 3
	FirstAppAbbrev   = 4
)

// BlockInfoBlockID is the reserved block that registers abbreviations for
// other blocks.
const BlockInfoBlockID = 0

// Record codes inside a BLOCKINFO block.
const (
	blockInfoSetBID         = 1
	blockInfoSetBlockName   = 2
	blockInfoSetRecordName  = 3
)

// Abbreviation operand encodings.
const (
	EncFixed = 1
	EncVBR   = 2
	EncArray = 3
	EncChar6 = 4
	EncBlob  = 5
)

// AbbrevOp is a single operand of an abbreviation definition.
type AbbrevOp struct {
	// IsLiteral marks an operand whose value is baked into the
	// abbreviation instead of being stored with each record.
	IsLiteral bool
	Value     uint64 // literal value, or width for fixed/VBR
	Encoding  byte   // EncFixed, EncVBR, EncArray, EncChar6, EncBlob
}

// Abbrev is one abbreviation definition.
type Abbrev struct {
	Ops []AbbrevOp
}

// Literal returns a literal operand.
func Literal(v uint64) AbbrevOp {
	return AbbrevOp{IsLiteral: true, Value: v}
}

// Fixed returns a fixed-width operand of the given bit width.
func Fixed(width uint64) AbbrevOp {
	return AbbrevOp{Encoding: EncFixed, Value: width}
}

// VBR returns a variable-bit-rate operand with the given chunk width.
func VBR(width uint64) AbbrevOp {
	return AbbrevOp{Encoding: EncVBR, Value: width}
}

// Array returns an array operand. The next operand in the abbreviation
// describes the element encoding.
func Array() AbbrevOp { return AbbrevOp{Encoding: EncArray} }

// Char6 returns a 6-bit character operand.
func Char6() AbbrevOp { return AbbrevOp{Encoding: EncChar6} }

// Blob returns a byte-aligned blob operand.
func Blob() AbbrevOp { return AbbrevOp{Encoding: EncBlob} }

const char6Chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._"

func char6Decode(v uint64) byte {
	return char6Chars[v&0x3f]
}

func char6Encode(c byte) (uint64, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return uint64(c - 'a'), true
	case c >= 'A' && c <= 'Z':
		return uint64(c-'A') + 26, true
	case c >= '0' && c <= '9':
		return uint64(c-'0') + 52, true
	case c == '.':
		return 62, true
	case c == '_':
		return 63, true
	}
	return 0, false
}
