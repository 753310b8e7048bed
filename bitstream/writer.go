package bitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Writing errors.
var (
	ErrOpenBlock   = errors.New("bitstream: unbalanced block nesting")
	ErrBadChar6    = errors.New("bitstream: value not encodable as char6")
	ErrOpMismatch  = errors.New("bitstream: record does not match abbreviation")
	ErrNotBlobOp   = errors.New("bitstream: abbreviation has no blob operand")
)

type writerScope struct {
	blockID uint64
	width   uint32
	lenPos  int // byte offset of the 32-bit length placeholder
	abbrevs []*Abbrev
}

// Writer builds a bitstream accepted by Reader.
type Writer struct {
	buf    []byte
	curVal uint64
	curBit uint

	scopes    []writerScope
	blockInfo map[uint64][]*Abbrev
}

// NewWriter creates an empty stream writer.
func NewWriter() *Writer {
	return &Writer{blockInfo: make(map[uint64][]*Abbrev)}
}

// Write emits the low n bits of v.
func (w *Writer) Write(v uint64, n uint) {
	for n > 0 {
		take := 8 - w.curBit
		if take > n {
			take = n
		}
		w.curVal |= (v & (1<<take - 1)) << w.curBit
		w.curBit += take
		v >>= take
		n -= take
		if w.curBit == 8 {
			w.buf = append(w.buf, byte(w.curVal))
			w.curVal = 0
			w.curBit = 0
		}
	}
}

// WriteVBR emits v in VBR chunks of the given width.
func (w *Writer) WriteVBR(v uint64, width uint) {
	mask := uint64(1)<<(width-1) - 1
	for {
		chunk := v & mask
		v >>= width - 1
		if v != 0 {
			chunk |= mask + 1
		}
		w.Write(chunk, width)
		if v == 0 {
			return
		}
	}
}

func (w *Writer) align32() {
	if w.curBit != 0 {
		w.buf = append(w.buf, byte(w.curVal))
		w.curVal = 0
		w.curBit = 0
	}
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) abbrevWidth() uint32 {
	if len(w.scopes) == 0 {
		return 2
	}
	return w.scopes[len(w.scopes)-1].width
}

// StartBlock opens a sub-block with the given ID and abbreviation width.
func (w *Writer) StartBlock(blockID uint64, width uint32) {
	w.Write(EnterSubBlockID, uint(w.abbrevWidth()))
	w.WriteVBR(blockID, 8)
	w.WriteVBR(uint64(width), 4)
	w.align32()
	lenPos := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	sc := writerScope{blockID: blockID, width: width, lenPos: lenPos}
	sc.abbrevs = append(sc.abbrevs, w.blockInfo[blockID]...)
	w.scopes = append(w.scopes, sc)
}

// EndBlock closes the innermost open block and patches its word length.
func (w *Writer) EndBlock() error {
	if len(w.scopes) == 0 {
		return ErrOpenBlock
	}
	sc := w.scopes[len(w.scopes)-1]
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.Write(EndBlockID, uint(sc.width))
	w.align32()
	words := uint32((len(w.buf) - sc.lenPos - 4) / 4)
	binary.LittleEndian.PutUint32(w.buf[sc.lenPos:], words)
	return nil
}

// WriteUnabbrevRecord emits a record with the builtin unabbreviated
// encoding.
func (w *Writer) WriteUnabbrevRecord(code uint64, fields ...uint64) {
	w.Write(UnabbrevRecordID, uint(w.abbrevWidth()))
	w.WriteVBR(code, 6)
	w.WriteVBR(uint64(len(fields)), 6)
	for _, f := range fields {
		w.WriteVBR(f, 6)
	}
}

// DefineAbbrev emits a DEFINE_ABBREV in the current block and returns
// the abbreviation ID assigned to it.
func (w *Writer) DefineAbbrev(ab *Abbrev) (uint64, error) {
	if len(w.scopes) == 0 {
		return 0, ErrOpenBlock
	}
	w.Write(DefineAbbrevID, uint(w.abbrevWidth()))
	w.writeAbbrevDef(ab)
	sc := &w.scopes[len(w.scopes)-1]
	sc.abbrevs = append(sc.abbrevs, ab)
	return FirstAppAbbrev + uint64(len(sc.abbrevs)) - 1, nil
}

// DefineBlockInfoAbbrev emits a DEFINE_ABBREV destined for the given
// block. The writer must currently be inside a BLOCKINFO block and have
// emitted the matching SETBID record. Returns the ID the abbreviation
// will have inside its target block.
func (w *Writer) DefineBlockInfoAbbrev(blockID uint64, ab *Abbrev) (uint64, error) {
	if len(w.scopes) == 0 || w.scopes[len(w.scopes)-1].blockID != BlockInfoBlockID {
		return 0, ErrOpenBlock
	}
	w.Write(DefineAbbrevID, uint(w.abbrevWidth()))
	w.writeAbbrevDef(ab)
	w.blockInfo[blockID] = append(w.blockInfo[blockID], ab)
	return FirstAppAbbrev + uint64(len(w.blockInfo[blockID])) - 1, nil
}

func (w *Writer) writeAbbrevDef(ab *Abbrev) {
	w.WriteVBR(uint64(len(ab.Ops)), 5)
	for _, op := range ab.Ops {
		if op.IsLiteral {
			w.Write(1, 1)
			w.WriteVBR(op.Value, 8)
			continue
		}
		w.Write(0, 1)
		w.Write(uint64(op.Encoding), 3)
		if op.Encoding == EncFixed || op.Encoding == EncVBR {
			w.WriteVBR(op.Value, 5)
		}
	}
}

// WriteRecord emits a record with a previously defined abbreviation.
// vals must include the record code first; blob supplies the bytes for
// a blob operand, if the abbreviation has one.
func (w *Writer) WriteRecord(abbrevID uint64, vals []uint64, blob []byte) error {
	if len(w.scopes) == 0 {
		return ErrOpenBlock
	}
	sc := w.scopes[len(w.scopes)-1]
	idx := abbrevID - FirstAppAbbrev
	if abbrevID < FirstAppAbbrev || idx >= uint64(len(sc.abbrevs)) {
		return ErrBadAbbrevID
	}
	ab := sc.abbrevs[idx]

	w.Write(abbrevID, uint(sc.width))
	vi := 0
	next := func() (uint64, error) {
		if vi >= len(vals) {
			return 0, ErrOpMismatch
		}
		v := vals[vi]
		vi++
		return v, nil
	}
	for i := 0; i < len(ab.Ops); i++ {
		op := ab.Ops[i]
		switch {
		case op.IsLiteral:
			v, err := next()
			if err != nil {
				return err
			}
			if v != op.Value {
				return fmt.Errorf("%w: literal %d, got %d", ErrOpMismatch, op.Value, v)
			}
		case op.Encoding == EncArray:
			if i+1 >= len(ab.Ops) {
				return ErrOpMismatch
			}
			elt := ab.Ops[i+1]
			i++
			rest := vals[vi:]
			w.WriteVBR(uint64(len(rest)), 6)
			for range rest {
				v, _ := next()
				if err := w.writeAbbrevOp(elt, v); err != nil {
					return err
				}
			}
		case op.Encoding == EncBlob:
			w.WriteVBR(uint64(len(blob)), 6)
			w.align32()
			for _, b := range blob {
				w.Write(uint64(b), 8)
			}
			w.align32()
			blob = nil
		default:
			v, err := next()
			if err != nil {
				return err
			}
			if err := w.writeAbbrevOp(op, v); err != nil {
				return err
			}
		}
	}
	if vi != len(vals) {
		return ErrOpMismatch
	}
	return nil
}

func (w *Writer) writeAbbrevOp(op AbbrevOp, v uint64) error {
	switch op.Encoding {
	case EncFixed:
		if op.Value > 0 {
			w.Write(v, uint(op.Value))
		}
	case EncVBR:
		w.WriteVBR(v, uint(op.Value))
	case EncChar6:
		enc, ok := char6Encode(byte(v))
		if !ok {
			return ErrBadChar6
		}
		w.Write(enc, 6)
	default:
		return ErrOpMismatch
	}
	return nil
}

// Bytes finalizes the stream and returns its contents. All blocks must
// be closed; the stream is padded to a 32-bit boundary.
func (w *Writer) Bytes() ([]byte, error) {
	if len(w.scopes) != 0 {
		return nil, ErrOpenBlock
	}
	w.align32()
	return w.buf, nil
}
