package bitstream

import (
	"errors"
	"fmt"
)

// Reading errors.
var (
	ErrTruncated    = errors.New("bitstream: truncated stream")
	ErrBadAbbrev    = errors.New("bitstream: malformed abbreviation definition")
	ErrBadAbbrevID  = errors.New("bitstream: invalid abbreviation ID")
	ErrMalformed    = errors.New("bitstream: malformed block structure")
	ErrBadBlockInfo = errors.New("bitstream: malformed blockinfo block")
)

// EntryKind discriminates the results of Advance.
type EntryKind byte

const (
	// EntrySubBlock reports an ENTER_SUBBLOCK; Entry.ID is the block ID.
	EntrySubBlock EntryKind = iota
	// EntryRecord reports a record; Entry.ID is the abbreviation ID to
	// pass to ReadRecord.
	EntryRecord
	// EntryEndBlock reports that the current block ended and was popped.
	EntryEndBlock
)

// Entry is one structural event produced by Advance.
type Entry struct {
	Kind EntryKind
	ID   uint64
}

type scope struct {
	blockID uint64
	width   uint32
	abbrevs []*Abbrev
}

// Reader is a cursor over one bitstream. It is not safe for concurrent
// use; one stream is decoded by one sequential pass.
type Reader struct {
	data   []byte
	pos    uint64 // bit offset
	bitLen uint64

	scopes    []scope
	blockInfo map[uint64][]*Abbrev
}

// NewReader creates a cursor positioned at the first bit of data.
func NewReader(data []byte) *Reader {
	return &Reader{
		data:      data,
		bitLen:    uint64(len(data)) * 8,
		blockInfo: make(map[uint64][]*Abbrev),
	}
}

// BitOffset returns the current bit position.
func (r *Reader) BitOffset() uint64 { return r.pos }

// Seek moves the cursor to a previously recorded bit position. The
// abbreviation scope stack is left untouched; callers re-enter the block
// they are seeking into.
func (r *Reader) Seek(bit uint64) error {
	if bit > r.bitLen {
		return r.wrap(ErrTruncated)
	}
	r.pos = bit
	return nil
}

// AtEnd reports whether the cursor consumed the whole stream.
func (r *Reader) AtEnd() bool { return r.pos >= r.bitLen }

// BitsRemaining returns the number of unread bits. Useful as an upper
// bound when validating element counts read from the stream.
func (r *Reader) BitsRemaining() uint64 {
	if r.pos >= r.bitLen {
		return 0
	}
	return r.bitLen - r.pos
}

// abbrevWidth returns the abbreviation ID width of the current scope.
// The top level uses the builtin width of 2.
func (r *Reader) abbrevWidth() uint32 {
	if len(r.scopes) == 0 {
		return 2
	}
	return r.scopes[len(r.scopes)-1].width
}

// AbbrevWidth exposes the current abbreviation ID width.
func (r *Reader) AbbrevWidth() uint32 { return r.abbrevWidth() }

// Read reads n bits (n <= 64) LSB-first.
func (r *Reader) Read(n uint) (uint64, error) {
	if n > 64 {
		return 0, r.wrap(ErrMalformed)
	}
	if r.pos+uint64(n) > r.bitLen {
		return 0, r.wrap(ErrTruncated)
	}
	var v uint64
	for got := uint(0); got < n; {
		b := r.data[r.pos>>3]
		off := uint(r.pos & 7)
		take := 8 - off
		if take > n-got {
			take = n - got
		}
		v |= (uint64(b>>off) & (1<<take - 1)) << got
		got += take
		r.pos += uint64(take)
	}
	return v, nil
}

// ReadVBR reads a variable-bit-rate value in chunks of width bits, the
// top bit of each chunk marking continuation.
func (r *Reader) ReadVBR(width uint) (uint64, error) {
	if width < 2 || width > 32 {
		return 0, r.wrap(ErrMalformed)
	}
	var v uint64
	var shift uint
	for {
		chunk, err := r.Read(width)
		if err != nil {
			return 0, err
		}
		v |= (chunk & (1<<(width-1) - 1)) << shift
		if chunk&(1<<(width-1)) == 0 {
			return v, nil
		}
		shift += width - 1
		if shift >= 64 {
			return 0, r.wrap(ErrMalformed)
		}
	}
}

func (r *Reader) align32() error {
	aligned := (r.pos + 31) &^ 31
	if aligned > r.bitLen {
		return r.wrap(ErrTruncated)
	}
	r.pos = aligned
	return nil
}

// ReadAbbrevID reads one abbreviation ID at the current scope width.
func (r *Reader) ReadAbbrevID() (uint64, error) {
	return r.Read(uint(r.abbrevWidth()))
}

// Advance reads structural entries until it finds a sub-block, a record,
// or the end of the current block. DEFINE_ABBREV entries are processed
// into the current scope transparently.
func (r *Reader) Advance() (Entry, error) {
	for {
		id, err := r.ReadAbbrevID()
		if err != nil {
			return Entry{}, err
		}
		switch id {
		case EndBlockID:
			if err := r.align32(); err != nil {
				return Entry{}, err
			}
			if len(r.scopes) == 0 {
				return Entry{}, r.wrap(ErrMalformed)
			}
			r.scopes = r.scopes[:len(r.scopes)-1]
			return Entry{Kind: EntryEndBlock}, nil
		case EnterSubBlockID:
			blockID, err := r.ReadVBR(8)
			if err != nil {
				return Entry{}, err
			}
			return Entry{Kind: EntrySubBlock, ID: blockID}, nil
		case DefineAbbrevID:
			ab, err := r.readAbbrevDef()
			if err != nil {
				return Entry{}, err
			}
			if len(r.scopes) == 0 {
				return Entry{}, r.wrap(ErrMalformed)
			}
			top := &r.scopes[len(r.scopes)-1]
			top.abbrevs = append(top.abbrevs, ab)
		default:
			return Entry{Kind: EntryRecord, ID: id}, nil
		}
	}
}

// AdvanceSkippingSubblocks behaves like Advance but skips any sub-block
// wholesale.
func (r *Reader) AdvanceSkippingSubblocks() (Entry, error) {
	for {
		ent, err := r.Advance()
		if err != nil {
			return Entry{}, err
		}
		if ent.Kind == EntrySubBlock {
			if err := r.SkipBlock(); err != nil {
				return Entry{}, err
			}
			continue
		}
		return ent, nil
	}
}

// EnterSubBlock descends into a sub-block previously reported by
// Advance. The block's abbreviation width and word length are consumed
// and a fresh scope seeded with the block's BLOCKINFO abbreviations is
// pushed.
func (r *Reader) EnterSubBlock(blockID uint64) error {
	width, err := r.ReadVBR(4)
	if err != nil {
		return err
	}
	if width == 0 || width > 32 {
		return r.wrap(ErrMalformed)
	}
	if err := r.align32(); err != nil {
		return err
	}
	words, err := r.Read(32)
	if err != nil {
		return err
	}
	if r.pos+words*32 > r.bitLen {
		return r.wrap(ErrTruncated)
	}
	sc := scope{blockID: blockID, width: uint32(width)}
	sc.abbrevs = append(sc.abbrevs, r.blockInfo[blockID]...)
	r.scopes = append(r.scopes, sc)
	return nil
}

// SkipBlock skips a sub-block previously reported by Advance without
// decoding its contents.
func (r *Reader) SkipBlock() error {
	width, err := r.ReadVBR(4)
	if err != nil {
		return err
	}
	if width == 0 || width > 32 {
		return r.wrap(ErrMalformed)
	}
	if err := r.align32(); err != nil {
		return err
	}
	words, err := r.Read(32)
	if err != nil {
		return err
	}
	if r.pos+words*32 > r.bitLen {
		return r.wrap(ErrTruncated)
	}
	r.pos += words * 32
	return nil
}

// ReadBlockInfo consumes a BLOCKINFO block reported by Advance,
// registering the abbreviations it defines for their target blocks.
func (r *Reader) ReadBlockInfo() error {
	if err := r.EnterSubBlock(BlockInfoBlockID); err != nil {
		return err
	}
	haveBID := false
	var curBID uint64
	for {
		id, err := r.ReadAbbrevID()
		if err != nil {
			return err
		}
		switch id {
		case EndBlockID:
			if err := r.align32(); err != nil {
				return err
			}
			r.scopes = r.scopes[:len(r.scopes)-1]
			return nil
		case EnterSubBlockID:
			if _, err := r.ReadVBR(8); err != nil {
				return err
			}
			if err := r.SkipBlock(); err != nil {
				return err
			}
		case DefineAbbrevID:
			// Abbreviations defined here belong to the SETBID target,
			// not to the blockinfo block itself.
			ab, err := r.readAbbrevDef()
			if err != nil {
				return err
			}
			if !haveBID {
				return r.wrap(ErrBadBlockInfo)
			}
			r.blockInfo[curBID] = append(r.blockInfo[curBID], ab)
		default:
			code, fields, err := r.ReadRecord(id)
			if err != nil {
				return err
			}
			switch code {
			case blockInfoSetBID:
				if len(fields) < 1 {
					return r.wrap(ErrBadBlockInfo)
				}
				curBID = fields[0]
				haveBID = true
			case blockInfoSetBlockName, blockInfoSetRecordName:
				// Naming records carry no structure we need.
			}
		}
	}
}

// ReadRecord decodes the record introduced by the given abbreviation ID
// and returns its code and fields. Blob operands are appended to the
// field list one byte per field.
func (r *Reader) ReadRecord(abbrevID uint64) (uint64, []uint64, error) {
	if abbrevID == UnabbrevRecordID {
		code, err := r.ReadVBR(6)
		if err != nil {
			return 0, nil, err
		}
		n, err := r.ReadVBR(6)
		if err != nil {
			return 0, nil, err
		}
		fields := make([]uint64, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := r.ReadVBR(6)
			if err != nil {
				return 0, nil, err
			}
			fields = append(fields, v)
		}
		return code, fields, nil
	}
	if abbrevID < FirstAppAbbrev {
		return 0, nil, r.wrap(ErrBadAbbrevID)
	}
	if len(r.scopes) == 0 {
		return 0, nil, r.wrap(ErrBadAbbrevID)
	}
	sc := &r.scopes[len(r.scopes)-1]
	idx := abbrevID - FirstAppAbbrev
	if idx >= uint64(len(sc.abbrevs)) {
		return 0, nil, r.wrap(ErrBadAbbrevID)
	}
	ab := sc.abbrevs[idx]

	var vals []uint64
	for i := 0; i < len(ab.Ops); i++ {
		op := ab.Ops[i]
		switch {
		case op.IsLiteral:
			vals = append(vals, op.Value)
		case op.Encoding == EncArray:
			if i+1 >= len(ab.Ops) {
				return 0, nil, r.wrap(ErrBadAbbrev)
			}
			elt := ab.Ops[i+1]
			i++
			n, err := r.ReadVBR(6)
			if err != nil {
				return 0, nil, err
			}
			for j := uint64(0); j < n; j++ {
				v, err := r.readAbbrevOp(elt)
				if err != nil {
					return 0, nil, err
				}
				vals = append(vals, v)
			}
		case op.Encoding == EncBlob:
			n, err := r.ReadVBR(6)
			if err != nil {
				return 0, nil, err
			}
			if err := r.align32(); err != nil {
				return 0, nil, err
			}
			for j := uint64(0); j < n; j++ {
				b, err := r.Read(8)
				if err != nil {
					return 0, nil, err
				}
				vals = append(vals, b)
			}
			if err := r.align32(); err != nil {
				return 0, nil, err
			}
		default:
			v, err := r.readAbbrevOp(op)
			if err != nil {
				return 0, nil, err
			}
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, nil, r.wrap(ErrBadAbbrev)
	}
	return vals[0], vals[1:], nil
}

func (r *Reader) readAbbrevOp(op AbbrevOp) (uint64, error) {
	if op.IsLiteral {
		return op.Value, nil
	}
	switch op.Encoding {
	case EncFixed:
		if op.Value == 0 {
			return 0, nil
		}
		return r.Read(uint(op.Value))
	case EncVBR:
		return r.ReadVBR(uint(op.Value))
	case EncChar6:
		v, err := r.Read(6)
		if err != nil {
			return 0, err
		}
		return uint64(char6Decode(v)), nil
	}
	return 0, r.wrap(ErrBadAbbrev)
}

func (r *Reader) readAbbrevDef() (*Abbrev, error) {
	numOps, err := r.ReadVBR(5)
	if err != nil {
		return nil, err
	}
	if numOps == 0 || numOps > 1<<16 {
		return nil, r.wrap(ErrBadAbbrev)
	}
	ab := &Abbrev{Ops: make([]AbbrevOp, 0, numOps)}
	for i := uint64(0); i < numOps; i++ {
		isLit, err := r.Read(1)
		if err != nil {
			return nil, err
		}
		if isLit == 1 {
			v, err := r.ReadVBR(8)
			if err != nil {
				return nil, err
			}
			ab.Ops = append(ab.Ops, Literal(v))
			continue
		}
		enc, err := r.Read(3)
		if err != nil {
			return nil, err
		}
		switch enc {
		case EncFixed, EncVBR:
			w, err := r.ReadVBR(5)
			if err != nil {
				return nil, err
			}
			if w > 64 {
				return nil, r.wrap(ErrBadAbbrev)
			}
			ab.Ops = append(ab.Ops, AbbrevOp{Encoding: byte(enc), Value: w})
		case EncArray, EncChar6, EncBlob:
			ab.Ops = append(ab.Ops, AbbrevOp{Encoding: byte(enc)})
		default:
			return nil, r.wrap(ErrBadAbbrev)
		}
	}
	return ab, nil
}

func (r *Reader) wrap(err error) error {
	return fmt.Errorf("at bit %d: %w", r.pos, err)
}
