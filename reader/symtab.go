package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// parseValueSymbolTable reads a VALUE_SYMTAB block, naming entries of
// the value table. blocks carries the current function's basic blocks
// for BBENTRY records; it is nil at module level.
func (mr *moduleReader) parseValueSymbolTable(blocks []*ir.BasicBlock) error {
	if err := mr.bs.EnterSubBlock(valueSymtabBlockID); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}

	for {
		ent, err := mr.bs.AdvanceSkippingSubblocks()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if ent.Kind == bitstream.EntryEndBlock {
			return nil
		}

		code, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		switch code {
		case vstCodeEntry:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseSymtab, "VALUE_SYMTAB", code, "record too short")
			}
			v := mr.vl.value(int(rec[0]))
			if v == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseSymtab, "value", rec[0], uint64(mr.vl.size()))
			}
			v.SetName(recordString(rec, 1))

		case vstCodeBBEntry:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseSymtab, "VALUE_SYMTAB", code, "record too short")
			}
			if blocks == nil || rec[0] >= uint64(len(blocks)) {
				return bcerrors.OutOfRange(bcerrors.PhaseSymtab, "basic block", rec[0], uint64(len(blocks)))
			}
			blocks[rec[0]].SetName(recordString(rec, 1))

		default:
			// Unknown symtab records are skipped.
		}
	}
}
