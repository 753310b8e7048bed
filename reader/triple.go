package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
)

// ReadTargetTriple extracts the target triple from a bitcode buffer
// without decoding the rest of the module. Returns the empty string if
// the module carries no triple record.
func ReadTargetTriple(data []byte) (string, error) {
	payload, err := stripWrapper(data)
	if err != nil {
		return "", err
	}
	if len(payload)&3 != 0 {
		return "", ErrInvalidLength
	}

	mr := &moduleReader{bs: bitstream.NewReader(payload)}
	if err := mr.checkSignature(); err != nil {
		return "", err
	}

	for !mr.bs.AtEnd() {
		code, err := mr.bs.ReadAbbrevID()
		if err != nil {
			return "", bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if code != bitstream.EnterSubBlockID {
			return "", bcerrors.Malformed(bcerrors.PhaseModule, "top-level", "record outside any block")
		}
		blockID, err := mr.bs.ReadVBR(8)
		if err != nil {
			return "", bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		switch blockID {
		case bitstream.BlockInfoBlockID:
			if err := mr.bs.ReadBlockInfo(); err != nil {
				return "", bcerrors.Malformed(bcerrors.PhaseStream, "BLOCKINFO", err.Error())
			}
		case moduleBlockID:
			return mr.readModuleTriple()
		default:
			if err := mr.bs.SkipBlock(); err != nil {
				return "", bcerrors.Stream(mr.bs.BitOffset(), err)
			}
		}
	}
	return "", nil
}

// readModuleTriple scans the MODULE block for a TRIPLE record, skipping
// everything else.
func (mr *moduleReader) readModuleTriple() (string, error) {
	if err := mr.bs.EnterSubBlock(moduleBlockID); err != nil {
		return "", bcerrors.Stream(mr.bs.BitOffset(), err)
	}
	for {
		ent, err := mr.bs.AdvanceSkippingSubblocks()
		if err != nil {
			return "", bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if ent.Kind == bitstream.EntryEndBlock {
			return "", nil
		}
		code, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return "", bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if code == moduleCodeTriple {
			return recordString(rec, 0), nil
		}
	}
}
