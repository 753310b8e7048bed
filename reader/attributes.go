package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// parseAttributeBlock reads the PARAMATTR block. Each ENTRY record is a
// flat list of [paramidx, attrs] pairs forming one attribute set.
func (mr *moduleReader) parseAttributeBlock() error {
	if err := mr.bs.EnterSubBlock(paramAttrBlockID); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}
	if len(mr.m.AttrSets) != 0 {
		return bcerrors.Duplicate(bcerrors.PhaseAttrs, "attribute block", paramAttrBlockID)
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
		case paramAttrCodeEntryOld:
			if len(rec)&1 != 0 {
				return bcerrors.InvalidRecord(bcerrors.PhaseAttrs, "PARAMATTR", code, "odd pair list")
			}
			var set ir.AttributeSet
			for i := 0; i < len(rec); i += 2 {
				set.Params = append(set.Params, ir.ParamAttr{Index: rec[i], Attrs: rec[i+1]})
			}
			mr.m.AttrSets = append(mr.m.AttrSets, set)
		default:
			// Ignore unknown attribute records.
		}
	}
}

// attributeSet translates a one-biased record field into an attribute
// set index, -1 for none.
func (mr *moduleReader) attributeSet(raw uint64) int {
	if raw == 0 {
		return -1
	}
	return int(raw - 1)
}
