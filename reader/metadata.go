package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// namedMDRef marks a named-metadata operand that still points at a
// temporary node; it is patched once the defining record arrives.
type namedMDRef struct {
	nmd  *ir.NamedMD
	op   int
	slot int
}

// parseMetadata reads a METADATA block into the metadata table. The
// block appears both at module level and inside function bodies; the
// function-local form additionally allows FN_NODE records.
func (mr *moduleReader) parseMetadata() error {
	if err := mr.bs.EnterSubBlock(metadataBlockID); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}

	// Strict sequential numbering. Forward references grow the table
	// past the next slot, so the counter cannot be derived from its
	// length.
	nextMDValueNo := mr.mdl.size()

	for {
		ent, err := mr.bs.AdvanceSkippingSubblocks()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if ent.Kind == bitstream.EntryEndBlock {
			mr.patchNamedMDRefs()
			return nil
		}

		code, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		switch code {
		case metadataName:
			// A NAME record names the NAMED_NODE record that
			// immediately follows it.
			name := recordString(rec, 0)
			ent, err := mr.bs.AdvanceSkippingSubblocks()
			if err != nil {
				return bcerrors.Stream(mr.bs.BitOffset(), err)
			}
			if ent.Kind != bitstream.EntryRecord {
				return bcerrors.Malformed(bcerrors.PhaseMetadata, "METADATA", "METADATA_NAME not followed by a record")
			}
			code, rec, err := mr.bs.ReadRecord(ent.ID)
			if err != nil {
				return bcerrors.Stream(mr.bs.BitOffset(), err)
			}
			if code != metadataNamedNode {
				return bcerrors.InvalidRecord(bcerrors.PhaseMetadata, "METADATA", code, "expected METADATA_NAMED_NODE")
			}
			nmd := mr.m.NamedMetadata(name)
			for _, id := range rec {
				n, err := mr.mdl.nodeFwdRef(int(id))
				if err != nil {
					return err
				}
				if n.Temporary {
					mr.namedMDRefs = append(mr.namedMDRefs, namedMDRef{nmd, len(nmd.Operands), int(id)})
				}
				nmd.Operands = append(nmd.Operands, n)
			}

		case metadataNode, metadataFnNode:
			if len(rec)&1 != 0 {
				return bcerrors.Malformed(bcerrors.PhaseMetadata, "METADATA", "odd node operand list")
			}
			ops := make([]ir.Value, 0, len(rec)/2)
			for i := 0; i < len(rec); i += 2 {
				t := mr.typeByIDOrNull(rec[i])
				if t == nil {
					return bcerrors.OutOfRange(bcerrors.PhaseMetadata, "type", rec[i], uint64(len(mr.typeList)))
				}
				switch t.Kind {
				case ir.KindMetadata:
					ops = append(ops, mr.mdl.valueFwdRef(int(rec[i+1])))
				case ir.KindVoid:
					ops = append(ops, nil)
				default:
					v, err := mr.vl.valueFwdRef(int(rec[i+1]), t)
					if err != nil {
						return err
					}
					ops = append(ops, v)
				}
			}
			mr.mdl.assign(ir.NewMDNode(ops, code == metadataFnNode), nextMDValueNo)
			nextMDValueNo++

		case metadataString:
			mr.mdl.assign(ir.NewMDString(recordString(rec, 0)), nextMDValueNo)
			nextMDValueNo++

		case metadataKind:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseMetadata, "METADATA", code, "missing kind name")
			}
			if _, ok := mr.mdKindMap[rec[0]]; ok {
				return bcerrors.Duplicate(bcerrors.PhaseMetadata, "metadata kind", rec[0])
			}
			localID := uint32(len(mr.m.MDKindNames))
			mr.mdKindMap[rec[0]] = localID
			mr.m.MDKindNames[localID] = recordString(rec, 1)

		default:
			// Unknown metadata records are skipped.
		}
	}
}

// patchNamedMDRefs swaps resolved nodes into named-metadata lists that
// captured a temporary. Entries whose definition has still not arrived
// stay pending for a later METADATA block.
func (mr *moduleReader) patchNamedMDRefs() {
	kept := mr.namedMDRefs[:0]
	for _, ref := range mr.namedMDRefs {
		if ref.slot < mr.mdl.size() {
			if n, ok := mr.mdl.values[ref.slot].(*ir.MDNode); ok && !n.Temporary {
				ref.nmd.Operands[ref.op] = n
				continue
			}
		}
		kept = append(kept, ref)
	}
	mr.namedMDRefs = kept
}

// parseMetadataAttachment reads a METADATA_ATTACHMENT block inside a
// function body, wiring kind/node pairs onto instructions by index.
func (mr *moduleReader) parseMetadataAttachment(instrs []*ir.Instr) error {
	if err := mr.bs.EnterSubBlock(metadataAttachID); err != nil {
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
		if code != metadataAttachment {
			continue
		}
		if len(rec) < 3 || len(rec)&1 == 0 {
			return bcerrors.InvalidRecord(bcerrors.PhaseMetadata, "METADATA_ATTACHMENT", code, "bad attachment record")
		}
		if rec[0] >= uint64(len(instrs)) {
			return bcerrors.OutOfRange(bcerrors.PhaseMetadata, "instruction", rec[0], uint64(len(instrs)))
		}
		instr := instrs[rec[0]]
		for i := 1; i < len(rec); i += 2 {
			kind, ok := mr.mdKindMap[rec[i]]
			if !ok {
				return bcerrors.OutOfRange(bcerrors.PhaseMetadata, "metadata kind", rec[i], uint64(len(mr.mdKindMap)))
			}
			node, err := mr.mdl.nodeFwdRef(int(rec[i+1]))
			if err != nil {
				return err
			}
			instr.AttachMetadata(kind, node)
		}
	}
}
