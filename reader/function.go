package reader

import (
	"fortio.org/safecast"

	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// parseFunctionBody decodes one FUNCTION block into fn. The caller has
// positioned the cursor at the block's ENTER_SUBBLOCK payload. Function
// arguments and instructions extend the module value table; the table
// is trimmed back to module scope on every exit.
func (mr *moduleReader) parseFunctionBody(fn *ir.Function) error {
	if err := mr.bs.EnterSubBlock(functionBlockID); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}

	moduleValues := mr.vl.size()
	moduleMDValues := mr.mdl.size()
	for _, a := range fn.Params {
		mr.vl.push(a)
	}

	err := mr.parseFunctionRecords(fn, moduleValues)

	mr.vl.shrinkTo(moduleValues)
	mr.mdl.shrinkTo(moduleMDValues)
	if err != nil {
		// A partially decoded body must not leave the function looking
		// defined.
		fn.DeleteBody()
	}
	return err
}

func (mr *moduleReader) parseFunctionRecords(fn *ir.Function, moduleValues int) error {
	nextValueNo := mr.vl.size()

	var blocks []*ir.BasicBlock
	var instrs []*ir.Instr
	curBBNo := 0
	var curBB *ir.BasicBlock
	var lastLoc *ir.DebugLoc

	for {
		ent, err := mr.bs.Advance()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		switch ent.Kind {
		case bitstream.EntryEndBlock:
			return mr.finishFunctionBody(fn, blocks, moduleValues)

		case bitstream.EntrySubBlock:
			switch ent.ID {
			case constantsBlockID:
				if err := mr.parseConstants(); err != nil {
					return err
				}
				nextValueNo = mr.vl.size()
			case valueSymtabBlockID:
				if err := mr.parseValueSymbolTable(blocks); err != nil {
					return err
				}
			case metadataBlockID:
				if err := mr.parseMetadata(); err != nil {
					return err
				}
			case metadataAttachID:
				if err := mr.parseMetadataAttachment(instrs); err != nil {
					return err
				}
			default:
				if err := mr.bs.SkipBlock(); err != nil {
					return bcerrors.Stream(mr.bs.BitOffset(), err)
				}
			}
			continue
		}

		code, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		var in *ir.Instr
		slot := 0
		switch code {
		case funcCodeDeclareBlocks:
			if len(rec) < 1 || rec[0] == 0 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad block count")
			}
			if blocks != nil {
				return bcerrors.Duplicate(bcerrors.PhaseFunction, "DECLAREBLOCKS", code)
			}
			// Every block needs at least a terminator record, so a count
			// beyond the remaining bits cannot be honest.
			if rec[0] > mr.bs.BitsRemaining() {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "block count exceeds stream size")
			}
			blocks = make([]*ir.BasicBlock, rec[0])
			for i := range blocks {
				blocks[i] = ir.NewBasicBlock(fn, i)
			}
			fn.Blocks = blocks
			curBB = blocks[0]
			continue

		case funcCodeDebugLocAgain:
			if len(instrs) == 0 || lastLoc == nil {
				return bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "DEBUG_LOC_AGAIN before any location")
			}
			instrs[len(instrs)-1].Loc = lastLoc
			continue

		case funcCodeDebugLoc:
			if len(rec) < 4 || len(instrs) == 0 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad debug location")
			}
			loc := &ir.DebugLoc{Line: uint32(rec[0]), Col: uint32(rec[1])}
			if rec[2] != 0 {
				n, err := mr.mdl.nodeFwdRef(int(rec[2] - 1))
				if err != nil {
					return err
				}
				loc.Scope = n
			}
			if rec[3] != 0 {
				n, err := mr.mdl.nodeFwdRef(int(rec[3] - 1))
				if err != nil {
					return err
				}
				loc.InlinedAt = n
			}
			instrs[len(instrs)-1].Loc = loc
			lastLoc = loc
			continue

		case funcCodeInstBinOp:
			lhs, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			rhs, err := mr.getTypedValue(rec, &slot, lhs.Type())
			if err != nil {
				return err
			}
			if slot >= len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "missing opcode")
			}
			op := decodeBinaryOpcode(rec[slot], lhs.Type())
			slot++
			if op == ir.OpInvalid {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "unknown binary opcode")
			}
			in = ir.NewInstr(op, lhs.Type(), []ir.Value{lhs, rhs})
			if slot < len(rec) {
				in.Flags = decodeBinopFlags(op, rec[slot])
			}

		case funcCodeInstCast:
			op0, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if slot+1 >= len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			resTy := mr.typeByIDOrNull(rec[slot])
			if resTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[slot], uint64(len(mr.typeList)))
			}
			op := decodeCastOpcode(rec[slot+1])
			if op == ir.OpInvalid {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "unknown cast opcode")
			}
			in = ir.NewInstr(op, resTy, []ir.Value{op0})

		case funcCodeInstGEP, funcCodeInstInboundsGEP:
			base, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			ops := []ir.Value{base}
			for slot < len(rec) {
				idx, err := mr.getValueTypePair(rec, &slot, nextValueNo)
				if err != nil {
					return err
				}
				ops = append(ops, idx)
			}
			resTy, err := gepResultType(base.Type(), ops[1:])
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpGetElementPtr, resTy, ops)
			if code == funcCodeInstInboundsGEP {
				in.Flags = ir.FlagInBounds
			}

		case funcCodeInstSelect:
			t, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			f, err := mr.getTypedValue(rec, &slot, t.Type())
			if err != nil {
				return err
			}
			cond, err := mr.getTypedValue(rec, &slot, ir.Int1Type())
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpSelect, t.Type(), []ir.Value{cond, t, f})

		case funcCodeInstVSelect:
			t, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			f, err := mr.getTypedValue(rec, &slot, t.Type())
			if err != nil {
				return err
			}
			cond, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpSelect, t.Type(), []ir.Value{cond, t, f})

		case funcCodeInstExtractElt:
			vec, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if vec.Type().Kind != ir.KindVector {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "vector", vec.Type().String())
			}
			idx, err := mr.getTypedValue(rec, &slot, ir.Int32Type())
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpExtractElement, vec.Type().Elem, []ir.Value{vec, idx})

		case funcCodeInstInsertElt:
			vec, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if vec.Type().Kind != ir.KindVector {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "vector", vec.Type().String())
			}
			elt, err := mr.getTypedValue(rec, &slot, vec.Type().Elem)
			if err != nil {
				return err
			}
			idx, err := mr.getTypedValue(rec, &slot, ir.Int32Type())
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpInsertElement, vec.Type(), []ir.Value{vec, elt, idx})

		case funcCodeInstShuffleVec:
			v1, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			v2, err := mr.getTypedValue(rec, &slot, v1.Type())
			if err != nil {
				return err
			}
			mask, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if v1.Type().Kind != ir.KindVector || mask.Type().Kind != ir.KindVector {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "vector", v1.Type().String())
			}
			resTy := ir.VectorType(v1.Type().Elem, mask.Type().Len)
			in = ir.NewInstr(ir.OpShuffleVector, resTy, []ir.Value{v1, v2, mask})

		case funcCodeInstCmp, funcCodeInstCmp2:
			lhs, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			rhs, err := mr.getTypedValue(rec, &slot, lhs.Type())
			if err != nil {
				return err
			}
			if slot >= len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "missing predicate")
			}
			op := ir.OpICmp
			if lhs.Type().IsFPOrFPVector() {
				op = ir.OpFCmp
			}
			resTy := ir.Int1Type()
			if lhs.Type().Kind == ir.KindVector {
				resTy = ir.VectorType(ir.Int1Type(), lhs.Type().Len)
			}
			in = ir.NewInstr(op, resTy, []ir.Value{lhs, rhs})
			in.Pred = rec[slot]

		case funcCodeInstRet:
			if len(rec) == 0 {
				in = ir.NewInstr(ir.OpRet, ir.VoidType(), nil)
				break
			}
			rv, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if slot != len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "trailing operands")
			}
			in = ir.NewInstr(ir.OpRet, ir.VoidType(), []ir.Value{rv})

		case funcCodeInstBr:
			if len(rec) != 1 && len(rec) != 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad branch record")
			}
			t, err := basicBlockByID(blocks, rec[0])
			if err != nil {
				return err
			}
			if len(rec) == 1 {
				in = ir.NewInstr(ir.OpBr, ir.VoidType(), nil)
				in.Blocks = []*ir.BasicBlock{t}
				break
			}
			f, err := basicBlockByID(blocks, rec[1])
			if err != nil {
				return err
			}
			cond, err := mr.vl.valueFwdRef(int(rec[2]), ir.Int1Type())
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpBr, ir.VoidType(), []ir.Value{cond})
			in.Blocks = []*ir.BasicBlock{t, f}

		case funcCodeInstSwitch:
			if len(rec) < 3 || len(rec)&1 == 0 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad switch record")
			}
			opTy := mr.typeByIDOrNull(rec[0])
			if opTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[0], uint64(len(mr.typeList)))
			}
			cond, err := mr.vl.valueFwdRef(int(rec[1]), opTy)
			if err != nil {
				return err
			}
			def, err := basicBlockByID(blocks, rec[2])
			if err != nil {
				return err
			}
			ops := []ir.Value{cond}
			bbs := []*ir.BasicBlock{def}
			for i := 3; i < len(rec); i += 2 {
				cv, err := mr.vl.valueFwdRef(int(rec[i]), opTy)
				if err != nil {
					return err
				}
				bb, err := basicBlockByID(blocks, rec[i+1])
				if err != nil {
					return err
				}
				ops = append(ops, cv)
				bbs = append(bbs, bb)
			}
			in = ir.NewInstr(ir.OpSwitch, ir.VoidType(), ops)
			in.Blocks = bbs

		case funcCodeInstIndirectBr:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			opTy := mr.typeByIDOrNull(rec[0])
			if opTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[0], uint64(len(mr.typeList)))
			}
			addr, err := mr.vl.valueFwdRef(int(rec[1]), opTy)
			if err != nil {
				return err
			}
			bbs := make([]*ir.BasicBlock, 0, len(rec)-2)
			for _, id := range rec[2:] {
				bb, err := basicBlockByID(blocks, id)
				if err != nil {
					return err
				}
				bbs = append(bbs, bb)
			}
			in = ir.NewInstr(ir.OpIndirectBr, ir.VoidType(), []ir.Value{addr})
			in.Blocks = bbs

		case funcCodeInstInvoke:
			if len(rec) < 4 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			attrs := mr.attributeSet(rec[0])
			cc := rec[1]
			norm, err := basicBlockByID(blocks, rec[2])
			if err != nil {
				return err
			}
			unwind, err := basicBlockByID(blocks, rec[3])
			if err != nil {
				return err
			}
			slot = 4
			callee, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			sig, err := calleeSignature(callee.Type())
			if err != nil {
				return err
			}
			args, err := mr.callArguments(rec, &slot, sig, blocks, nextValueNo)
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpInvoke, sig.Return, append(args, callee))
			in.Blocks = []*ir.BasicBlock{norm, unwind}
			in.CC, err = safecast.Conv[uint32](cc)
			if err != nil {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "calling convention overflow")
			}
			in.Attrs = attrs

		case funcCodeInstUnwindOld:
			// unwind was dropped from the format's successor; lower it to
			// a cleanup landingpad followed by resume.
			exnTy := ir.StructType([]*ir.Type{
				ir.PointerType(ir.Int8Type(), 0),
				ir.Int32Type(),
			}, false)
			lp := ir.NewInstr(ir.OpLandingPad, exnTy, nil)
			lp.Cleanup = true
			if curBB == nil {
				return bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "instruction outside a basic block")
			}
			curBB.Append(lp)
			instrs = append(instrs, lp)
			mr.vl.assign(lp, nextValueNo)
			nextValueNo++
			in = ir.NewInstr(ir.OpResume, ir.VoidType(), []ir.Value{lp})

		case funcCodeInstUnreachable:
			in = ir.NewInstr(ir.OpUnreachable, ir.VoidType(), nil)

		case funcCodeInstPhi:
			if len(rec) < 1 || len(rec)&1 == 0 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad phi record")
			}
			ty := mr.typeByIDOrNull(rec[0])
			if ty == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[0], uint64(len(mr.typeList)))
			}
			ops := make([]ir.Value, 0, (len(rec)-1)/2)
			bbs := make([]*ir.BasicBlock, 0, (len(rec)-1)/2)
			for i := 1; i < len(rec); i += 2 {
				v, err := mr.vl.valueFwdRef(int(rec[i]), ty)
				if err != nil {
					return err
				}
				bb, err := basicBlockByID(blocks, rec[i+1])
				if err != nil {
					return err
				}
				ops = append(ops, v)
				bbs = append(bbs, bb)
			}
			in = ir.NewInstr(ir.OpPHI, ty, ops)
			in.Blocks = bbs

		case funcCodeInstLandingPad:
			if len(rec) < 4 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			ty := mr.typeByIDOrNull(rec[0])
			if ty == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[0], uint64(len(mr.typeList)))
			}
			slot = 1
			persFn, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if slot+1 >= len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			isCleanup := rec[slot] != 0
			numClauses := rec[slot+1]
			slot += 2
			ops := []ir.Value{persFn}
			var clauses []ir.LandingPadClause
			for i := uint64(0); i < numClauses; i++ {
				if slot >= len(rec) {
					return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "truncated clause list")
				}
				isFilter := rec[slot] != 0
				slot++
				cv, err := mr.getValueTypePair(rec, &slot, nextValueNo)
				if err != nil {
					return err
				}
				clauses = append(clauses, ir.LandingPadClause{IsFilter: isFilter, Index: len(ops)})
				ops = append(ops, cv)
			}
			in = ir.NewInstr(ir.OpLandingPad, ty, ops)
			in.Cleanup = isCleanup
			in.Clauses = clauses

		case funcCodeInstResume:
			rv, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpResume, ir.VoidType(), []ir.Value{rv})

		case funcCodeInstAlloca:
			if len(rec) < 4 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			ty := mr.typeByIDOrNull(rec[0])
			opTy := mr.typeByIDOrNull(rec[1])
			if ty == nil || opTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[0], uint64(len(mr.typeList)))
			}
			size, err := mr.vl.valueFwdRef(int(rec[2]), opTy)
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpAlloca, ty, []ir.Value{size})
			in.Align = decodeAlignment(rec[3])

		case funcCodeInstLoad, funcCodeInstLoadAtomic:
			ptr, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if ptr.Type().Kind != ir.KindPointer {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "pointer", ptr.Type().String())
			}
			need := 2
			if code == funcCodeInstLoadAtomic {
				need = 4
			}
			if slot+need > len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			in = ir.NewInstr(ir.OpLoad, ptr.Type().Elem, []ir.Value{ptr})
			in.Align = decodeAlignment(rec[slot])
			in.Volatile = rec[slot+1] != 0
			if code == funcCodeInstLoadAtomic {
				in.Ordering = decodeOrdering(rec[slot+2])
				in.Scope = decodeSyncScope(rec[slot+3])
				if in.Ordering == ir.OrderingNotAtomic || in.Ordering == ir.OrderingRelease ||
					in.Ordering == ir.OrderingAcquireRelease {
					return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad atomic load ordering")
				}
			}

		case funcCodeInstStore, funcCodeInstStoreAtomic:
			ptr, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if ptr.Type().Kind != ir.KindPointer {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "pointer", ptr.Type().String())
			}
			val, err := mr.getTypedValue(rec, &slot, ptr.Type().Elem)
			if err != nil {
				return err
			}
			need := 2
			if code == funcCodeInstStoreAtomic {
				need = 4
			}
			if slot+need > len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			in = ir.NewInstr(ir.OpStore, ir.VoidType(), []ir.Value{ptr, val})
			in.Align = decodeAlignment(rec[slot])
			in.Volatile = rec[slot+1] != 0
			if code == funcCodeInstStoreAtomic {
				in.Ordering = decodeOrdering(rec[slot+2])
				in.Scope = decodeSyncScope(rec[slot+3])
				if in.Ordering == ir.OrderingNotAtomic || in.Ordering == ir.OrderingAcquire ||
					in.Ordering == ir.OrderingAcquireRelease {
					return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad atomic store ordering")
				}
			}

		case funcCodeInstCmpXchg:
			ptr, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if ptr.Type().Kind != ir.KindPointer {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "pointer", ptr.Type().String())
			}
			cmp, err := mr.getTypedValue(rec, &slot, ptr.Type().Elem)
			if err != nil {
				return err
			}
			newv, err := mr.getTypedValue(rec, &slot, ptr.Type().Elem)
			if err != nil {
				return err
			}
			if slot+3 > len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			in = ir.NewInstr(ir.OpCmpXchg, ptr.Type().Elem, []ir.Value{ptr, cmp, newv})
			in.Volatile = rec[slot] != 0
			in.Ordering = decodeOrdering(rec[slot+1])
			in.Scope = decodeSyncScope(rec[slot+2])
			if in.Ordering < ir.OrderingMonotonic {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad cmpxchg ordering")
			}

		case funcCodeInstAtomicRMW:
			ptr, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			if ptr.Type().Kind != ir.KindPointer {
				return bcerrors.TypeMismatch(bcerrors.PhaseFunction, "pointer", ptr.Type().String())
			}
			val, err := mr.getTypedValue(rec, &slot, ptr.Type().Elem)
			if err != nil {
				return err
			}
			if slot+4 > len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			rmw, ok := decodeRMWOp(rec[slot])
			if !ok {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "unknown atomicrmw operation")
			}
			in = ir.NewInstr(ir.OpAtomicRMW, ptr.Type().Elem, []ir.Value{ptr, val})
			in.RMW = rmw
			in.Volatile = rec[slot+1] != 0
			in.Ordering = decodeOrdering(rec[slot+2])
			in.Scope = decodeSyncScope(rec[slot+3])
			if in.Ordering < ir.OrderingMonotonic {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad atomicrmw ordering")
			}

		case funcCodeInstFence:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			in = ir.NewInstr(ir.OpFence, ir.VoidType(), nil)
			in.Ordering = decodeOrdering(rec[0])
			in.Scope = decodeSyncScope(rec[1])
			if in.Ordering < ir.OrderingAcquire {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "bad fence ordering")
			}

		case funcCodeInstExtractVal:
			agg, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			indices, resTy, err := aggregateIndices(agg.Type(), rec[slot:])
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpExtractValue, resTy, []ir.Value{agg})
			in.Indices = indices

		case funcCodeInstInsertVal:
			agg, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			val, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			indices, _, err := aggregateIndices(agg.Type(), rec[slot:])
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpInsertValue, agg.Type(), []ir.Value{agg, val})
			in.Indices = indices

		case funcCodeInstVAArg:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			listTy := mr.typeByIDOrNull(rec[0])
			resTy := mr.typeByIDOrNull(rec[2])
			if listTy == nil || resTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[0], uint64(len(mr.typeList)))
			}
			list, err := mr.vl.valueFwdRef(int(rec[1]), listTy)
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpVAArg, resTy, []ir.Value{list})

		case funcCodeInstCall:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "record too short")
			}
			attrs := mr.attributeSet(rec[0])
			cc := rec[1]
			slot = 2
			callee, err := mr.getValueTypePair(rec, &slot, nextValueNo)
			if err != nil {
				return err
			}
			sig, err := calleeSignature(callee.Type())
			if err != nil {
				return err
			}
			args, err := mr.callArguments(rec, &slot, sig, blocks, nextValueNo)
			if err != nil {
				return err
			}
			in = ir.NewInstr(ir.OpCall, sig.Return, append(args, callee))
			in.CC, err = safecast.Conv[uint32](cc >> 1)
			if err != nil {
				return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "calling convention overflow")
			}
			in.TailCall = cc&1 != 0
			in.Attrs = attrs

		default:
			return bcerrors.InvalidRecord(bcerrors.PhaseFunction, "FUNCTION", code, "unknown instruction record")
		}

		if curBB == nil {
			return bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "instruction outside a basic block")
		}
		curBB.Append(in)
		instrs = append(instrs, in)

		if in.Op.IsTerminator() {
			curBBNo++
			if curBBNo < len(blocks) {
				curBB = blocks[curBBNo]
			} else {
				curBB = nil
			}
		}
		if in.Type().Kind != ir.KindVoid {
			mr.vl.assign(in, nextValueNo)
			nextValueNo++
		}
	}
}

// finishFunctionBody runs the end-of-block checks: no dangling forward
// references may remain, and blockaddress placeholders targeting this
// function resolve now that its blocks exist.
func (mr *moduleReader) finishFunctionBody(fn *ir.Function, blocks []*ir.BasicBlock, moduleValues int) error {
	for i := moduleValues; i < mr.vl.size(); i++ {
		if a, ok := mr.vl.value(i).(*ir.Argument); ok && a.IsPlaceholder() {
			return bcerrors.Unresolved(bcerrors.PhaseFunction, "value", uint64(i))
		}
	}

	for _, ref := range mr.blockAddrFwdRefs[fn] {
		if ref.blockIdx >= len(blocks) {
			return bcerrors.OutOfRange(bcerrors.PhaseFunction, "basic block", uint64(ref.blockIdx), uint64(len(blocks)))
		}
		ir.ReplaceAllUses(ref.fwdRef, ir.NewBlockAddress(fn, blocks[ref.blockIdx]))
	}
	delete(mr.blockAddrFwdRefs, fn)

	fn.Proto = false
	return nil
}

// getValueTypePair decodes one operand slot. References to already-seen
// values carry no type; forward references are followed by an explicit
// type field.
func (mr *moduleReader) getValueTypePair(rec []uint64, slot *int, nextValueNo int) (ir.Value, error) {
	if *slot >= len(rec) {
		return nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "truncated operand list")
	}
	vid := int(rec[*slot])
	*slot++

	if vid < nextValueNo {
		return mr.vl.valueFwdRef(vid, nil)
	}

	if *slot >= len(rec) {
		return nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "forward reference without a type")
	}
	t := mr.typeByIDOrNull(rec[*slot])
	*slot++
	if t == nil {
		return nil, bcerrors.OutOfRange(bcerrors.PhaseFunction, "type", rec[*slot-1], uint64(len(mr.typeList)))
	}
	return mr.vl.valueFwdRef(vid, t)
}

// getTypedValue decodes one operand slot whose type the caller already
// knows.
func (mr *moduleReader) getTypedValue(rec []uint64, slot *int, typ *ir.Type) (ir.Value, error) {
	if *slot >= len(rec) {
		return nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "truncated operand list")
	}
	vid := int(rec[*slot])
	*slot++
	return mr.vl.valueFwdRef(vid, typ)
}

// callArguments decodes call/invoke argument lists: one operand per
// signature parameter (label parameters take a block index), then
// type/value pairs for the variadic tail.
func (mr *moduleReader) callArguments(rec []uint64, slot *int, sig *ir.Type, blocks []*ir.BasicBlock, nextValueNo int) ([]ir.Value, error) {
	args := make([]ir.Value, 0, len(sig.Params))
	for _, pt := range sig.Params {
		if *slot >= len(rec) {
			return nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "truncated argument list")
		}
		if pt.Kind == ir.KindLabel {
			bb, err := basicBlockByID(blocks, rec[*slot])
			if err != nil {
				return nil, err
			}
			*slot++
			args = append(args, bb)
			continue
		}
		a, err := mr.getTypedValue(rec, slot, pt)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if *slot != len(rec) && !sig.Variadic {
		return nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "extra arguments to non-variadic call")
	}
	for *slot < len(rec) {
		a, err := mr.getValueTypePair(rec, slot, nextValueNo)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func basicBlockByID(blocks []*ir.BasicBlock, id uint64) (*ir.BasicBlock, error) {
	if id >= uint64(len(blocks)) {
		return nil, bcerrors.OutOfRange(bcerrors.PhaseFunction, "basic block", id, uint64(len(blocks)))
	}
	return blocks[id], nil
}

// calleeSignature unwraps a pointer-to-function callee type.
func calleeSignature(t *ir.Type) (*ir.Type, error) {
	if t.Kind != ir.KindPointer || t.Elem.Kind != ir.KindFunction {
		return nil, bcerrors.TypeMismatch(bcerrors.PhaseFunction, "function pointer", t.String())
	}
	return t.Elem, nil
}

// gepResultType walks the indexed type chain of a getelementptr.
func gepResultType(base *ir.Type, indices []ir.Value) (*ir.Type, error) {
	if base.Kind != ir.KindPointer {
		return nil, bcerrors.TypeMismatch(bcerrors.PhaseFunction, "pointer", base.String())
	}
	if len(indices) == 0 {
		return base, nil
	}
	// The first index steps the base pointer and leaves the pointee type
	// alone.
	t := base.Elem
	for _, idx := range indices[1:] {
		switch t.Kind {
		case ir.KindStruct:
			ci, ok := idx.(*ir.ConstInt)
			if !ok || ci.V >= uint64(len(t.Fields)) {
				return nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "bad struct index in getelementptr")
			}
			t = t.Fields[ci.V]
		case ir.KindArray, ir.KindVector:
			t = t.Elem
		default:
			return nil, bcerrors.TypeMismatch(bcerrors.PhaseFunction, "aggregate", t.String())
		}
	}
	return ir.PointerType(t, base.AddrSpace), nil
}

// aggregateIndices decodes extractvalue/insertvalue index lists and the
// type reached by following them.
func aggregateIndices(agg *ir.Type, rec []uint64) ([]uint32, *ir.Type, error) {
	if len(rec) == 0 {
		return nil, nil, bcerrors.Malformed(bcerrors.PhaseFunction, "FUNCTION", "empty aggregate index list")
	}
	t := agg
	indices := make([]uint32, 0, len(rec))
	for _, raw := range rec {
		switch t.Kind {
		case ir.KindStruct:
			if raw >= uint64(len(t.Fields)) {
				return nil, nil, bcerrors.OutOfRange(bcerrors.PhaseFunction, "struct field", raw, uint64(len(t.Fields)))
			}
			t = t.Fields[raw]
		case ir.KindArray:
			t = t.Elem
		default:
			return nil, nil, bcerrors.TypeMismatch(bcerrors.PhaseFunction, "aggregate", t.String())
		}
		indices = append(indices, uint32(raw))
	}
	return indices, t, nil
}
