package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// parseConstants reads one CONSTANTS block into the value table. The
// block is a SETTYPE-threaded sequence: each value record produces one
// constant of the current type. Cross-references between constants may
// point forward; they are carried as placeholders and resolved in bulk
// when the block ends.
func (mr *moduleReader) parseConstants() error {
	if err := mr.bs.EnterSubBlock(constantsBlockID); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}

	curTy := ir.Int32Type()
	nextCstNo := mr.vl.size()

	for {
		ent, err := mr.bs.AdvanceSkippingSubblocks()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if ent.Kind == bitstream.EntryEndBlock {
			if nextCstNo != mr.vl.size() {
				return bcerrors.Unresolved(bcerrors.PhaseConstants, "constant", uint64(mr.vl.size()-1))
			}
			return mr.vl.resolveConstantForwardRefs()
		}

		code, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		var v ir.Value
		switch code {
		case cstCodeSetType:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "missing type")
			}
			if rec[0] >= uint64(len(mr.typeList)) {
				return bcerrors.OutOfRange(bcerrors.PhaseConstants, "type", rec[0], uint64(len(mr.typeList)))
			}
			curTy = mr.typeByID(rec[0])
			continue

		case cstCodeNull:
			v = ir.NewConstNull(curTy)

		case cstCodeUndef:
			v = ir.NewUndef(curTy)

		case cstCodeInteger:
			if !curTy.IsInteger() || len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "bad integer record")
			}
			v = ir.NewConstInt(curTy, decodeSignRotatedValue(rec[0]))

		case cstCodeWideInteger:
			if !curTy.IsInteger() || len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "bad integer record")
			}
			words := make([]uint64, len(rec))
			for i, w := range rec {
				words[i] = decodeSignRotatedValue(w)
			}
			v = ir.NewWideConstInt(curTy, words)

		case cstCodeFloat:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "empty float record")
			}
			if !curTy.IsFloatingPoint() {
				return bcerrors.TypeMismatch(bcerrors.PhaseConstants, "floating point", curTy.String())
			}
			bits := make([]uint64, len(rec))
			copy(bits, rec)
			v = ir.NewConstFloat(curTy, bits)

		case cstCodeAggregate:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "empty aggregate")
			}
			elems := make([]ir.Value, len(rec))
			for i, id := range rec {
				var elemTy *ir.Type
				switch curTy.Kind {
				case ir.KindStruct:
					if i >= len(curTy.Fields) {
						return bcerrors.OutOfRange(bcerrors.PhaseConstants, "struct field", uint64(i), uint64(len(curTy.Fields)))
					}
					elemTy = curTy.Fields[i]
				case ir.KindArray, ir.KindVector:
					elemTy = curTy.Elem
				default:
					return bcerrors.TypeMismatch(bcerrors.PhaseConstants, "aggregate", curTy.String())
				}
				c, err := mr.vl.constantFwdRef(int(id), elemTy)
				if err != nil {
					return err
				}
				elems[i] = c
			}
			v = ir.NewConstAggregate(curTy, elems)

		case cstCodeString, cstCodeCString:
			if curTy.Kind != ir.KindArray {
				return bcerrors.TypeMismatch(bcerrors.PhaseConstants, "array", curTy.String())
			}
			n := len(rec)
			if code == cstCodeCString {
				n++ // trailing NUL is implicit in the record
			}
			elems := make([]ir.Value, 0, n)
			for _, ch := range rec {
				elems = append(elems, ir.NewConstInt(curTy.Elem, ch))
			}
			if code == cstCodeCString {
				elems = append(elems, ir.NewConstInt(curTy.Elem, 0))
			}
			v = ir.NewConstAggregate(curTy, elems)

		case cstCodeCEBinOp:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			op := decodeBinaryOpcode(rec[0], curTy)
			if op == ir.OpInvalid {
				v = ir.NewUndef(curTy)
				break
			}
			lhs, err := mr.vl.constantFwdRef(int(rec[1]), curTy)
			if err != nil {
				return err
			}
			rhs, err := mr.vl.constantFwdRef(int(rec[2]), curTy)
			if err != nil {
				return err
			}
			expr := ir.NewConstExpr(curTy, op, []ir.Value{lhs, rhs})
			if len(rec) >= 4 {
				expr.Flags = decodeBinopFlags(op, rec[3])
			}
			v = expr

		case cstCodeCECast:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			op := decodeCastOpcode(rec[0])
			if op == ir.OpInvalid {
				v = ir.NewUndef(curTy)
				break
			}
			opTy := mr.typeByIDOrNull(rec[1])
			if opTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseConstants, "type", rec[1], uint64(len(mr.typeList)))
			}
			operand, err := mr.vl.constantFwdRef(int(rec[2]), opTy)
			if err != nil {
				return err
			}
			v = ir.NewConstExpr(curTy, op, []ir.Value{operand})

		case cstCodeCEGEP, cstCodeCEInboundsGEP:
			elems, err := mr.constantTypePairs(rec)
			if err != nil {
				return err
			}
			expr := ir.NewConstExpr(curTy, ir.OpGetElementPtr, elems)
			if code == cstCodeCEInboundsGEP {
				expr.Flags = ir.FlagInBounds
			}
			v = expr

		case cstCodeCESelect:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			cond, err := mr.vl.constantFwdRef(int(rec[0]), ir.Int1Type())
			if err != nil {
				return err
			}
			t, err := mr.vl.constantFwdRef(int(rec[1]), curTy)
			if err != nil {
				return err
			}
			f, err := mr.vl.constantFwdRef(int(rec[2]), curTy)
			if err != nil {
				return err
			}
			v = ir.NewConstExpr(curTy, ir.OpSelect, []ir.Value{cond, t, f})

		case cstCodeCEExtractElt:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			opTy := mr.typeByIDOrNull(rec[0])
			if opTy == nil || opTy.Kind != ir.KindVector {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "operand is not a vector")
			}
			vec, err := mr.vl.constantFwdRef(int(rec[1]), opTy)
			if err != nil {
				return err
			}
			idx, err := mr.vl.constantFwdRef(int(rec[2]), ir.Int32Type())
			if err != nil {
				return err
			}
			v = ir.NewConstExpr(curTy, ir.OpExtractElement, []ir.Value{vec, idx})

		case cstCodeCEInsertElt:
			if curTy.Kind != ir.KindVector || len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "bad insertelement record")
			}
			vec, err := mr.vl.constantFwdRef(int(rec[0]), curTy)
			if err != nil {
				return err
			}
			elt, err := mr.vl.constantFwdRef(int(rec[1]), curTy.Elem)
			if err != nil {
				return err
			}
			idx, err := mr.vl.constantFwdRef(int(rec[2]), ir.Int32Type())
			if err != nil {
				return err
			}
			v = ir.NewConstExpr(curTy, ir.OpInsertElement, []ir.Value{vec, elt, idx})

		case cstCodeCEShuffleVec:
			if curTy.Kind != ir.KindVector || len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "bad shufflevector record")
			}
			v, err = mr.shuffleExpr(curTy, curTy, rec[0], rec[1], rec[2])
			if err != nil {
				return err
			}

		case cstCodeCEShufVecEx:
			if curTy.Kind != ir.KindVector || len(rec) < 4 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "bad shufflevector record")
			}
			opTy := mr.typeByIDOrNull(rec[0])
			if opTy == nil || opTy.Kind != ir.KindVector {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "operand is not a vector")
			}
			v, err = mr.shuffleExpr(curTy, opTy, rec[1], rec[2], rec[3])
			if err != nil {
				return err
			}

		case cstCodeCECmp:
			if len(rec) < 4 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			opTy := mr.typeByIDOrNull(rec[0])
			if opTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseConstants, "type", rec[0], uint64(len(mr.typeList)))
			}
			lhs, err := mr.vl.constantFwdRef(int(rec[1]), opTy)
			if err != nil {
				return err
			}
			rhs, err := mr.vl.constantFwdRef(int(rec[2]), opTy)
			if err != nil {
				return err
			}
			op := ir.OpICmp
			if opTy.IsFPOrFPVector() {
				op = ir.OpFCmp
			}
			resTy := ir.Int1Type()
			if opTy.Kind == ir.KindVector {
				resTy = ir.VectorType(ir.Int1Type(), opTy.Len)
			}
			expr := ir.NewConstExpr(resTy, op, []ir.Value{lhs, rhs})
			expr.Pred = rec[3]
			v = expr

		case cstCodeBlockAddress:
			if len(rec) < 3 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			fnTy := mr.typeByIDOrNull(rec[0])
			if fnTy == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseConstants, "type", rec[0], uint64(len(mr.typeList)))
			}
			fnVal, err := mr.vl.constantFwdRef(int(rec[1]), fnTy)
			if err != nil {
				return err
			}
			fn, ok := fnVal.(*ir.Function)
			if !ok {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "blockaddress of non-function")
			}
			// The target block does not exist until the body is
			// materialized; stand in with a placeholder resolved then.
			ph := ir.NewPlaceholder(ir.PointerType(ir.Int8Type(), 0))
			mr.blockAddrFwdRefs[fn] = append(mr.blockAddrFwdRefs[fn], blockAddrRef{
				blockIdx: int(rec[2]),
				fwdRef:   ph,
			})
			v = ph

		case cstCodeInlineAsm:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "record too short")
			}
			asmLen := int(rec[1])
			if 2+asmLen+1 > len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "truncated asm string")
			}
			asm := recordSubString(rec, 2, asmLen)
			constLen := int(rec[2+asmLen])
			if 3+asmLen+constLen > len(rec) {
				return bcerrors.InvalidRecord(bcerrors.PhaseConstants, "CONSTANTS", code, "truncated constraints")
			}
			constraints := recordSubString(rec, 3+asmLen, constLen)
			if curTy.Kind != ir.KindPointer {
				return bcerrors.TypeMismatch(bcerrors.PhaseConstants, "pointer", curTy.String())
			}
			v = ir.NewInlineAsm(curTy, asm, constraints, rec[0]&1 != 0, rec[0]&2 != 0)

		default:
			// Unknown constant records degrade to undef so newer
			// producers stay loadable.
			v = ir.NewUndef(curTy)
		}

		mr.vl.assign(v, nextCstNo)
		nextCstNo++
	}
}

// constantTypePairs decodes a [typeid, value#]* operand list.
func (mr *moduleReader) constantTypePairs(rec []uint64) ([]ir.Value, error) {
	if len(rec)&1 != 0 {
		return nil, bcerrors.Malformed(bcerrors.PhaseConstants, "CONSTANTS", "odd type/value pair list")
	}
	vals := make([]ir.Value, 0, len(rec)/2)
	for i := 0; i < len(rec); i += 2 {
		t := mr.typeByIDOrNull(rec[i])
		if t == nil {
			return nil, bcerrors.OutOfRange(bcerrors.PhaseConstants, "type", rec[i], uint64(len(mr.typeList)))
		}
		c, err := mr.vl.constantFwdRef(int(rec[i+1]), t)
		if err != nil {
			return nil, err
		}
		vals = append(vals, c)
	}
	return vals, nil
}

// shuffleExpr builds a shufflevector expression; the mask is a vector
// of i32 sized by the result type.
func (mr *moduleReader) shuffleExpr(resTy, opTy *ir.Type, v1ID, v2ID, maskID uint64) (ir.Value, error) {
	v1, err := mr.vl.constantFwdRef(int(v1ID), opTy)
	if err != nil {
		return nil, err
	}
	v2, err := mr.vl.constantFwdRef(int(v2ID), opTy)
	if err != nil {
		return nil, err
	}
	maskTy := ir.VectorType(ir.Int32Type(), resTy.Len)
	mask, err := mr.vl.constantFwdRef(int(maskID), maskTy)
	if err != nil {
		return nil, err
	}
	return ir.NewConstExpr(resTy, ir.OpShuffleVector, []ir.Value{v1, v2, mask}), nil
}

// recordSubString extracts n record fields starting at from as a string.
func recordSubString(rec []uint64, from, n int) string {
	b := make([]byte, 0, n)
	for _, c := range rec[from : from+n] {
		b = append(b, byte(c))
	}
	return string(b)
}
