package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
)

// parseTypeTable reads the modern type block. NUMENTRY preallocates the
// table; forward references to named structs are satisfied by opaque
// placeholders patched in place when the defining record arrives.
func (mr *moduleReader) parseTypeTable() error {
	if err := mr.bs.EnterSubBlock(typeBlockIDNew); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}
	if len(mr.typeList) != 0 {
		return bcerrors.Duplicate(bcerrors.PhaseTypes, "type table", typeBlockIDNew)
	}

	numRecords := 0
	for {
		ent, err := mr.bs.AdvanceSkippingSubblocks()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		if ent.Kind == bitstream.EntryEndBlock {
			if numRecords != len(mr.typeList) {
				return bcerrors.Malformed(bcerrors.PhaseTypes, "TYPE",
					"type count does not match NUMENTRY")
			}
			return nil
		}

		code, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		var result *ir.Type
		switch code {
		case typeCodeNumEntry:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "missing count")
			}
			if mr.typeList != nil {
				return bcerrors.Duplicate(bcerrors.PhaseTypes, "NUMENTRY", code)
			}
			// Every entry costs at least one record, so a count beyond
			// the remaining bits cannot be honest.
			if rec[0] > mr.bs.BitsRemaining() {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "entry count exceeds stream size")
			}
			mr.typeList = make([]*ir.Type, rec[0])
			continue
		case typeCodeVoid:
			result = ir.VoidType()
		case typeCodeHalf:
			result = ir.HalfType()
		case typeCodeFloat:
			result = ir.FloatType()
		case typeCodeDouble:
			result = ir.DoubleType()
		case typeCodeX86FP80:
			result = ir.X86FP80Type()
		case typeCodeFP128:
			result = ir.FP128Type()
		case typeCodePPCFP128:
			result = ir.PPCFP128Type()
		case typeCodeLabel:
			result = ir.LabelType()
		case typeCodeMetadata:
			result = ir.MetadataType()
		case typeCodeX86MMX:
			result = ir.X86MMXType()
		case typeCodeInteger:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "missing width")
			}
			result = ir.IntType(uint32(rec[0]))
		case typeCodePointer:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "missing pointee")
			}
			var addrSpace uint32
			if len(rec) == 2 {
				addrSpace = uint32(rec[1])
			}
			elem := mr.typeByID(rec[0])
			if elem == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", rec[0], uint64(len(mr.typeList)))
			}
			result = ir.PointerType(elem, addrSpace)
		case typeCodeFunctionOld, typeCodeFunction:
			// The old form carries a dead attribute id between the
			// vararg flag and the return type.
			skip := 1
			if code == typeCodeFunctionOld {
				skip = 2
			}
			if len(rec) < skip+1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "record too short")
			}
			ret := mr.typeByID(rec[skip])
			if ret == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", rec[skip], uint64(len(mr.typeList)))
			}
			params := make([]*ir.Type, 0, len(rec)-skip-1)
			for _, id := range rec[skip+1:] {
				p := mr.typeByID(id)
				if p == nil {
					return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", id, uint64(len(mr.typeList)))
				}
				params = append(params, p)
			}
			result = ir.FunctionType(ret, params, rec[0] != 0)
		case typeCodeStructAnon:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "missing packed flag")
			}
			fields, err := mr.typeFields(rec[1:])
			if err != nil {
				return err
			}
			result = ir.StructType(fields, rec[0] != 0)
		case typeCodeStructName:
			mr.pendingName = recordString(rec, 0)
			continue
		case typeCodeStructNamed:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "missing packed flag")
			}
			if numRecords >= len(mr.typeList) {
				return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type slot", uint64(numRecords), uint64(len(mr.typeList)))
			}
			res := mr.claimNamedStruct(numRecords)
			fields, err := mr.typeFields(rec[1:])
			if err != nil {
				return err
			}
			res.SetBody(fields, rec[0] != 0)
			result = res
		case typeCodeOpaque:
			if len(rec) != 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "unexpected fields")
			}
			if numRecords >= len(mr.typeList) {
				return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type slot", uint64(numRecords), uint64(len(mr.typeList)))
			}
			result = mr.claimNamedStruct(numRecords)
		case typeCodeArray:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "record too short")
			}
			elem := mr.typeByID(rec[1])
			if elem == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", rec[1], uint64(len(mr.typeList)))
			}
			result = ir.ArrayType(elem, rec[0])
		case typeCodeVector:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "record too short")
			}
			elem := mr.typeByID(rec[1])
			if elem == nil {
				return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", rec[1], uint64(len(mr.typeList)))
			}
			result = ir.VectorType(elem, rec[0])
		default:
			return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE", code, "unknown type record")
		}

		if numRecords >= len(mr.typeList) {
			return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type slot", uint64(numRecords), uint64(len(mr.typeList)))
		}
		if mr.typeList[numRecords] != nil && mr.typeList[numRecords] != result {
			return bcerrors.Duplicate(bcerrors.PhaseTypes, "type", uint64(numRecords))
		}
		mr.typeList[numRecords] = result
		numRecords++
	}
}

// claimNamedStruct returns the struct for the defining record at slot:
// the placeholder made for a forward reference if there was one, else a
// fresh named struct. The buffered STRUCT_NAME is consumed either way.
func (mr *moduleReader) claimNamedStruct(slot int) *ir.Type {
	res := mr.typeList[slot]
	if res != nil {
		res.SetStructName(mr.pendingName)
	} else {
		res = ir.OpaqueStructType(mr.pendingName)
	}
	mr.pendingName = ""
	return res
}

func (mr *moduleReader) typeFields(ids []uint64) ([]*ir.Type, error) {
	fields := make([]*ir.Type, 0, len(ids))
	for _, id := range ids {
		t := mr.typeByID(id)
		if t == nil {
			return nil, bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", id, uint64(len(mr.typeList)))
		}
		fields = append(fields, t)
	}
	return fields, nil
}

// parseOldTypeTable reads the legacy type block. The legacy format has
// no forward-reference discipline, so the block is scanned repeatedly
// from its start until every slot fills; a pass that fills nothing
// means an unresolvable reference.
func (mr *moduleReader) parseOldTypeTable() error {
	if len(mr.typeList) != 0 {
		return bcerrors.Duplicate(bcerrors.PhaseTypes, "type table", typeBlockIDOld)
	}

	enterBit := mr.bs.BitOffset()
	numTypesRead := 0

restart:
	if err := mr.bs.Seek(enterBit); err != nil {
		return bcerrors.Stream(enterBit, err)
	}
	if err := mr.bs.EnterSubBlock(typeBlockIDOld); err != nil {
		return bcerrors.Stream(mr.bs.BitOffset(), err)
	}
	nextTypeID := 0
	readAnyTypes := false
	for {
		ent, err := mr.bs.Advance()
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}
		switch ent.Kind {
		case bitstream.EntryEndBlock:
			if nextTypeID != len(mr.typeList) {
				return bcerrors.Malformed(bcerrors.PhaseTypes, "TYPE_OLD", "type count mismatch")
			}
			if numTypesRead != len(mr.typeList) {
				if !readAnyTypes {
					return bcerrors.Malformed(bcerrors.PhaseTypes, "TYPE_OLD",
						"no progress resolving legacy forward references")
				}
				goto restart
			}
			return nil
		case bitstream.EntrySubBlock:
			if err := mr.bs.SkipBlock(); err != nil {
				return bcerrors.Stream(mr.bs.BitOffset(), err)
			}
			continue
		}

		recCode, rec, err := mr.bs.ReadRecord(ent.ID)
		if err != nil {
			return bcerrors.Stream(mr.bs.BitOffset(), err)
		}

		var result *ir.Type
		switch recCode {
		case typeCodeNumEntry:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "missing count")
			}
			if rec[0] > mr.bs.BitsRemaining() {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "entry count exceeds stream size")
			}
			if len(mr.typeList) < int(rec[0]) {
				mr.typeList = make([]*ir.Type, rec[0])
			}
			continue
		case typeCodeVoid:
			result = ir.VoidType()
		case typeCodeFloat:
			result = ir.FloatType()
		case typeCodeDouble:
			result = ir.DoubleType()
		case typeCodeX86FP80:
			result = ir.X86FP80Type()
		case typeCodeFP128:
			result = ir.FP128Type()
		case typeCodePPCFP128:
			result = ir.PPCFP128Type()
		case typeCodeLabel:
			result = ir.LabelType()
		case typeCodeMetadata:
			result = ir.MetadataType()
		case typeCodeX86MMX:
			result = ir.X86MMXType()
		case typeCodeInteger:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "missing width")
			}
			result = ir.IntType(uint32(rec[0]))
		case typeCodeOpaque:
			if nextTypeID < len(mr.typeList) && mr.typeList[nextTypeID] == nil {
				result = ir.OpaqueStructType("")
			}
		case typeCodeStructOld:
			if nextTypeID >= len(mr.typeList) {
				break
			}
			// Already finished on a previous pass.
			if t := mr.typeList[nextTypeID]; t != nil && t.Kind == ir.KindStruct && !t.Opaque {
				break
			}
			if mr.typeList[nextTypeID] == nil {
				mr.typeList[nextTypeID] = ir.OpaqueStructType("")
			}
			fields := make([]*ir.Type, 0, len(rec)-1)
			ready := true
			for _, id := range rec[1:] {
				t := mr.typeByIDOrNull(id)
				if t == nil {
					ready = false
					break
				}
				fields = append(fields, t)
			}
			if !ready {
				break // Not all elements seen yet; retry next pass.
			}
			mr.typeList[nextTypeID].SetBody(fields, rec[0] != 0)
			result = mr.typeList[nextTypeID]
			mr.typeList[nextTypeID] = nil
		case typeCodePointer:
			if len(rec) < 1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "missing pointee")
			}
			var addrSpace uint32
			if len(rec) == 2 {
				addrSpace = uint32(rec[1])
			}
			if elem := mr.typeByIDOrNull(rec[0]); elem != nil {
				result = ir.PointerType(elem, addrSpace)
			}
		case typeCodeFunctionOld, typeCodeFunction:
			skip := 1
			if recCode == typeCodeFunctionOld {
				skip = 2
			}
			if len(rec) < skip+1 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "record too short")
			}
			params := make([]*ir.Type, 0, len(rec)-skip-1)
			ready := true
			for _, id := range rec[skip+1:] {
				t := mr.typeByIDOrNull(id)
				if t == nil {
					ready = false
					break
				}
				params = append(params, t)
			}
			if !ready {
				break
			}
			if ret := mr.typeByIDOrNull(rec[skip]); ret != nil {
				result = ir.FunctionType(ret, params, rec[0] != 0)
			}
		case typeCodeArray:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "record too short")
			}
			if elem := mr.typeByIDOrNull(rec[1]); elem != nil {
				result = ir.ArrayType(elem, rec[0])
			}
		case typeCodeVector:
			if len(rec) < 2 {
				return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "record too short")
			}
			if elem := mr.typeByIDOrNull(rec[1]); elem != nil {
				result = ir.VectorType(elem, rec[0])
			}
		default:
			return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_OLD", recCode, "unknown type record")
		}

		if nextTypeID >= len(mr.typeList) {
			return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type slot", uint64(nextTypeID), uint64(len(mr.typeList)))
		}
		if result != nil && mr.typeList[nextTypeID] == nil {
			numTypesRead++
			readAnyTypes = true
			mr.typeList[nextTypeID] = result
		}
		nextTypeID++
	}
}

// parseOldTypeSymbolTable reads the legacy type symbol table, naming
// previously unnamed structs.
func (mr *moduleReader) parseOldTypeSymbolTable() error {
	if err := mr.bs.EnterSubBlock(typeSymtabBlockOld); err != nil {
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
		if code != tstCodeEntry {
			continue
		}
		if len(rec) < 1 {
			return bcerrors.InvalidRecord(bcerrors.PhaseTypes, "TYPE_SYMTAB", code, "missing type id")
		}
		if rec[0] >= uint64(len(mr.typeList)) {
			return bcerrors.OutOfRange(bcerrors.PhaseTypes, "type", rec[0], uint64(len(mr.typeList)))
		}
		name := recordString(rec, 1)
		if t := mr.typeList[rec[0]]; t != nil && t.Kind == ir.KindStruct && t.Named && t.StructName() == "" {
			t.SetStructName(name)
		}
	}
}
