package reader

import "github.com/bcio/bitcode/ir"

// Block IDs.
const (
	moduleBlockID      = 8
	paramAttrBlockID   = 9
	typeBlockIDOld     = 10
	constantsBlockID   = 11
	functionBlockID    = 12
	typeSymtabBlockOld = 13
	valueSymtabBlockID = 14
	metadataBlockID    = 15
	metadataAttachID   = 16
	typeBlockIDNew     = 17
)

// MODULE block record codes.
const (
	moduleCodeVersion     = 1
	moduleCodeTriple      = 2
	moduleCodeDataLayout  = 3
	moduleCodeASM         = 4
	moduleCodeSectionName = 5
	moduleCodeDepLib      = 6
	moduleCodeGlobalVar   = 7
	moduleCodeFunction    = 8
	moduleCodeAlias       = 9
	moduleCodePurgeVals   = 10
	moduleCodeGCName      = 11
)

// PARAMATTR block record codes.
const (
	paramAttrCodeEntryOld = 1
	paramAttrCodeEntry    = 2
)

// TYPE block record codes.
const (
	typeCodeNumEntry    = 1
	typeCodeVoid        = 2
	typeCodeFloat       = 3
	typeCodeDouble      = 4
	typeCodeLabel       = 5
	typeCodeOpaque      = 6
	typeCodeInteger     = 7
	typeCodePointer     = 8
	typeCodeFunctionOld = 9
	typeCodeHalf        = 10
	typeCodeArray       = 11
	typeCodeVector      = 12
	typeCodeX86FP80     = 13
	typeCodeFP128       = 14
	typeCodePPCFP128    = 15
	typeCodeMetadata    = 16
	typeCodeX86MMX      = 17
	typeCodeStructAnon  = 18
	typeCodeStructName  = 19
	typeCodeStructNamed = 20
	typeCodeFunction    = 21

	// In the legacy table, code 10 is the old struct record.
	typeCodeStructOld = 10
)

// TYPE_SYMTAB and VALUE_SYMTAB record codes.
const (
	tstCodeEntry   = 1
	vstCodeEntry   = 1
	vstCodeBBEntry = 2
)

// METADATA block record codes.
const (
	metadataString     = 1
	metadataName       = 4
	metadataKind       = 6
	metadataNode       = 8
	metadataFnNode     = 9
	metadataNamedNode  = 10
	metadataAttachment = 11
)

// CONSTANTS block record codes.
const (
	cstCodeSetType       = 1
	cstCodeNull          = 2
	cstCodeUndef         = 3
	cstCodeInteger       = 4
	cstCodeWideInteger   = 5
	cstCodeFloat         = 6
	cstCodeAggregate     = 7
	cstCodeString        = 8
	cstCodeCString       = 9
	cstCodeCEBinOp       = 10
	cstCodeCECast        = 11
	cstCodeCEGEP         = 12
	cstCodeCESelect      = 13
	cstCodeCEExtractElt  = 14
	cstCodeCEInsertElt   = 15
	cstCodeCEShuffleVec  = 16
	cstCodeCECmp         = 17
	cstCodeCEShufVecEx   = 19
	cstCodeCEInboundsGEP = 20
	cstCodeBlockAddress  = 21
	cstCodeInlineAsm     = 23
)

// FUNCTION block record codes.
const (
	funcCodeDeclareBlocks   = 1
	funcCodeInstBinOp       = 2
	funcCodeInstCast        = 3
	funcCodeInstGEP         = 4
	funcCodeInstSelect      = 5
	funcCodeInstExtractElt  = 6
	funcCodeInstInsertElt   = 7
	funcCodeInstShuffleVec  = 8
	funcCodeInstCmp         = 9
	funcCodeInstRet         = 10
	funcCodeInstBr          = 11
	funcCodeInstSwitch      = 12
	funcCodeInstInvoke      = 13
	funcCodeInstUnwindOld   = 14
	funcCodeInstUnreachable = 15
	funcCodeInstPhi         = 16
	funcCodeInstAlloca      = 19
	funcCodeInstLoad        = 20
	funcCodeInstVAArg       = 23
	funcCodeInstStore       = 24
	funcCodeInstExtractVal  = 26
	funcCodeInstInsertVal   = 27
	funcCodeInstCmp2        = 28
	funcCodeInstVSelect     = 29
	funcCodeInstInboundsGEP = 30
	funcCodeInstIndirectBr  = 31
	funcCodeDebugLocAgain   = 33
	funcCodeInstCall        = 34
	funcCodeDebugLoc        = 35
	funcCodeInstFence       = 36
	funcCodeInstCmpXchg     = 37
	funcCodeInstAtomicRMW   = 38
	funcCodeInstResume      = 39
	funcCodeInstLandingPad  = 40
	funcCodeInstLoadAtomic  = 41
	funcCodeInstStoreAtomic = 42
)

// Encoded sub-operation values carried inside records.
const (
	binOpAdd  = 0
	binOpSub  = 1
	binOpMul  = 2
	binOpUDiv = 3
	binOpSDiv = 4
	binOpURem = 5
	binOpSRem = 6
	binOpShl  = 7
	binOpLShr = 8
	binOpAShr = 9
	binOpAnd  = 10
	binOpOr   = 11
	binOpXor  = 12

	castTrunc    = 0
	castZExt     = 1
	castSExt     = 2
	castFPToUI   = 3
	castFPToSI   = 4
	castUIToFP   = 5
	castSIToFP   = 6
	castFPTrunc  = 7
	castFPExt    = 8
	castPtrToInt = 9
	castIntToPtr = 10
	castBitCast  = 11

	oboNoUnsignedWrap = 0
	oboNoSignedWrap   = 1
	peoExact          = 0
)

// decodeCastOpcode returns the IR opcode, or OpInvalid for unknown codes.
func decodeCastOpcode(v uint64) ir.Opcode {
	switch v {
	case castTrunc:
		return ir.OpTrunc
	case castZExt:
		return ir.OpZExt
	case castSExt:
		return ir.OpSExt
	case castFPToUI:
		return ir.OpFPToUI
	case castFPToSI:
		return ir.OpFPToSI
	case castUIToFP:
		return ir.OpUIToFP
	case castSIToFP:
		return ir.OpSIToFP
	case castFPTrunc:
		return ir.OpFPTrunc
	case castFPExt:
		return ir.OpFPExt
	case castPtrToInt:
		return ir.OpPtrToInt
	case castIntToPtr:
		return ir.OpIntToPtr
	case castBitCast:
		return ir.OpBitCast
	}
	return ir.OpInvalid
}

// decodeBinaryOpcode maps a record binop code to the IR opcode, picking
// the float variant when the operand type is floating point.
func decodeBinaryOpcode(v uint64, typ *ir.Type) ir.Opcode {
	fp := typ.IsFPOrFPVector()
	switch v {
	case binOpAdd:
		if fp {
			return ir.OpFAdd
		}
		return ir.OpAdd
	case binOpSub:
		if fp {
			return ir.OpFSub
		}
		return ir.OpSub
	case binOpMul:
		if fp {
			return ir.OpFMul
		}
		return ir.OpMul
	case binOpUDiv:
		return ir.OpUDiv
	case binOpSDiv:
		if fp {
			return ir.OpFDiv
		}
		return ir.OpSDiv
	case binOpURem:
		return ir.OpURem
	case binOpSRem:
		if fp {
			return ir.OpFRem
		}
		return ir.OpSRem
	case binOpShl:
		return ir.OpShl
	case binOpLShr:
		return ir.OpLShr
	case binOpAShr:
		return ir.OpAShr
	case binOpAnd:
		return ir.OpAnd
	case binOpOr:
		return ir.OpOr
	case binOpXor:
		return ir.OpXor
	}
	return ir.OpInvalid
}

// decodeBinopFlags extracts wrap/exact flags for the given opcode.
func decodeBinopFlags(op ir.Opcode, raw uint64) ir.ExprFlags {
	var f ir.ExprFlags
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpShl:
		if raw&(1<<oboNoSignedWrap) != 0 {
			f |= ir.FlagNoSignedWrap
		}
		if raw&(1<<oboNoUnsignedWrap) != 0 {
			f |= ir.FlagNoUnsignedWrap
		}
	case ir.OpSDiv, ir.OpUDiv, ir.OpLShr, ir.OpAShr:
		if raw&(1<<peoExact) != 0 {
			f |= ir.FlagExact
		}
	}
	return f
}

// decodeOrdering decodes an atomic ordering; values beyond the known
// range come back as OrderingNotAtomic.
func decodeOrdering(v uint64) ir.AtomicOrdering {
	switch v {
	case 0:
		return ir.OrderingNotAtomic
	case 1:
		return ir.OrderingUnordered
	case 2:
		return ir.OrderingMonotonic
	case 3:
		return ir.OrderingAcquire
	case 4:
		return ir.OrderingRelease
	case 5:
		return ir.OrderingAcquireRelease
	case 6:
		return ir.OrderingSeqCst
	}
	return ir.OrderingNotAtomic
}

func decodeSyncScope(v uint64) ir.SyncScope {
	if v == 0 {
		return ir.ScopeSingleThread
	}
	return ir.ScopeCrossThread
}

// decodeRMWOp decodes an atomicrmw operation; ok is false for unknown
// values.
func decodeRMWOp(v uint64) (ir.RMWOp, bool) {
	if v > uint64(ir.RMWUMin) {
		return 0, false
	}
	return ir.RMWOp(v), true
}

// decodeLinkage maps the on-disk linkage value to the IR enum.
func decodeLinkage(v uint64) ir.Linkage {
	switch v {
	case 0:
		return ir.ExternalLinkage
	case 1:
		return ir.WeakAnyLinkage
	case 2:
		return ir.AppendingLinkage
	case 3:
		return ir.InternalLinkage
	case 4:
		return ir.LinkOnceAnyLinkage
	case 5:
		return ir.DLLImportLinkage
	case 6:
		return ir.DLLExportLinkage
	case 7:
		return ir.ExternalWeakLinkage
	case 8:
		return ir.CommonLinkage
	case 9:
		return ir.PrivateLinkage
	case 10:
		return ir.WeakODRLinkage
	case 11:
		return ir.LinkOnceODRLinkage
	case 12:
		return ir.AvailableExternallyLinkage
	case 13:
		return ir.LinkerPrivateLinkage
	case 14:
		return ir.LinkerPrivateWeakLinkage
	}
	return ir.ExternalLinkage
}

func decodeVisibility(v uint64) ir.Visibility {
	switch v {
	case 1:
		return ir.HiddenVisibility
	case 2:
		return ir.ProtectedVisibility
	}
	return ir.DefaultVisibility
}

func decodeThreadLocalMode(v uint64) ir.ThreadLocalMode {
	switch v {
	case 1:
		return ir.GeneralDynamicTLS
	case 2:
		return ir.LocalDynamicTLS
	case 3:
		return ir.InitialExecTLS
	case 4:
		return ir.LocalExecTLS
	}
	return ir.NotThreadLocal
}

// decodeSignRotatedValue undoes the sign-in-LSB rotation used for dense
// VBR encoding of signed integers.
func decodeSignRotatedValue(v uint64) uint64 {
	if v&1 == 0 {
		return v >> 1
	}
	if v != 1 {
		return -(v >> 1)
	}
	// "-0" means the minimum signed value.
	return 1 << 63
}

// decodeAlignment turns the log2+1 on-disk alignment into bytes.
func decodeAlignment(v uint64) uint32 {
	return uint32((1 << v) >> 1)
}
