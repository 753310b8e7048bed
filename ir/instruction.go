package ir

// Opcode identifies an instruction or constant-expression operation.
type Opcode byte

const (
	OpInvalid Opcode = iota

	// Binary operations.
	OpAdd
	OpFAdd
	OpSub
	OpFSub
	OpMul
	OpFMul
	OpUDiv
	OpSDiv
	OpFDiv
	OpURem
	OpSRem
	OpFRem
	OpShl
	OpLShr
	OpAShr
	OpAnd
	OpOr
	OpXor

	// Casts.
	OpTrunc
	OpZExt
	OpSExt
	OpFPToUI
	OpFPToSI
	OpUIToFP
	OpSIToFP
	OpFPTrunc
	OpFPExt
	OpPtrToInt
	OpIntToPtr
	OpBitCast

	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr
	OpFence
	OpCmpXchg
	OpAtomicRMW

	// Vector and aggregate.
	OpExtractElement
	OpInsertElement
	OpShuffleVector
	OpExtractValue
	OpInsertValue

	// Other.
	OpICmp
	OpFCmp
	OpPHI
	OpSelect
	OpCall
	OpVAArg
	OpLandingPad

	// Terminators.
	OpRet
	OpBr
	OpSwitch
	OpIndirectBr
	OpInvoke
	OpResume
	OpUnreachable
)

// IsTerminator reports whether the opcode ends a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpRet, OpBr, OpSwitch, OpIndirectBr, OpInvoke, OpResume, OpUnreachable:
		return true
	}
	return false
}

// AtomicOrdering is the decoded memory ordering of atomic operations.
type AtomicOrdering byte

const (
	OrderingNotAtomic AtomicOrdering = iota
	OrderingUnordered
	OrderingMonotonic
	OrderingAcquire
	OrderingRelease
	OrderingAcquireRelease
	OrderingSeqCst
)

// SyncScope is the decoded synchronization scope.
type SyncScope byte

const (
	ScopeSingleThread SyncScope = iota
	ScopeCrossThread
)

// RMWOp is the operation of an atomicrmw instruction.
type RMWOp byte

const (
	RMWXchg RMWOp = iota
	RMWAdd
	RMWSub
	RMWAnd
	RMWNand
	RMWOr
	RMWXor
	RMWMax
	RMWMin
	RMWUMax
	RMWUMin
)

// DebugLoc is a source location attached to an instruction.
type DebugLoc struct {
	Line, Col uint32
	Scope     *MDNode
	InlinedAt *MDNode
}

// LandingPadClause is one clause of a landingpad instruction; the clause
// value lives in the instruction's operand list at Index.
type LandingPadClause struct {
	IsFilter bool
	Index    int
}

// Instr is one instruction. Value operands live in the operand list;
// control-flow targets live in Blocks (for phi, Blocks[i] pairs with
// Operands[i]). Only the fields relevant to Op are meaningful.
type Instr struct {
	user
	Op     Opcode
	Blocks []*BasicBlock

	Flags    ExprFlags
	Pred     uint64 // icmp/fcmp predicate
	Indices  []uint32
	Align    uint32
	Volatile bool
	Ordering AtomicOrdering
	Scope    SyncScope
	RMW      RMWOp
	CC       uint32 // call/invoke calling convention
	Attrs    int    // attribute-set index, -1 if none
	TailCall bool
	Cleanup  bool // landingpad
	Clauses  []LandingPadClause

	// Metadata attached to this instruction, by kind ID.
	Metadata map[uint32]*MDNode
	Loc      *DebugLoc

	Parent *BasicBlock
}

// NewInstr creates an instruction producing a value of the given type
// (VoidType for none).
func NewInstr(op Opcode, typ *Type, operands []Value) *Instr {
	in := &Instr{Op: op, Attrs: -1}
	in.init(in, typ, operands)
	return in
}

// AttachMetadata attaches a metadata node under the given kind ID.
func (in *Instr) AttachMetadata(kind uint32, node *MDNode) {
	if in.Metadata == nil {
		in.Metadata = make(map[uint32]*MDNode)
	}
	in.Metadata[kind] = node
}

// BasicBlock is a straight-line run of instructions ending in a
// terminator.
type BasicBlock struct {
	value
	Parent *Function
	Index  int
	Instrs []*Instr
}

// NewBasicBlock creates an empty block attached to fn.
func NewBasicBlock(fn *Function, index int) *BasicBlock {
	return &BasicBlock{value: value{typ: LabelType()}, Parent: fn, Index: index}
}

// Append adds an instruction at the end of the block.
func (b *BasicBlock) Append(in *Instr) {
	in.Parent = b
	b.Instrs = append(b.Instrs, in)
}

// Terminator returns the block's final instruction if it is a
// terminator, else nil.
func (b *BasicBlock) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}
