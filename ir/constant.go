package ir

// Constant is implemented by value kinds whose identity is structural:
// two constants with equal type and contents represent the same value.
type Constant interface {
	Value
	constant()
}

// ConstInt is an integer constant. Wide values (more than 64 bits) carry
// their full two's-complement word list in Words, least significant
// word first; V duplicates word zero.
type ConstInt struct {
	value
	V     uint64
	Words []uint64
}

func NewConstInt(typ *Type, v uint64) *ConstInt {
	return &ConstInt{value: value{typ: typ}, V: v}
}

func NewWideConstInt(typ *Type, words []uint64) *ConstInt {
	c := &ConstInt{value: value{typ: typ}, Words: words}
	if len(words) > 0 {
		c.V = words[0]
	}
	return c
}

func (*ConstInt) constant() {}

// ConstFloat is a floating-point constant holding the raw bit payload
// of the record; the type determines how many words are meaningful.
type ConstFloat struct {
	value
	Bits []uint64
}

func NewConstFloat(typ *Type, bits []uint64) *ConstFloat {
	return &ConstFloat{value: value{typ: typ}, Bits: bits}
}

func (*ConstFloat) constant() {}

// ConstNull is the zero value of its type.
type ConstNull struct{ value }

func NewConstNull(typ *Type) *ConstNull {
	return &ConstNull{value: value{typ: typ}}
}

func (*ConstNull) constant() {}

// Undef is an undefined value of its type.
type Undef struct{ value }

func NewUndef(typ *Type) *Undef {
	return &Undef{value: value{typ: typ}}
}

func (*Undef) constant() {}

// ConstAggregate is a constant array, struct or vector; the element
// list is its operand list so forward-reference placeholders inside it
// are use-tracked.
type ConstAggregate struct {
	user
}

func NewConstAggregate(typ *Type, elems []Value) *ConstAggregate {
	c := &ConstAggregate{}
	c.init(c, typ, elems)
	return c
}

func (*ConstAggregate) constant() {}

// ExprFlags carries the optional wrap/exact flags of constant binary
// expressions and instructions.
type ExprFlags uint8

const (
	FlagNoSignedWrap ExprFlags = 1 << iota
	FlagNoUnsignedWrap
	FlagExact
	FlagInBounds
)

// ConstExpr is a constant expression: an opcode applied to constant
// operands.
type ConstExpr struct {
	user
	Op    Opcode
	Flags ExprFlags
	Pred  uint64 // icmp/fcmp predicate
}

func NewConstExpr(typ *Type, op Opcode, operands []Value) *ConstExpr {
	c := &ConstExpr{Op: op}
	c.init(c, typ, operands)
	return c
}

func (*ConstExpr) constant() {}

// WithOperands returns a copy of the expression with a new operand
// list, preserving opcode, flags and predicate.
func (c *ConstExpr) WithOperands(operands []Value) *ConstExpr {
	n := NewConstExpr(c.typ, c.Op, operands)
	n.Flags = c.Flags
	n.Pred = c.Pred
	return n
}

// Placeholder is a zero-semantic stand-in constant recorded for a
// forward reference. It participates in the graph like any constant and
// is replaced wholesale when its slot resolves.
type Placeholder struct {
	value
}

func NewPlaceholder(typ *Type) *Placeholder {
	return &Placeholder{value: value{typ: typ}}
}

func (*Placeholder) constant() {}

// InlineAsm is a module-level inline assembly constant.
type InlineAsm struct {
	value
	Asm         string
	Constraints string
	SideEffects bool
	AlignStack  bool
}

func NewInlineAsm(typ *Type, asm, constraints string, sideEffects, alignStack bool) *InlineAsm {
	return &InlineAsm{
		value:       value{typ: typ},
		Asm:         asm,
		Constraints: constraints,
		SideEffects: sideEffects,
		AlignStack:  alignStack,
	}
}

func (*InlineAsm) constant() {}

// BlockAddress is the address of a basic block within a function.
type BlockAddress struct {
	value
	Fn    *Function
	Block *BasicBlock
}

func NewBlockAddress(fn *Function, bb *BasicBlock) *BlockAddress {
	return &BlockAddress{value: value{typ: PointerType(Int8Type(), 0)}, Fn: fn, Block: bb}
}

func (*BlockAddress) constant() {}
