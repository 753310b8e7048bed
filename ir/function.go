package ir

// CallingConv is the numeric calling convention of a function or call
// site. Values are carried through undecoded.
type CallingConv uint32

const (
	CCC        CallingConv = 0
	FastCC     CallingConv = 8
	ColdCC     CallingConv = 9
	X86StdCall CallingConv = 64
	X86FastCC  CallingConv = 65
)

// Function is a function declaration or definition. Its type is a
// pointer to the signature.
type Function struct {
	value
	Sig        *Type // function type
	Params     []*Argument
	Blocks     []*BasicBlock
	CC         CallingConv
	Linkage    Linkage
	Visibility Visibility
	Attrs      int // attribute-set index, -1 if none
	Align      uint32
	Section    string
	GC         string
	UnnamedAddr bool

	// Proto is true while only the declaration has been seen.
	Proto bool
}

// NewFunction creates an empty declaration for the given signature.
func NewFunction(sig *Type, addrSpace uint32) *Function {
	f := &Function{
		value: value{typ: PointerType(sig, addrSpace)},
		Sig:   sig,
		Attrs: -1,
		Proto: true,
	}
	for i, pt := range sig.Params {
		arg := NewArgument(pt)
		arg.Parent = f
		arg.Index = i
		f.Params = append(f.Params, arg)
	}
	return f
}

// Functions are address constants like globals.
func (*Function) constant() {}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// ReturnType returns the signature's return type.
func (f *Function) ReturnType() *Type { return f.Sig.Return }

// DeleteBody drops the function's blocks and instructions, returning it
// to declaration state. Operand edges out of the dropped instructions
// are unlinked so no stale uses remain on surviving values.
func (f *Function) DeleteBody() {
	for _, bb := range f.Blocks {
		for _, in := range bb.Instrs {
			for i := range in.Operands() {
				in.SetOperand(i, nil)
			}
			in.Parent = nil
		}
		bb.Instrs = nil
		bb.Parent = nil
	}
	f.Blocks = nil
}
