package ir

// Linkage is the decoded linkage of a global value.
type Linkage byte

const (
	ExternalLinkage Linkage = iota
	WeakAnyLinkage
	AppendingLinkage
	InternalLinkage
	LinkOnceAnyLinkage
	DLLImportLinkage
	DLLExportLinkage
	ExternalWeakLinkage
	CommonLinkage
	PrivateLinkage
	WeakODRLinkage
	LinkOnceODRLinkage
	AvailableExternallyLinkage
	LinkerPrivateLinkage
	LinkerPrivateWeakLinkage
)

// Visibility is the decoded symbol visibility.
type Visibility byte

const (
	DefaultVisibility Visibility = iota
	HiddenVisibility
	ProtectedVisibility
)

// ThreadLocalMode is the decoded thread-local storage model.
type ThreadLocalMode byte

const (
	NotThreadLocal ThreadLocalMode = iota
	GeneralDynamicTLS
	LocalDynamicTLS
	InitialExecTLS
	LocalExecTLS
)

// GlobalVariable is a module-level variable. Its single operand slot is
// the initializer (nil for declarations); keeping it as an operand makes
// forward-referenced initializers use-tracked like any other edge.
type GlobalVariable struct {
	user
	ValueType   *Type // pointee type
	IsConstant  bool
	Linkage     Linkage
	Visibility  Visibility
	ThreadLocal ThreadLocalMode
	Align       uint32 // bytes; 0 means default
	Section     string
	UnnamedAddr bool
}

// NewGlobalVariable creates a global of the given pointee type with no
// initializer.
func NewGlobalVariable(valueType *Type, addrSpace uint32) *GlobalVariable {
	g := &GlobalVariable{ValueType: valueType}
	g.init(g, PointerType(valueType, addrSpace), []Value{nil})
	return g
}

// Globals are address constants: they may appear as operands of
// constant expressions and initializers.
func (*GlobalVariable) constant() {}

// Initializer returns the initializer, or nil.
func (g *GlobalVariable) Initializer() Value { return g.ops[0] }

// SetInitializer sets the initializer operand.
func (g *GlobalVariable) SetInitializer(v Value) { g.SetOperand(0, v) }

// Alias is a module-level alias for another global object. Its single
// operand is the aliasee.
type Alias struct {
	user
	Linkage    Linkage
	Visibility Visibility
}

// NewAlias creates an alias of the given pointer type with no aliasee.
func NewAlias(typ *Type) *Alias {
	a := &Alias{}
	a.init(a, typ, []Value{nil})
	return a
}

func (*Alias) constant() {}

// Aliasee returns the alias target, or nil.
func (a *Alias) Aliasee() Value { return a.ops[0] }

// SetAliasee sets the alias target.
func (a *Alias) SetAliasee(v Value) { a.SetOperand(0, v) }
