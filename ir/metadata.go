package ir

// MDString is an interned metadata string.
type MDString struct {
	value
	Str string
}

func NewMDString(s string) *MDString {
	return &MDString{value: value{typ: MetadataType()}, Str: s}
}

// MDNode is a metadata tuple. Operands may be any value, including
// other metadata and nil. A Temporary node stands in for a node whose
// record has not been decoded yet and is replaced wholesale when it is.
type MDNode struct {
	user
	FnLocal   bool
	Temporary bool
}

// NewMDNode creates a metadata node over the given operands.
func NewMDNode(operands []Value, fnLocal bool) *MDNode {
	n := &MDNode{FnLocal: fnLocal}
	n.init(n, MetadataType(), operands)
	return n
}

// NewTemporaryMDNode creates an empty forward-reference stand-in.
func NewTemporaryMDNode() *MDNode {
	n := &MDNode{Temporary: true}
	n.init(n, MetadataType(), nil)
	return n
}

// NamedMD is a named module-level metadata list.
type NamedMD struct {
	Name     string
	Operands []*MDNode
}
