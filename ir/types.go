package ir

import (
	"fmt"
	"strings"
)

// TypeKind discriminates type descriptors.
type TypeKind byte

const (
	KindVoid TypeKind = iota
	KindHalf
	KindFloat
	KindDouble
	KindX86FP80
	KindFP128
	KindPPCFP128
	KindLabel
	KindMetadata
	KindX86MMX
	KindInteger
	KindPointer
	KindArray
	KindVector
	KindFunction
	KindStruct
)

// Type is a tagged-union type descriptor. Only the fields relevant to
// Kind are meaningful.
type Type struct {
	Kind TypeKind

	Bits      uint32 // integer width
	Elem      *Type  // pointer, array, vector element
	AddrSpace uint32 // pointer
	Len       uint64 // array, vector element count

	Return   *Type // function
	Params   []*Type
	Variadic bool

	// Struct fields. A named struct referenced before its body is seen
	// is Opaque; defining the body clears the flag. Anonymous literal
	// structs have Named == false.
	Fields []*Type
	Packed bool
	Named  bool
	Opaque bool
	name   string
}

var (
	voidType     = &Type{Kind: KindVoid}
	halfType     = &Type{Kind: KindHalf}
	floatType    = &Type{Kind: KindFloat}
	doubleType   = &Type{Kind: KindDouble}
	x86FP80Type  = &Type{Kind: KindX86FP80}
	fp128Type    = &Type{Kind: KindFP128}
	ppcFP128Type = &Type{Kind: KindPPCFP128}
	labelType    = &Type{Kind: KindLabel}
	metadataType = &Type{Kind: KindMetadata}
	x86MMXType   = &Type{Kind: KindX86MMX}
	int1Type     = &Type{Kind: KindInteger, Bits: 1}
	int8Type     = &Type{Kind: KindInteger, Bits: 8}
	int32Type    = &Type{Kind: KindInteger, Bits: 32}
)

// Primitive type accessors. The returned descriptors are shared.
func VoidType() *Type     { return voidType }
func HalfType() *Type     { return halfType }
func FloatType() *Type    { return floatType }
func DoubleType() *Type   { return doubleType }
func X86FP80Type() *Type  { return x86FP80Type }
func FP128Type() *Type    { return fp128Type }
func PPCFP128Type() *Type { return ppcFP128Type }
func LabelType() *Type    { return labelType }
func MetadataType() *Type { return metadataType }
func X86MMXType() *Type   { return x86MMXType }
func Int1Type() *Type     { return int1Type }
func Int8Type() *Type     { return int8Type }
func Int32Type() *Type    { return int32Type }

// IntType returns an integer type of the given bit width.
func IntType(bits uint32) *Type {
	switch bits {
	case 1:
		return int1Type
	case 8:
		return int8Type
	case 32:
		return int32Type
	}
	return &Type{Kind: KindInteger, Bits: bits}
}

// PointerType returns a pointer to elem in the given address space.
func PointerType(elem *Type, addrSpace uint32) *Type {
	return &Type{Kind: KindPointer, Elem: elem, AddrSpace: addrSpace}
}

// ArrayType returns an array of n elements of elem.
func ArrayType(elem *Type, n uint64) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n}
}

// VectorType returns a vector of n elements of elem.
func VectorType(elem *Type, n uint64) *Type {
	return &Type{Kind: KindVector, Elem: elem, Len: n}
}

// FunctionType returns a function signature.
func FunctionType(ret *Type, params []*Type, variadic bool) *Type {
	return &Type{Kind: KindFunction, Return: ret, Params: params, Variadic: variadic}
}

// StructType returns an anonymous literal struct.
func StructType(fields []*Type, packed bool) *Type {
	return &Type{Kind: KindStruct, Fields: fields, Packed: packed}
}

// OpaqueStructType returns a named struct with no body yet. The empty
// name is allowed; it stays opaque until SetBody.
func OpaqueStructType(name string) *Type {
	return &Type{Kind: KindStruct, Named: true, Opaque: true, name: name}
}

// StructName returns the name of a named struct, or "".
func (t *Type) StructName() string { return t.name }

// SetStructName names a struct in place.
func (t *Type) SetStructName(name string) { t.name = name }

// SetBody fills in an opaque struct's field list in place. Every
// existing reference to the descriptor observes the body.
func (t *Type) SetBody(fields []*Type, packed bool) {
	t.Fields = fields
	t.Packed = packed
	t.Opaque = false
}

// IsInteger reports whether t is an integer type.
func (t *Type) IsInteger() bool { return t.Kind == KindInteger }

// IsFloatingPoint reports whether t is a scalar floating-point type.
func (t *Type) IsFloatingPoint() bool {
	switch t.Kind {
	case KindHalf, KindFloat, KindDouble, KindX86FP80, KindFP128, KindPPCFP128:
		return true
	}
	return false
}

// IsFPOrFPVector reports whether t is floating point or a vector of it.
func (t *Type) IsFPOrFPVector() bool {
	if t.Kind == KindVector {
		return t.Elem.IsFloatingPoint()
	}
	return t.IsFloatingPoint()
}

// Equal reports structural equality. Named structs are nominal: they
// are equal only to themselves.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindInteger:
		return t.Bits == o.Bits
	case KindPointer:
		return t.AddrSpace == o.AddrSpace && t.Elem.Equal(o.Elem)
	case KindArray, KindVector:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case KindFunction:
		if t.Variadic != o.Variadic || len(t.Params) != len(o.Params) || !t.Return.Equal(o.Return) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if t.Named || o.Named {
			return false // identity compared above
		}
		if t.Packed != o.Packed || len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	}
	return true // same primitive kind
}

// String renders the type in a compact LLVM-like syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindHalf:
		return "half"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindX86FP80:
		return "x86_fp80"
	case KindFP128:
		return "fp128"
	case KindPPCFP128:
		return "ppc_fp128"
	case KindLabel:
		return "label"
	case KindMetadata:
		return "metadata"
	case KindX86MMX:
		return "x86_mmx"
	case KindInteger:
		return fmt.Sprintf("i%d", t.Bits)
	case KindPointer:
		if t.AddrSpace != 0 {
			return fmt.Sprintf("%s addrspace(%d)*", t.Elem, t.AddrSpace)
		}
		return t.Elem.String() + "*"
	case KindArray:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case KindVector:
		return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
	case KindFunction:
		var b strings.Builder
		b.WriteString(t.Return.String())
		b.WriteString(" (")
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		if t.Variadic {
			if len(t.Params) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("...")
		}
		b.WriteString(")")
		return b.String()
	case KindStruct:
		if t.Named {
			if t.name != "" {
				return "%" + t.name
			}
			return "%<anon>"
		}
		var b strings.Builder
		if t.Packed {
			b.WriteString("<")
		}
		b.WriteString("{ ")
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.String())
		}
		b.WriteString(" }")
		if t.Packed {
			b.WriteString(">")
		}
		return b.String()
	}
	return "<unknown>"
}
