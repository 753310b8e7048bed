package ir

import "context"

// Attribute bits, matching the on-disk parameter attribute encoding.
type Attributes uint64

const (
	AttrZExt Attributes = 1 << iota
	AttrSExt
	AttrNoReturn
	AttrInReg
	AttrStructRet
	AttrNoUnwind
	AttrNoAlias
	AttrByVal
	AttrNest
	AttrReadNone
	AttrReadOnly
	AttrNoInline
	AttrAlwaysInline
	AttrOptimizeForSize
	AttrStackProtect
	AttrStackProtectReq
)

// AttrAlignment extracts the parameter alignment encoded in bits 16-31
// of the raw attribute word, 0 if none.
func AttrAlignment(raw uint64) uint32 {
	return uint32((raw >> 16) & 0xffff)
}

// ParamAttr pairs an argument position with its attribute word. Index 0
// is the return value; ^uint64(0) is the function itself.
type ParamAttr struct {
	Index uint64
	Attrs uint64
}

// AttributeSet is one entry of the module's attribute table.
type AttributeSet struct {
	Params []ParamAttr
}

// Materializer loads and unloads deferred function bodies for a module
// decoded lazily.
type Materializer interface {
	// IsMaterializable reports whether fn has a deferred body available.
	IsMaterializable(fn *Function) bool
	// IsDematerializable reports whether fn's body can be dropped and
	// later recovered.
	IsDematerializable(fn *Function) bool
	// Materialize decodes fn's deferred body. It is a no-op for
	// functions that are not materializable.
	Materialize(ctx context.Context, fn *Function) error
	// Dematerialize drops fn's body, keeping its deferred position.
	Dematerialize(fn *Function)
	// MaterializeAll decodes every remaining deferred body and releases
	// the underlying stream.
	MaterializeAll(ctx context.Context) error
}

// Module is a decoded bitcode module.
type Module struct {
	TargetTriple string
	DataLayout   string
	ModuleAsm    string

	Globals   []*GlobalVariable
	Funcs     []*Function
	Aliases   []*Alias
	NamedMD   []*NamedMD
	AttrSets  []AttributeSet
	DepLibs   []string
	Sections  []string
	GCNames   []string

	// MDKindNames maps metadata kind IDs to their registered names.
	MDKindNames map[uint32]string

	// Mat is non-nil while the module still has deferred bodies.
	Mat Materializer
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{MDKindNames: make(map[uint32]string)}
}

// NamedMetadata returns the named metadata list, creating it if absent.
func (m *Module) NamedMetadata(name string) *NamedMD {
	for _, md := range m.NamedMD {
		if md.Name == name {
			return md
		}
	}
	md := &NamedMD{Name: name}
	m.NamedMD = append(m.NamedMD, md)
	return md
}

// FuncByName returns the named function, or nil.
func (m *Module) FuncByName(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// RemoveFunc unlinks fn from the module's function list.
func (m *Module) RemoveFunc(fn *Function) {
	for i, f := range m.Funcs {
		if f == fn {
			m.Funcs = append(m.Funcs[:i], m.Funcs[i+1:]...)
			return
		}
	}
}
