package ir

// Value is any node in the IR graph that can be referenced by index in
// the bitcode value table.
type Value interface {
	Type() *Type
	Name() string
	SetName(string)

	base() *value
}

// User is a Value with operands.
type User interface {
	Value
	Operands() []Value
	SetOperand(i int, v Value)
}

// Use records one operand edge pointing at a value.
type Use struct {
	User  User
	Index int
}

type value struct {
	typ  *Type
	name string
	uses []Use
}

func (v *value) Type() *Type     { return v.typ }
func (v *value) Name() string    { return v.name }
func (v *value) SetName(n string) { v.name = n }
func (v *value) base() *value    { return v }

// Uses returns the operand edges currently pointing at v.
func Uses(v Value) []Use { return v.base().uses }

// NumUses returns how many operand edges point at v.
func NumUses(v Value) int { return len(v.base().uses) }

func addUse(v Value, u User, i int) {
	b := v.base()
	b.uses = append(b.uses, Use{User: u, Index: i})
}

func removeUse(v Value, u User, i int) {
	b := v.base()
	for j := range b.uses {
		if b.uses[j].User == u && b.uses[j].Index == i {
			b.uses = append(b.uses[:j], b.uses[j+1:]...)
			return
		}
	}
}

// user is the shared operand store. self is the outer User; it must be
// set before any operand is assigned.
type user struct {
	value
	self User
	ops  []Value
}

func (u *user) init(self User, typ *Type, ops []Value) {
	u.self = self
	u.typ = typ
	u.ops = make([]Value, len(ops))
	for i, op := range ops {
		u.ops[i] = op
		if op != nil {
			addUse(op, self, i)
		}
	}
}

func (u *user) Operands() []Value { return u.ops }

func (u *user) SetOperand(i int, v Value) {
	if old := u.ops[i]; old != nil {
		removeUse(old, u.self, i)
	}
	u.ops[i] = v
	if v != nil {
		addUse(v, u.self, i)
	}
}

// ReplaceAllUses rewrites every operand edge pointing at old to point at
// new. old's use list is drained in the process.
func ReplaceAllUses(old, new Value) {
	b := old.base()
	for len(b.uses) > 0 {
		u := b.uses[len(b.uses)-1]
		u.User.SetOperand(u.Index, new)
	}
}

// Argument is a function parameter. Placeholders for forward-referenced
// non-constant values are Arguments with a nil Parent, mirroring the
// "guess it is an argument" trick the format allows.
type Argument struct {
	value
	Parent *Function
	Index  int
}

// NewArgument creates a detached argument of the given type.
func NewArgument(typ *Type) *Argument {
	return &Argument{value: value{typ: typ}}
}

// IsPlaceholder reports whether a is a dangling forward-reference stand-in.
func (a *Argument) IsPlaceholder() bool { return a.Parent == nil }
