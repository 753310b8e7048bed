package reader

import (
	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/ir"
)

// valueList is the decoder's index-addressed value table. Slots may be
// filled out of order: a reference to a not-yet-decoded slot gets a
// placeholder that is patched when the real value arrives.
type valueList struct {
	values []ir.Value

	// Constant placeholders awaiting bulk resolution, paired with the
	// slot holding the real value.
	resolveConstants []placeholderRef
}

type placeholderRef struct {
	placeholder *ir.Placeholder
	index       int
}

func (vl *valueList) size() int { return len(vl.values) }

func (vl *valueList) push(v ir.Value) { vl.values = append(vl.values, v) }

func (vl *valueList) grow(n int) {
	for len(vl.values) < n {
		vl.values = append(vl.values, nil)
	}
}

// value returns the slot contents, nil if out of range or unset.
func (vl *valueList) value(idx int) ir.Value {
	if idx < 0 || idx >= len(vl.values) {
		return nil
	}
	return vl.values[idx]
}

// assign installs v at idx. If the slot holds a forward-reference
// placeholder, the placeholder's users are redirected: constant
// placeholders are queued for bulk resolution, non-constant ones are
// rewritten immediately.
func (vl *valueList) assign(v ir.Value, idx int) {
	if idx == len(vl.values) {
		vl.values = append(vl.values, v)
		return
	}
	vl.grow(idx + 1)

	old := vl.values[idx]
	if old == nil {
		vl.values[idx] = v
		return
	}

	if ph, ok := old.(*ir.Placeholder); ok {
		vl.resolveConstants = append(vl.resolveConstants, placeholderRef{ph, idx})
		vl.values[idx] = v
		return
	}

	ir.ReplaceAllUses(old, v)
	vl.values[idx] = v
}

// constantFwdRef returns the constant in slot idx, creating a typed
// placeholder for slots not yet decoded.
func (vl *valueList) constantFwdRef(idx int, typ *ir.Type) (ir.Constant, error) {
	vl.grow(idx + 1)

	if v := vl.values[idx]; v != nil {
		c, ok := v.(ir.Constant)
		if !ok {
			return nil, bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
				Detail("value %d is not a constant", idx).Build()
		}
		if !typ.Equal(v.Type()) {
			return nil, bcerrors.TypeMismatch(bcerrors.PhaseResolve, typ.String(), v.Type().String())
		}
		return c, nil
	}

	ph := ir.NewPlaceholder(typ)
	vl.values[idx] = ph
	return ph, nil
}

// valueFwdRef returns the value in slot idx. For unseen slots a
// detached argument of the given type stands in; a nil type on an
// unseen slot is an invalid reference.
func (vl *valueList) valueFwdRef(idx int, typ *ir.Type) (ir.Value, error) {
	if idx < 0 {
		return nil, bcerrors.Unresolved(bcerrors.PhaseResolve, "value", uint64(idx))
	}
	vl.grow(idx + 1)

	if v := vl.values[idx]; v != nil {
		if typ != nil && !typ.Equal(v.Type()) {
			return nil, bcerrors.TypeMismatch(bcerrors.PhaseResolve, typ.String(), v.Type().String())
		}
		return v, nil
	}

	if typ == nil {
		return nil, bcerrors.Unresolved(bcerrors.PhaseResolve, "value", uint64(idx))
	}
	a := ir.NewArgument(typ)
	vl.values[idx] = a
	return a, nil
}

// resolveConstantForwardRefs patches every queued constant placeholder.
// Constants that use a placeholder are rebuilt once with all of their
// placeholder operands resolved at the same time, so a large aggregate
// full of forward references is reconstructed a single time rather than
// once per element.
func (vl *valueList) resolveConstantForwardRefs() error {
	pending := vl.resolveConstants
	vl.resolveConstants = nil

	slot := make(map[*ir.Placeholder]int, len(pending))
	for _, p := range pending {
		slot[p.placeholder] = p.index
	}

	// Rebuilt constants leave their original behind in the table; the
	// originals are chased to their final form once resolution is done.
	rebuilt := make(map[ir.Value]ir.Value)
	chase := func(v ir.Value) ir.Value {
		for {
			nv, ok := rebuilt[v]
			if !ok {
				return v
			}
			v = nv
		}
	}

	for len(pending) > 0 {
		last := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		realVal := chase(vl.value(last.index))
		if realVal == nil {
			return bcerrors.Unresolved(bcerrors.PhaseResolve, "constant", uint64(last.index))
		}
		ph := last.placeholder

		for ir.NumUses(ph) > 0 {
			use := ir.Uses(ph)[0]
			u := use.User

			// Non-constant users (instructions, global initializers)
			// are updated in place.
			if !isUniquedConstant(u) {
				u.SetOperand(use.Index, realVal)
				continue
			}

			// A constant using the placeholder is rebuilt with every
			// placeholder operand resolved at once.
			ops := u.Operands()
			newOps := make([]ir.Value, len(ops))
			for i, op := range ops {
				p, ok := op.(*ir.Placeholder)
				if !ok {
					newOps[i] = op
					continue
				}
				idx, known := slot[p]
				if !known {
					return bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindUnresolvedRef).
						Detail("placeholder with no pending resolution").Build()
				}
				sibling := chase(vl.value(idx))
				if sibling == nil {
					return bcerrors.Unresolved(bcerrors.PhaseResolve, "constant", uint64(idx))
				}
				newOps[i] = sibling
			}

			var newC ir.Value
			switch c := u.(type) {
			case *ir.ConstAggregate:
				newC = ir.NewConstAggregate(c.Type(), newOps)
			case *ir.ConstExpr:
				newC = c.WithOperands(newOps)
			default:
				return bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
					Detail("unexpected constant user of placeholder").Build()
			}

			ir.ReplaceAllUses(u, newC)
			for i := range ops {
				u.SetOperand(i, nil)
			}
			rebuilt[u] = newC
		}

		ir.ReplaceAllUses(ph, realVal)
	}

	if len(rebuilt) > 0 {
		for i, v := range vl.values {
			if v != nil {
				vl.values[i] = chase(v)
			}
		}
	}
	return nil
}

func isUniquedConstant(u ir.User) bool {
	switch u.(type) {
	case *ir.ConstAggregate, *ir.ConstExpr:
		return true
	}
	return false
}

// shrinkTo trims the table back to n entries.
func (vl *valueList) shrinkTo(n int) {
	if n < len(vl.values) {
		vl.values = vl.values[:n]
	}
}

// mdValueList is the metadata analogue of valueList. Slots are strictly
// append-assigned by the decoder; forward references get temporary
// nodes replaced wholesale when the real node arrives.
type mdValueList struct {
	values []ir.Value
}

func (ml *mdValueList) size() int { return len(ml.values) }

func (ml *mdValueList) grow(n int) {
	for len(ml.values) < n {
		ml.values = append(ml.values, nil)
	}
}

// assign installs v at idx, replacing any temporary stand-in.
func (ml *mdValueList) assign(v ir.Value, idx int) {
	if idx == len(ml.values) {
		ml.values = append(ml.values, v)
		return
	}
	ml.grow(idx + 1)

	old := ml.values[idx]
	if old == nil {
		ml.values[idx] = v
		return
	}
	ir.ReplaceAllUses(old, v)
	ml.values[idx] = v
}

// valueFwdRef returns the metadata value in slot idx, creating a
// temporary node for unseen slots.
func (ml *mdValueList) valueFwdRef(idx int) ir.Value {
	ml.grow(idx + 1)

	if v := ml.values[idx]; v != nil {
		return v
	}
	tmp := ir.NewTemporaryMDNode()
	ml.values[idx] = tmp
	return tmp
}

// nodeFwdRef is valueFwdRef restricted to nodes.
func (ml *mdValueList) nodeFwdRef(idx int) (*ir.MDNode, error) {
	v := ml.valueFwdRef(idx)
	n, ok := v.(*ir.MDNode)
	if !ok {
		return nil, bcerrors.New(bcerrors.PhaseMetadata, bcerrors.KindTypeMismatch).
			Detail("metadata value %d is not a node", idx).Build()
	}
	return n, nil
}

func (ml *mdValueList) shrinkTo(n int) {
	if n < len(ml.values) {
		ml.values = ml.values[:n]
	}
}
