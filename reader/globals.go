package reader

import (
	"strings"

	"fortio.org/safecast"
	"go.uber.org/zap"

	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/ir"
)

// parseGlobalVarRecord decodes a GLOBALVAR record:
// [pointer type, isconst, initid, linkage, alignment, section,
//  visibility, threadlocal, unnamed_addr]
func (mr *moduleReader) parseGlobalVarRecord(rec []uint64) error {
	if len(rec) < 6 {
		return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", moduleCodeGlobalVar, "record too short")
	}
	typ := mr.typeByID(rec[0])
	if typ == nil {
		return bcerrors.OutOfRange(bcerrors.PhaseModule, "type", rec[0], uint64(len(mr.typeList)))
	}
	if typ.Kind != ir.KindPointer {
		return bcerrors.TypeMismatch(bcerrors.PhaseModule, "pointer", typ.String())
	}

	g := ir.NewGlobalVariable(typ.Elem, typ.AddrSpace)
	g.IsConstant = rec[1] != 0
	g.Linkage = decodeLinkage(rec[3])
	g.Align = decodeAlignment(rec[4])
	if rec[5] != 0 {
		if rec[5]-1 >= uint64(len(mr.sectionTable)) {
			return bcerrors.OutOfRange(bcerrors.PhaseModule, "section", rec[5]-1, uint64(len(mr.sectionTable)))
		}
		g.Section = mr.sectionTable[rec[5]-1]
	}
	if len(rec) > 6 {
		g.Visibility = decodeVisibility(rec[6])
	}
	if len(rec) > 7 {
		g.ThreadLocal = decodeThreadLocalMode(rec[7])
	}
	if len(rec) > 8 {
		g.UnnamedAddr = rec[8] != 0
	}

	mr.m.Globals = append(mr.m.Globals, g)
	mr.vl.push(g)

	// Initializer IDs are biased by one; zero means no initializer.
	if rec[2] != 0 {
		initID, err := safecast.Conv[int](rec[2] - 1)
		if err != nil {
			return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", moduleCodeGlobalVar, "initializer id overflow")
		}
		mr.globalInits = append(mr.globalInits, initRef{global: g, valID: initID})
	}
	return nil
}

// parseFunctionRecord decodes a FUNCTION record:
// [type, callingconv, isproto, linkage, paramattr, alignment, section,
//  visibility, gc, unnamed_addr]
func (mr *moduleReader) parseFunctionRecord(rec []uint64) error {
	if len(rec) < 8 {
		return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", moduleCodeFunction, "record too short")
	}
	typ := mr.typeByID(rec[0])
	if typ == nil {
		return bcerrors.OutOfRange(bcerrors.PhaseModule, "type", rec[0], uint64(len(mr.typeList)))
	}
	if typ.Kind != ir.KindPointer || typ.Elem.Kind != ir.KindFunction {
		return bcerrors.TypeMismatch(bcerrors.PhaseModule, "function pointer", typ.String())
	}

	fn := ir.NewFunction(typ.Elem, typ.AddrSpace)
	cc, err := safecast.Conv[uint32](rec[1])
	if err != nil {
		return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", moduleCodeFunction, "calling convention overflow")
	}
	fn.CC = ir.CallingConv(cc)
	isProto := rec[2] != 0
	fn.Linkage = decodeLinkage(rec[3])
	fn.Attrs = mr.attributeSet(rec[4])
	fn.Align = decodeAlignment(rec[5])
	if rec[6] != 0 {
		if rec[6]-1 >= uint64(len(mr.sectionTable)) {
			return bcerrors.OutOfRange(bcerrors.PhaseModule, "section", rec[6]-1, uint64(len(mr.sectionTable)))
		}
		fn.Section = mr.sectionTable[rec[6]-1]
	}
	fn.Visibility = decodeVisibility(rec[7])
	if len(rec) > 8 && rec[8] != 0 {
		if rec[8]-1 >= uint64(len(mr.gcTable)) {
			return bcerrors.OutOfRange(bcerrors.PhaseModule, "gc", rec[8]-1, uint64(len(mr.gcTable)))
		}
		fn.GC = mr.gcTable[rec[8]-1]
	}
	if len(rec) > 9 {
		fn.UnnamedAddr = rec[9] != 0
	}

	mr.m.Funcs = append(mr.m.Funcs, fn)
	mr.vl.push(fn)

	// Definitions get their bodies matched up in file order later.
	if !isProto {
		fn.Proto = false
		mr.funcsWithBodies = append(mr.funcsWithBodies, fn)
	}
	return nil
}

// parseAliasRecord decodes an ALIAS record:
// [alias type, aliasee val#, linkage, visibility?]
func (mr *moduleReader) parseAliasRecord(rec []uint64) error {
	if len(rec) < 3 {
		return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", moduleCodeAlias, "record too short")
	}
	typ := mr.typeByID(rec[0])
	if typ == nil {
		return bcerrors.OutOfRange(bcerrors.PhaseModule, "type", rec[0], uint64(len(mr.typeList)))
	}
	if typ.Kind != ir.KindPointer {
		return bcerrors.TypeMismatch(bcerrors.PhaseModule, "pointer", typ.String())
	}

	a := ir.NewAlias(typ)
	a.Linkage = decodeLinkage(rec[2])
	if len(rec) > 3 {
		a.Visibility = decodeVisibility(rec[3])
	}
	mr.m.Aliases = append(mr.m.Aliases, a)
	mr.vl.push(a)

	valID, err := safecast.Conv[int](rec[1])
	if err != nil {
		return bcerrors.InvalidRecord(bcerrors.PhaseModule, "MODULE", moduleCodeAlias, "aliasee id overflow")
	}
	mr.aliasInits = append(mr.aliasInits, initRef{global: a, valID: valID})
	return nil
}

// resolveGlobalAndAliasInits retries the pending initializer and
// aliasee references. Entries whose value slot is still beyond the
// table stay queued for a later constants block.
func (mr *moduleReader) resolveGlobalAndAliasInits() error {
	globalWork := mr.globalInits
	aliasWork := mr.aliasInits
	mr.globalInits = nil
	mr.aliasInits = nil

	for _, w := range globalWork {
		if w.valID >= mr.vl.size() {
			mr.globalInits = append(mr.globalInits, w)
			continue
		}
		c, ok := mr.vl.value(w.valID).(ir.Constant)
		if !ok {
			return bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
				Detail("global initializer %d is not a constant", w.valID).Build()
		}
		w.global.(*ir.GlobalVariable).SetInitializer(c)
	}

	// Aliasees are first collected, then chased through alias chains
	// and pointer-identity expressions down to a global object. Old
	// emitters could write an alias whose target is another alias.
	aliasee := make(map[*ir.Alias]ir.Constant)
	for _, w := range aliasWork {
		if w.valID >= mr.vl.size() {
			mr.aliasInits = append(mr.aliasInits, w)
			continue
		}
		c, ok := mr.vl.value(w.valID).(ir.Constant)
		if !ok {
			return bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
				Detail("aliasee %d is not a constant", w.valID).Build()
		}
		aliasee[w.global.(*ir.Alias)] = c
	}
	for a, c := range aliasee {
		obj, err := globalObjectInExpr(aliasee, c)
		if err != nil {
			return err
		}
		a.SetAliasee(obj)
	}
	return nil
}

// globalObjectInExpr walks bitcasts, all-zero GEPs and alias chains
// down to the underlying global variable or function.
func globalObjectInExpr(aliasee map[*ir.Alias]ir.Constant, c ir.Constant) (ir.Value, error) {
	switch v := c.(type) {
	case *ir.GlobalVariable:
		return v, nil
	case *ir.Function:
		return v, nil
	case *ir.Alias:
		next, ok := aliasee[v]
		if !ok {
			return nil, bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindUnresolvedRef).
				Detail("alias chain through unresolved alias").Build()
		}
		return globalObjectInExpr(aliasee, next)
	case *ir.ConstExpr:
		switch v.Op {
		case ir.OpBitCast:
		case ir.OpGetElementPtr:
			for _, idx := range v.Operands()[1:] {
				ci, ok := idx.(*ir.ConstInt)
				if !ok || ci.V != 0 {
					return nil, bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
						Detail("aliasee gep with non-zero index").Build()
				}
			}
		default:
			return nil, bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
				Detail("aliasee expression is not pointer identity").Build()
		}
		inner, ok := v.Operands()[0].(ir.Constant)
		if !ok {
			return nil, bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
				Detail("aliasee expression over non-constant").Build()
		}
		return globalObjectInExpr(aliasee, inner)
	}
	return nil, bcerrors.New(bcerrors.PhaseResolve, bcerrors.KindTypeMismatch).
		Detail("aliasee is not a global object").Build()
}

// globalCleanup runs once all module-level records are in: every
// pending initializer must resolve now, and old intrinsic declarations
// are matched with their upgraded replacements.
func (mr *moduleReader) globalCleanup() error {
	if err := mr.resolveGlobalAndAliasInits(); err != nil {
		return err
	}
	if len(mr.globalInits) > 0 || len(mr.aliasInits) > 0 {
		return bcerrors.Malformed(bcerrors.PhaseModule, "MODULE", "unresolved global initializers at end of module")
	}
	for _, fn := range mr.m.Funcs {
		if newFn := mr.upgradeIntrinsic(fn); newFn != nil {
			mr.upgraded[fn] = newFn
		}
	}
	mr.globalInits = nil
	mr.aliasInits = nil
	return nil
}

// Renamed intrinsics: pre-overload names carry an explicit width
// suffix that newer tooling folds into the pointer operand type.
var intrinsicRenames = map[string]string{
	"llvm.memcpy.i32":  "llvm.memcpy.p0i8.p0i8.i32",
	"llvm.memcpy.i64":  "llvm.memcpy.p0i8.p0i8.i64",
	"llvm.memmove.i32": "llvm.memmove.p0i8.p0i8.i32",
	"llvm.memmove.i64": "llvm.memmove.p0i8.p0i8.i64",
	"llvm.memset.i32":  "llvm.memset.p0i8.i32",
	"llvm.memset.i64":  "llvm.memset.p0i8.i64",
}

// upgradeIntrinsic returns the replacement declaration for an outdated
// intrinsic, or nil when the function needs no upgrade.
func (mr *moduleReader) upgradeIntrinsic(fn *ir.Function) *ir.Function {
	name := fn.Name()
	if !strings.HasPrefix(name, "llvm.") {
		return nil
	}
	newName, ok := intrinsicRenames[name]
	if !ok {
		return nil
	}
	if existing := mr.m.FuncByName(newName); existing != nil {
		return existing
	}
	newFn := ir.NewFunction(fn.Sig, fn.Type().AddrSpace)
	newFn.SetName(newName)
	newFn.Linkage = fn.Linkage
	mr.m.Funcs = append(mr.m.Funcs, newFn)
	mr.log.Debug("upgraded intrinsic declaration",
		zap.String("old", name), zap.String("new", newName))
	return newFn
}

// applyIntrinsicUpgrades redirects calls of upgraded intrinsics inside
// fn to the replacement declarations.
func (mr *moduleReader) applyIntrinsicUpgrades(fn *ir.Function) {
	if len(mr.upgraded) == 0 {
		return
	}
	for _, bb := range fn.Blocks {
		for _, in := range bb.Instrs {
			if in.Op != ir.OpCall {
				continue
			}
			ops := in.Operands()
			callee, ok := ops[len(ops)-1].(*ir.Function)
			if !ok {
				continue
			}
			if newFn, found := mr.upgraded[callee]; found && newFn != callee {
				in.SetOperand(len(ops)-1, newFn)
			}
		}
	}
}

// finishIntrinsicUpgrades removes fully-replaced old declarations once
// every body is material.
func (mr *moduleReader) finishIntrinsicUpgrades() {
	for old, newFn := range mr.upgraded {
		if old == newFn {
			continue
		}
		if ir.NumUses(old) > 0 {
			ir.ReplaceAllUses(old, newFn)
		}
		mr.m.RemoveFunc(old)
	}
	mr.upgraded = make(map[*ir.Function]*ir.Function)
}
