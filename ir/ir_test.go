package ir_test

import (
	"testing"

	"github.com/bcio/bitcode/ir"
)

func TestTypeEqual(t *testing.T) {
	i32 := ir.Int32Type()
	named := ir.OpaqueStructType("pair")
	named.SetBody([]*ir.Type{i32, i32}, false)

	tests := []struct {
		name string
		a, b *ir.Type
		want bool
	}{
		{"same int width", ir.IntType(17), ir.IntType(17), true},
		{"different int width", ir.IntType(17), ir.IntType(18), false},
		{"pointer elem", ir.PointerType(i32, 0), ir.PointerType(i32, 0), true},
		{"pointer addrspace", ir.PointerType(i32, 0), ir.PointerType(i32, 1), false},
		{"array len", ir.ArrayType(i32, 4), ir.ArrayType(i32, 4), true},
		{"array len mismatch", ir.ArrayType(i32, 4), ir.ArrayType(i32, 5), false},
		{"literal struct", ir.StructType([]*ir.Type{i32}, false), ir.StructType([]*ir.Type{i32}, false), true},
		{"packed vs not", ir.StructType([]*ir.Type{i32}, true), ir.StructType([]*ir.Type{i32}, false), false},
		{"named struct identity", named, named, true},
		{"named struct vs equal literal", named, ir.StructType([]*ir.Type{i32, i32}, false), false},
		{
			"function type",
			ir.FunctionType(ir.VoidType(), []*ir.Type{i32}, false),
			ir.FunctionType(ir.VoidType(), []*ir.Type{i32}, false),
			true,
		},
		{
			"variadic mismatch",
			ir.FunctionType(ir.VoidType(), nil, true),
			ir.FunctionType(ir.VoidType(), nil, false),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestOpaqueStructSetBody(t *testing.T) {
	s := ir.OpaqueStructType("node")
	ptr := ir.PointerType(s, 0)
	if !s.Opaque {
		t.Fatal("new named struct should be opaque")
	}

	s.SetBody([]*ir.Type{ir.Int32Type(), ptr}, false)
	if s.Opaque {
		t.Fatal("SetBody should clear the opaque flag")
	}
	if ptr.Elem != s || len(ptr.Elem.Fields) != 2 {
		t.Fatal("existing pointer should observe the body in place")
	}
}

func TestReplaceAllUses(t *testing.T) {
	i32 := ir.Int32Type()
	ph := ir.NewPlaceholder(i32)
	real := ir.NewConstInt(i32, 7)

	agg := ir.NewConstAggregate(ir.ArrayType(i32, 3), []ir.Value{ph, real, ph})
	add := ir.NewInstr(ir.OpAdd, i32, []ir.Value{ph, real})

	if n := ir.NumUses(ph); n != 3 {
		t.Fatalf("placeholder uses = %d, want 3", n)
	}

	ir.ReplaceAllUses(ph, real)

	if n := ir.NumUses(ph); n != 0 {
		t.Fatalf("placeholder uses after replace = %d, want 0", n)
	}
	for i, op := range agg.Operands() {
		if op != ir.Value(real) {
			t.Errorf("aggregate operand %d not rewritten", i)
		}
	}
	for i, op := range add.Operands() {
		if op != ir.Value(real) {
			t.Errorf("instruction operand %d not rewritten", i)
		}
	}
	if n := ir.NumUses(real); n != 5 {
		t.Errorf("replacement uses = %d, want 5", n)
	}
}

func TestConstExprWithOperands(t *testing.T) {
	i32 := ir.Int32Type()
	a := ir.NewConstInt(i32, 1)
	b := ir.NewConstInt(i32, 2)

	e := ir.NewConstExpr(i32, ir.OpAdd, []ir.Value{a, a})
	e.Flags = ir.FlagNoSignedWrap

	n := e.WithOperands([]ir.Value{a, b})
	if n.Op != ir.OpAdd || n.Flags != ir.FlagNoSignedWrap {
		t.Fatal("WithOperands should preserve opcode and flags")
	}
	if n.Operands()[1] != ir.Value(b) {
		t.Fatal("new operand not installed")
	}
	if e.Operands()[1] != ir.Value(a) {
		t.Fatal("original expression should be untouched")
	}
}

func TestGlobalInitializerUseTracking(t *testing.T) {
	i32 := ir.Int32Type()
	g := ir.NewGlobalVariable(i32, 0)
	if g.Type().Kind != ir.KindPointer || g.Type().Elem != i32 {
		t.Fatalf("global type = %s, want i32*", g.Type())
	}
	if g.Initializer() != nil {
		t.Fatal("fresh global should have no initializer")
	}

	c := ir.NewConstInt(i32, 42)
	g.SetInitializer(c)
	if ir.NumUses(c) != 1 {
		t.Fatal("initializer edge should be use-tracked")
	}

	d := ir.NewConstInt(i32, 43)
	ir.ReplaceAllUses(c, d)
	if g.Initializer() != ir.Value(d) {
		t.Fatal("initializer should follow replacement")
	}
}

func TestFunctionDeleteBody(t *testing.T) {
	i32 := ir.Int32Type()
	sig := ir.FunctionType(i32, []*ir.Type{i32}, false)
	fn := ir.NewFunction(sig, 0)
	if len(fn.Params) != 1 || fn.Params[0].Parent != fn {
		t.Fatal("parameters not attached")
	}

	bb := ir.NewBasicBlock(fn, 0)
	fn.Blocks = append(fn.Blocks, bb)
	c := ir.NewConstInt(i32, 1)
	add := ir.NewInstr(ir.OpAdd, i32, []ir.Value{fn.Params[0], c})
	bb.Append(add)
	ret := ir.NewInstr(ir.OpRet, ir.VoidType(), []ir.Value{add})
	bb.Append(ret)

	if bb.Terminator() != ret {
		t.Fatal("terminator not found")
	}

	fn.DeleteBody()
	if !fn.IsDeclaration() {
		t.Fatal("function should be a declaration after DeleteBody")
	}
	if ir.NumUses(c) != 0 || ir.NumUses(fn.Params[0]) != 0 {
		t.Fatal("dropped instructions should release their operand edges")
	}
}
