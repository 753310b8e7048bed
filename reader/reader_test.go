package reader_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/bitstream"
	"github.com/bcio/bitcode/ir"
	"github.com/bcio/bitcode/reader"
)

// Block and record numbers of the container format, mirrored here so
// tests can assemble streams with the bitstream writer.
const (
	blkModule    = 8
	blkTypeOld   = 10
	blkConstants = 11
	blkFunction  = 12
	blkVST       = 14
	blkMetadata  = 15
	blkTypeNew   = 17

	modVersion    = 1
	modTriple     = 2
	modDataLayout = 3
	modGlobalVar  = 7
	modFunction   = 8

	tyNumEntry    = 1
	tyInteger     = 7
	tyPointer     = 8
	tyMetadata    = 16
	tyArray       = 11
	tyStructName  = 19
	tyStructNamed = 20
	tyFunction    = 21

	cstSetType   = 1
	cstInteger   = 4
	cstAggregate = 7

	mdString    = 1
	mdName      = 4
	mdNode      = 8
	mdNamedNode = 10

	fnDeclareBlocks = 1
	fnInstRet       = 10
	fnInstBr        = 11

	vstEntry = 1
)

func writeMagic(w *bitstream.Writer) {
	w.Write('B', 8)
	w.Write('C', 8)
	w.Write(0x0, 4)
	w.Write(0xC, 4)
	w.Write(0xE, 4)
	w.Write(0xD, 4)
}

func strFields(prefix []uint64, s string) []uint64 {
	out := append([]uint64{}, prefix...)
	for _, c := range []byte(s) {
		out = append(out, uint64(c))
	}
	return out
}

func mustBytes(t *testing.T, w *bitstream.Writer) []byte {
	t.Helper()
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return data
}

// emptyModule builds magic + MODULE{VERSION 0, TRIPLE, DATALAYOUT}.
func emptyModule(t *testing.T) []byte {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)
	w.WriteUnabbrevRecord(modTriple, strFields(nil, "armv7-none-linux-gnueabi")...)
	w.WriteUnabbrevRecord(modDataLayout, strFields(nil, "e-p:32:32")...)
	if err := w.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	return mustBytes(t, w)
}

func TestDecodeEmptyModule(t *testing.T) {
	m, err := reader.Decode(emptyModule(t), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.TargetTriple != "armv7-none-linux-gnueabi" {
		t.Errorf("TargetTriple = %q", m.TargetTriple)
	}
	if m.DataLayout != "e-p:32:32" {
		t.Errorf("DataLayout = %q", m.DataLayout)
	}
	if len(m.Funcs) != 0 || len(m.Globals) != 0 {
		t.Errorf("unexpected contents: %d funcs, %d globals", len(m.Funcs), len(m.Globals))
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, reader.ErrInvalidMagic},
		{"garbage", []byte("this is not bitcode!"), reader.ErrInvalidMagic},
		{"odd length", []byte{'B', 'C', 0xC0, 0xDE, 0x00, 0x00}, reader.ErrInvalidLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reader.Decode(tt.data, reader.Options{}); !errors.Is(err, tt.want) {
				t.Errorf("Decode = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeVersionUnsupported(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if _, err := reader.Decode(mustBytes(t, w), reader.Options{}); err == nil {
		t.Fatal("expected error for unsupported module version")
	}
}

func TestWrapperHeader(t *testing.T) {
	raw := emptyModule(t)

	wrap := func(off, size uint32) []byte {
		buf := make([]byte, 20, 20+len(raw))
		binary.LittleEndian.PutUint32(buf[0:], 0x0B17C0DE)
		binary.LittleEndian.PutUint32(buf[8:], off)
		binary.LittleEndian.PutUint32(buf[12:], size)
		return append(buf, raw...)
	}

	if _, err := reader.Decode(wrap(20, uint32(len(raw))), reader.Options{}); err != nil {
		t.Errorf("wrapped decode: %v", err)
	}
	if _, err := reader.Decode(wrap(20, uint32(len(raw))+64), reader.Options{}); !errors.Is(err, reader.ErrBadWrapper) {
		t.Errorf("oversized wrapper = %v, want ErrBadWrapper", err)
	}
	if _, err := reader.Decode([]byte{0xDE, 0xC0, 0x17, 0x0B, 0, 0}, reader.Options{}); !errors.Is(err, reader.ErrBadWrapper) {
		t.Errorf("short wrapper = %v, want ErrBadWrapper", err)
	}
}

func TestArchivePadding(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	// Trailing newline padding as written by archive tools.
	w.Write(2, 2)
	w.Write(2, 6)
	w.Write(0x0a0a0a, 24)

	if _, err := reader.Decode(mustBytes(t, w), reader.Options{}); err != nil {
		t.Fatalf("Decode with padding: %v", err)
	}
}

func TestTypeTableForwardRef(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	// %box is referenced by the pointer entry before it is defined.
	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 3)
	w.WriteUnabbrevRecord(tyInteger, 8)
	w.WriteUnabbrevRecord(tyPointer, 2, 0)
	w.WriteUnabbrevRecord(tyStructName, strFields(nil, "box")...)
	w.WriteUnabbrevRecord(tyStructNamed, 0, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.WriteUnabbrevRecord(modGlobalVar, 1, 0, 0, 0, 0, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Globals) != 1 {
		t.Fatalf("got %d globals, want 1", len(m.Globals))
	}
	vt := m.Globals[0].ValueType
	if vt.Kind != ir.KindStruct || vt.StructName() != "box" {
		t.Fatalf("global value type = %s, want %%box", vt)
	}
	if vt.Opaque || len(vt.Fields) != 1 || vt.Fields[0].Bits != 8 {
		t.Errorf("struct body not patched: %s", vt)
	}
}

func TestOldTypeTableFixpoint(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	// Entry 0 points at entry 1, which only fills on the first pass;
	// the table needs a second scan to complete.
	w.StartBlock(blkTypeOld, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 2)
	w.WriteUnabbrevRecord(tyPointer, 1)
	w.WriteUnabbrevRecord(tyInteger, 8)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.WriteUnabbrevRecord(modGlobalVar, 0, 0, 0, 0, 0, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if vt := m.Globals[0].ValueType; vt.Bits != 8 {
		t.Errorf("global value type = %s, want i8", vt)
	}
}

func TestOldTypeTableNoProgress(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	// A pointer to itself can never resolve.
	w.StartBlock(blkTypeOld, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 1)
	w.WriteUnabbrevRecord(tyPointer, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	if _, err := reader.Decode(mustBytes(t, w), reader.Options{}); err == nil {
		t.Fatal("expected error for unresolvable legacy type table")
	}
}

func TestGlobalInitializerAcrossConstantBlocks(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 2)
	w.WriteUnabbrevRecord(tyInteger, 32)
	w.WriteUnabbrevRecord(tyPointer, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	// The initializer (value 2) only exists after the second constants
	// block; the first resolution pass must keep it queued.
	w.WriteUnabbrevRecord(modGlobalVar, 1, 0, 3, 0, 0, 0)

	w.StartBlock(blkConstants, 3)
	w.WriteUnabbrevRecord(cstSetType, 0)
	w.WriteUnabbrevRecord(cstInteger, 42<<1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	w.StartBlock(blkConstants, 3)
	w.WriteUnabbrevRecord(cstSetType, 0)
	w.WriteUnabbrevRecord(cstInteger, 7<<1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	init, ok := m.Globals[0].Initializer().(*ir.ConstInt)
	if !ok {
		t.Fatalf("initializer = %T, want *ir.ConstInt", m.Globals[0].Initializer())
	}
	if init.V != 7 {
		t.Errorf("initializer = %d, want 7", init.V)
	}
}

func TestAggregateForwardRefsResolved(t *testing.T) {
	const n = 500

	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 3)
	w.WriteUnabbrevRecord(tyInteger, 32)
	w.WriteUnabbrevRecord(tyArray, n, 0)
	w.WriteUnabbrevRecord(tyPointer, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.WriteUnabbrevRecord(modGlobalVar, 2, 0, 2, 0, 0, 0)

	// The aggregate comes first; all of its elements are forward
	// references resolved in one bulk pass at end of block.
	w.StartBlock(blkConstants, 3)
	w.WriteUnabbrevRecord(cstSetType, 1)
	elems := make([]uint64, n)
	for i := range elems {
		elems[i] = uint64(2 + i)
	}
	w.WriteUnabbrevRecord(cstAggregate, elems...)
	w.WriteUnabbrevRecord(cstSetType, 0)
	for i := 0; i < n; i++ {
		w.WriteUnabbrevRecord(cstInteger, uint64(i)<<1)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	agg, ok := m.Globals[0].Initializer().(*ir.ConstAggregate)
	if !ok {
		t.Fatalf("initializer = %T, want *ir.ConstAggregate", m.Globals[0].Initializer())
	}
	if len(agg.Operands()) != n {
		t.Fatalf("got %d elements, want %d", len(agg.Operands()), n)
	}
	for i, op := range agg.Operands() {
		ci, ok := op.(*ir.ConstInt)
		if !ok {
			t.Fatalf("element %d = %T, want *ir.ConstInt", i, op)
		}
		if ci.V != uint64(i) {
			t.Errorf("element %d = %d", i, ci.V)
		}
	}
}

// functionModule builds a module with one i32 () function named main
// whose body returns the constant 42.
func functionModule(t *testing.T) []byte {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 3)
	w.WriteUnabbrevRecord(tyInteger, 32)
	w.WriteUnabbrevRecord(tyFunction, 0, 0)
	w.WriteUnabbrevRecord(tyPointer, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.WriteUnabbrevRecord(modFunction, 2, 0, 0, 0, 0, 0, 0, 0)

	w.StartBlock(blkConstants, 3)
	w.WriteUnabbrevRecord(cstSetType, 0)
	w.WriteUnabbrevRecord(cstInteger, 42<<1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.StartBlock(blkVST, 3)
	w.WriteUnabbrevRecord(vstEntry, strFields([]uint64{0}, "main")...)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.StartBlock(blkFunction, 3)
	w.WriteUnabbrevRecord(fnDeclareBlocks, 1)
	w.WriteUnabbrevRecord(fnInstRet, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	return mustBytes(t, w)
}

// functionModuleBody is functionModule with a caller-supplied body:
// each record is a code followed by its fields.
func functionModuleBody(t *testing.T, body ...[]uint64) []byte {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 3)
	w.WriteUnabbrevRecord(tyInteger, 32)
	w.WriteUnabbrevRecord(tyFunction, 0, 0)
	w.WriteUnabbrevRecord(tyPointer, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.WriteUnabbrevRecord(modFunction, 2, 0, 0, 0, 0, 0, 0, 0)

	w.StartBlock(blkConstants, 3)
	w.WriteUnabbrevRecord(cstSetType, 0)
	w.WriteUnabbrevRecord(cstInteger, 42<<1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.StartBlock(blkVST, 3)
	w.WriteUnabbrevRecord(vstEntry, strFields([]uint64{0}, "main")...)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.StartBlock(blkFunction, 3)
	for _, rec := range body {
		w.WriteUnabbrevRecord(rec[0], rec[1:]...)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	return mustBytes(t, w)
}

func checkMainBody(t *testing.T, fn *ir.Function) {
	t.Helper()
	if len(fn.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(fn.Blocks))
	}
	term := fn.Blocks[0].Terminator()
	if term == nil || term.Op != ir.OpRet {
		t.Fatalf("terminator = %v", term)
	}
	rv, ok := term.Operands()[0].(*ir.ConstInt)
	if !ok || rv.V != 42 {
		t.Fatalf("return value = %v, want i32 42", term.Operands()[0])
	}
}

func TestDecodeFunctionBody(t *testing.T) {
	m, err := reader.Decode(functionModule(t), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fn := m.FuncByName("main")
	if fn == nil {
		t.Fatal("function main not found")
	}
	checkMainBody(t, fn)
}

func TestLazyMaterializeRoundTrip(t *testing.T) {
	m, err := reader.DecodeLazy(functionModule(t), reader.Options{Lazy: true})
	if err != nil {
		t.Fatalf("DecodeLazy: %v", err)
	}
	fn := m.FuncByName("main")
	if fn == nil {
		t.Fatal("function main not found")
	}
	if !fn.IsDeclaration() {
		t.Fatal("body decoded eagerly under lazy mode")
	}
	if !m.Mat.IsMaterializable(fn) {
		t.Fatal("function not materializable")
	}

	ctx := context.Background()
	if err := m.Mat.Materialize(ctx, fn); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	checkMainBody(t, fn)

	if !m.Mat.IsDematerializable(fn) {
		t.Fatal("function not dematerializable")
	}
	m.Mat.Dematerialize(fn)
	if !fn.IsDeclaration() {
		t.Fatal("body survived Dematerialize")
	}

	// The deferred offset must survive a dematerialize cycle.
	if err := m.Mat.Materialize(ctx, fn); err != nil {
		t.Fatalf("re-Materialize: %v", err)
	}
	checkMainBody(t, fn)

	if err := m.Mat.MaterializeAll(ctx); err != nil {
		t.Fatalf("MaterializeAll: %v", err)
	}
}

func TestLazyMaterializeAll(t *testing.T) {
	m, err := reader.DecodeLazy(functionModule(t), reader.Options{Lazy: true})
	if err != nil {
		t.Fatalf("DecodeLazy: %v", err)
	}
	if err := m.Mat.MaterializeAll(context.Background()); err != nil {
		t.Fatalf("MaterializeAll: %v", err)
	}
	checkMainBody(t, m.FuncByName("main"))
}

func TestNamedMetadata(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 1)
	w.WriteUnabbrevRecord(tyMetadata)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.StartBlock(blkMetadata, 3)
	w.WriteUnabbrevRecord(mdString, strFields(nil, "hello")...)
	w.WriteUnabbrevRecord(mdNode, 0, 0)
	w.WriteUnabbrevRecord(mdName, strFields(nil, "foo")...)
	w.WriteUnabbrevRecord(mdNamedNode, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.NamedMD) != 1 || m.NamedMD[0].Name != "foo" {
		t.Fatalf("named metadata = %+v", m.NamedMD)
	}
	node := m.NamedMD[0].Operands[0]
	s, ok := node.Operands()[0].(*ir.MDString)
	if !ok || s.Str != "hello" {
		t.Fatalf("node operand = %v, want !\"hello\"", node.Operands()[0])
	}
}

func TestUnknownBlocksSkipped(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)

	// An unknown top-level block full of records must be stepped over
	// wholesale.
	w.StartBlock(40, 4)
	w.WriteUnabbrevRecord(9, 1, 2, 3)
	w.WriteUnabbrevRecord(10, 4, 5, 6, 7, 8)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	// Same inside the module block.
	w.StartBlock(42, 5)
	w.WriteUnabbrevRecord(3, 0xdead, 0xbeef)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	w.WriteUnabbrevRecord(modTriple, strFields(nil, "armv7-none-linux-gnueabi")...)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.TargetTriple != "armv7-none-linux-gnueabi" {
		t.Errorf("TargetTriple = %q", m.TargetTriple)
	}
}

func TestMetadataNodeForwardRef(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 1)
	w.WriteUnabbrevRecord(tyMetadata)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	// !0 = !{!1} references !1 before its record; !0 must still land
	// at index 0 and the stand-in for !1 must be replaced.
	w.StartBlock(blkMetadata, 3)
	w.WriteUnabbrevRecord(mdNode, 0, 1)
	w.WriteUnabbrevRecord(mdString, strFields(nil, "target")...)
	w.WriteUnabbrevRecord(mdName, strFields(nil, "root")...)
	w.WriteUnabbrevRecord(mdNamedNode, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.Decode(mustBytes(t, w), reader.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.NamedMD) != 1 || len(m.NamedMD[0].Operands) != 1 {
		t.Fatalf("named metadata = %+v", m.NamedMD)
	}
	node := m.NamedMD[0].Operands[0]
	if node.Temporary {
		t.Fatal("named operand left as a forward-reference stand-in")
	}
	s, ok := node.Operands()[0].(*ir.MDString)
	if !ok || s.Str != "target" {
		t.Fatalf("node operand = %v, want !\"target\"", node.Operands()[0])
	}
}

func TestTypeCountTooLargeRejected(t *testing.T) {
	build := func(blockID uint64) []byte {
		w := bitstream.NewWriter()
		writeMagic(w)
		w.StartBlock(blkModule, 3)
		w.WriteUnabbrevRecord(modVersion, 0)
		w.StartBlock(blockID, 3)
		w.WriteUnabbrevRecord(tyNumEntry, 1<<62)
		if err := w.EndBlock(); err != nil {
			t.Fatal(err)
		}
		if err := w.EndBlock(); err != nil {
			t.Fatal(err)
		}
		return mustBytes(t, w)
	}

	for _, blockID := range []uint64{blkTypeNew, blkTypeOld} {
		if _, err := reader.Decode(build(blockID), reader.Options{}); err == nil {
			t.Errorf("block %d: expected error for absurd entry count", blockID)
		}
	}
}

func TestBlockCountTooLargeRejected(t *testing.T) {
	data := functionModuleBody(t, []uint64{fnDeclareBlocks, 1 << 62})
	if _, err := reader.Decode(data, reader.Options{}); err == nil {
		t.Fatal("expected error for absurd block count")
	}
}

func TestDuplicateNumEntryRejected(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)
	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 1)
	w.WriteUnabbrevRecord(tyNumEntry, 1)
	w.WriteUnabbrevRecord(tyInteger, 32)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	_, err := reader.Decode(mustBytes(t, w), reader.Options{})
	var bcErr *bcerrors.Error
	if !errors.As(err, &bcErr) || bcErr.Kind != bcerrors.KindDuplicate {
		t.Fatalf("Decode = %v, want duplicate-definition error", err)
	}
}

func TestFailedBodyLeavesDeclaration(t *testing.T) {
	// Record 77 is no instruction; the body must fail without leaving a
	// half-decoded definition behind.
	data := functionModuleBody(t,
		[]uint64{fnDeclareBlocks, 2},
		[]uint64{77, 1, 2, 3},
	)

	m, err := reader.DecodeLazy(data, reader.Options{Lazy: true})
	if err != nil {
		t.Fatalf("DecodeLazy: %v", err)
	}
	fn := m.FuncByName("main")
	if fn == nil {
		t.Fatal("function main not found")
	}

	ctx := context.Background()
	if err := m.Mat.Materialize(ctx, fn); err == nil {
		t.Fatal("expected error from invalid body")
	}
	if !fn.IsDeclaration() {
		t.Fatal("partial body kept after failed materialize")
	}
	if !m.Mat.IsMaterializable(fn) {
		t.Fatal("deferred offset lost after failed materialize")
	}
	if err := m.Mat.Materialize(ctx, fn); err == nil {
		t.Fatal("second materialize of invalid body succeeded")
	}
}

func TestMaterializePlainDeclaration(t *testing.T) {
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(blkModule, 3)
	w.WriteUnabbrevRecord(modVersion, 0)

	w.StartBlock(blkTypeNew, 3)
	w.WriteUnabbrevRecord(tyNumEntry, 3)
	w.WriteUnabbrevRecord(tyInteger, 32)
	w.WriteUnabbrevRecord(tyFunction, 0, 0)
	w.WriteUnabbrevRecord(tyPointer, 1)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	// isproto set: an external declaration with no body anywhere.
	w.WriteUnabbrevRecord(modFunction, 2, 0, 1, 0, 0, 0, 0, 0)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}

	m, err := reader.DecodeLazy(mustBytes(t, w), reader.Options{Lazy: true})
	if err != nil {
		t.Fatalf("DecodeLazy: %v", err)
	}
	fn := m.Funcs[0]
	if m.Mat.IsMaterializable(fn) {
		t.Fatal("declaration reported materializable")
	}
	if err := m.Mat.Materialize(context.Background(), fn); err != nil {
		t.Fatalf("Materialize on declaration: %v", err)
	}
	if !fn.IsDeclaration() {
		t.Fatal("declaration grew a body")
	}
}

func TestBranchCondTypeMismatch(t *testing.T) {
	// Value 0 is the i32 constant; a conditional branch needs i1.
	data := functionModuleBody(t,
		[]uint64{fnDeclareBlocks, 2},
		[]uint64{fnInstBr, 0, 1, 0},
	)

	_, err := reader.Decode(data, reader.Options{})
	var bcErr *bcerrors.Error
	if !errors.As(err, &bcErr) || bcErr.Kind != bcerrors.KindTypeMismatch {
		t.Fatalf("Decode = %v, want type-mismatch error", err)
	}
}

func TestReadTargetTriple(t *testing.T) {
	triple, err := reader.ReadTargetTriple(emptyModule(t))
	if err != nil {
		t.Fatalf("ReadTargetTriple: %v", err)
	}
	if triple != "armv7-none-linux-gnueabi" {
		t.Errorf("triple = %q", triple)
	}

	// A stream without a module block has no triple.
	w := bitstream.NewWriter()
	writeMagic(w)
	w.StartBlock(77, 3)
	if err := w.EndBlock(); err != nil {
		t.Fatal(err)
	}
	triple, err = reader.ReadTargetTriple(mustBytes(t, w))
	if err != nil {
		t.Fatalf("ReadTargetTriple: %v", err)
	}
	if triple != "" {
		t.Errorf("triple = %q, want empty", triple)
	}
}
