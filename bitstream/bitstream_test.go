package bitstream_test

import (
	"errors"
	"testing"

	"github.com/bcio/bitcode/bitstream"
)

func mustBytes(t *testing.T, w *bitstream.Writer) []byte {
	t.Helper()
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return data
}

func TestReadWriteBits(t *testing.T) {
	w := bitstream.NewWriter()
	w.Write(0x5, 3)
	w.Write(0xABCD, 16)
	w.Write(1, 1)
	w.WriteVBR(1234567, 6)
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	if v, err := r.Read(3); err != nil || v != 0x5 {
		t.Fatalf("Read(3) = %d, %v; want 5", v, err)
	}
	if v, err := r.Read(16); err != nil || v != 0xABCD {
		t.Fatalf("Read(16) = %#x, %v; want 0xabcd", v, err)
	}
	if v, err := r.Read(1); err != nil || v != 1 {
		t.Fatalf("Read(1) = %d, %v; want 1", v, err)
	}
	if v, err := r.ReadVBR(6); err != nil || v != 1234567 {
		t.Fatalf("ReadVBR(6) = %d, %v; want 1234567", v, err)
	}
}

func TestReadTruncated(t *testing.T) {
	r := bitstream.NewReader([]byte{0xFF})
	if _, err := r.Read(16); !errors.Is(err, bitstream.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestBlockAndUnabbrevRecords(t *testing.T) {
	w := bitstream.NewWriter()
	w.StartBlock(8, 3)
	w.WriteUnabbrevRecord(1, 10, 20, 30)
	w.WriteUnabbrevRecord(2)
	if err := w.EndBlock(); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	ent, err := r.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if ent.Kind != bitstream.EntrySubBlock || ent.ID != 8 {
		t.Fatalf("expected sub-block 8, got %+v", ent)
	}
	if err := r.EnterSubBlock(8); err != nil {
		t.Fatalf("EnterSubBlock: %v", err)
	}

	ent, err = r.Advance()
	if err != nil || ent.Kind != bitstream.EntryRecord {
		t.Fatalf("expected record, got %+v, %v", ent, err)
	}
	code, fields, err := r.ReadRecord(ent.ID)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if code != 1 || len(fields) != 3 || fields[0] != 10 || fields[2] != 30 {
		t.Fatalf("record = %d %v", code, fields)
	}

	ent, _ = r.Advance()
	code, fields, err = r.ReadRecord(ent.ID)
	if err != nil || code != 2 || len(fields) != 0 {
		t.Fatalf("record = %d %v, %v", code, fields, err)
	}

	ent, err = r.Advance()
	if err != nil || ent.Kind != bitstream.EntryEndBlock {
		t.Fatalf("expected end block, got %+v, %v", ent, err)
	}
	if !r.AtEnd() {
		t.Error("expected AtEnd after final block")
	}
}

func TestSkipBlock(t *testing.T) {
	w := bitstream.NewWriter()
	w.StartBlock(9, 2)
	w.WriteUnabbrevRecord(7, 1, 2, 3, 4, 5)
	w.EndBlock()
	w.StartBlock(10, 2)
	w.WriteUnabbrevRecord(8, 42)
	w.EndBlock()
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	ent, _ := r.Advance()
	if ent.ID != 9 {
		t.Fatalf("expected block 9, got %d", ent.ID)
	}
	if err := r.SkipBlock(); err != nil {
		t.Fatalf("SkipBlock: %v", err)
	}
	ent, err := r.Advance()
	if err != nil || ent.Kind != bitstream.EntrySubBlock || ent.ID != 10 {
		t.Fatalf("expected block 10 after skip, got %+v, %v", ent, err)
	}
	r.EnterSubBlock(10)
	ent, _ = r.Advance()
	code, fields, err := r.ReadRecord(ent.ID)
	if err != nil || code != 8 || fields[0] != 42 {
		t.Fatalf("record = %d %v, %v", code, fields, err)
	}
}

func TestAbbreviatedRecord(t *testing.T) {
	ab := &bitstream.Abbrev{Ops: []bitstream.AbbrevOp{
		bitstream.Literal(5),
		bitstream.Fixed(8),
		bitstream.VBR(6),
		bitstream.Array(),
		bitstream.Char6(),
	}}

	w := bitstream.NewWriter()
	w.StartBlock(12, 4)
	id, err := w.DefineAbbrev(ab)
	if err != nil {
		t.Fatalf("DefineAbbrev: %v", err)
	}
	if id != bitstream.FirstAppAbbrev {
		t.Fatalf("abbrev id = %d, want %d", id, bitstream.FirstAppAbbrev)
	}
	vals := []uint64{5, 200, 1000}
	for _, c := range []byte("hi_9") {
		vals = append(vals, uint64(c))
	}
	if err := w.WriteRecord(id, vals, nil); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	w.EndBlock()
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	ent, _ := r.Advance()
	r.EnterSubBlock(ent.ID)
	ent, err = r.Advance()
	if err != nil || ent.Kind != bitstream.EntryRecord {
		t.Fatalf("expected record, got %+v, %v", ent, err)
	}
	code, fields, err := r.ReadRecord(ent.ID)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if code != 5 {
		t.Errorf("code = %d, want 5", code)
	}
	want := []uint64{200, 1000, 'h', 'i', '_', '9'}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %d, want %d", i, fields[i], want[i])
		}
	}
}

func TestBlobRecord(t *testing.T) {
	ab := &bitstream.Abbrev{Ops: []bitstream.AbbrevOp{
		bitstream.Literal(3),
		bitstream.Blob(),
	}}
	blob := []byte{1, 2, 3, 4, 5, 6, 7}

	w := bitstream.NewWriter()
	w.StartBlock(12, 4)
	id, _ := w.DefineAbbrev(ab)
	if err := w.WriteRecord(id, []uint64{3}, blob); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	w.WriteUnabbrevRecord(9, 99)
	w.EndBlock()
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	ent, _ := r.Advance()
	r.EnterSubBlock(ent.ID)
	ent, _ = r.Advance()
	code, fields, err := r.ReadRecord(ent.ID)
	if err != nil || code != 3 {
		t.Fatalf("ReadRecord: %d, %v", code, err)
	}
	if len(fields) != len(blob) {
		t.Fatalf("blob fields = %v", fields)
	}
	for i, b := range blob {
		if fields[i] != uint64(b) {
			t.Errorf("fields[%d] = %d, want %d", i, fields[i], b)
		}
	}
	// The record after the blob must still decode, proving alignment.
	ent, _ = r.Advance()
	code, fields, err = r.ReadRecord(ent.ID)
	if err != nil || code != 9 || fields[0] != 99 {
		t.Fatalf("record after blob = %d %v, %v", code, fields, err)
	}
}

func TestBlockInfoAbbrevs(t *testing.T) {
	ab := &bitstream.Abbrev{Ops: []bitstream.AbbrevOp{
		bitstream.Literal(4),
		bitstream.VBR(6),
	}}

	w := bitstream.NewWriter()
	w.StartBlock(bitstream.BlockInfoBlockID, 2)
	w.WriteUnabbrevRecord(1, 17) // SETBID 17
	id, err := w.DefineBlockInfoAbbrev(17, ab)
	if err != nil {
		t.Fatalf("DefineBlockInfoAbbrev: %v", err)
	}
	w.EndBlock()
	w.StartBlock(17, 3)
	if err := w.WriteRecord(id, []uint64{4, 321}, nil); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	w.EndBlock()
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	ent, _ := r.Advance()
	if ent.Kind != bitstream.EntrySubBlock || ent.ID != bitstream.BlockInfoBlockID {
		t.Fatalf("expected blockinfo, got %+v", ent)
	}
	if err := r.ReadBlockInfo(); err != nil {
		t.Fatalf("ReadBlockInfo: %v", err)
	}
	ent, _ = r.Advance()
	if ent.ID != 17 {
		t.Fatalf("expected block 17, got %d", ent.ID)
	}
	r.EnterSubBlock(17)
	ent, _ = r.Advance()
	if ent.ID != id {
		t.Fatalf("abbrev id = %d, want %d", ent.ID, id)
	}
	code, fields, err := r.ReadRecord(ent.ID)
	if err != nil || code != 4 || fields[0] != 321 {
		t.Fatalf("record = %d %v, %v", code, fields, err)
	}
}

func TestSeekReentersBlock(t *testing.T) {
	w := bitstream.NewWriter()
	w.StartBlock(8, 2)
	w.WriteUnabbrevRecord(1, 11)
	w.EndBlock()
	data := mustBytes(t, w)

	r := bitstream.NewReader(data)
	ent, _ := r.Advance()
	mark := r.BitOffset() // just after block ID, before width/length
	if err := r.SkipBlock(); err != nil {
		t.Fatalf("SkipBlock: %v", err)
	}
	if !r.AtEnd() {
		t.Fatal("expected AtEnd after skip")
	}

	if err := r.Seek(mark); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if err := r.EnterSubBlock(ent.ID); err != nil {
		t.Fatalf("EnterSubBlock after seek: %v", err)
	}
	ent2, _ := r.Advance()
	code, fields, err := r.ReadRecord(ent2.ID)
	if err != nil || code != 1 || fields[0] != 11 {
		t.Fatalf("record = %d %v, %v", code, fields, err)
	}
}
