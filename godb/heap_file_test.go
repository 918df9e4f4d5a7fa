package godb

import (
	"os"
	"testing"
)

func makeHeapFileTestVars(t *testing.T) (*TupleDesc, *HeapFile, *BufferPool, TransactionID) {
	os.Remove("heaptest.dat")
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	bp, err := NewBufferPool(25)
	if err != nil {
		t.Fatalf(err.Error())
	}
	hf, err := NewHeapFile("heaptest.dat", td, bp)
	if err != nil {
		t.Fatalf(err.Error())
	}
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf(err.Error())
	}
	return td, hf, bp, tid
}

func TestHeapFileInsertGrowsFile(t *testing.T) {
	td, hf, _, tid := makeHeapFileTestVars(t)
	if hf.NumPages() != 0 {
		t.Errorf("expected a fresh heap file to have 0 pages")
	}

	tup := Tuple{Desc: *td, Fields: []DBValue{StringField{"josie"}, IntField{20}}}
	if err := hf.insertTuple(&tup, tid); err != nil {
		t.Fatalf(err.Error())
	}
	if hf.NumPages() != 1 {
		t.Errorf("expected inserting into an empty file to grow it to 1 page, got %d", hf.NumPages())
	}
}

func TestHeapFileInsertFillsExistingPageBeforeGrowing(t *testing.T) {
	td, hf, _, tid := makeHeapFileTestVars(t)
	w, err := bytesPerTuple(td)
	if err != nil {
		t.Fatalf(err.Error())
	}
	slotsPerPg := slotsPerPage(w)

	for i := 0; i < slotsPerPg; i++ {
		tup := Tuple{Desc: *td, Fields: []DBValue{StringField{"x"}, IntField{int64(i)}}}
		if err := hf.insertTuple(&tup, tid); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if hf.NumPages() != 1 {
		t.Errorf("expected exactly 1 page while slots remain, got %d", hf.NumPages())
	}

	overflow := Tuple{Desc: *td, Fields: []DBValue{StringField{"y"}, IntField{999}}}
	if err := hf.insertTuple(&overflow, tid); err != nil {
		t.Fatalf(err.Error())
	}
	if hf.NumPages() != 2 {
		t.Errorf("expected a second page once the first fills, got %d", hf.NumPages())
	}
}

func TestHeapFileDeleteThenReadBack(t *testing.T) {
	td, hf, _, tid := makeHeapFileTestVars(t)
	t1 := Tuple{Desc: *td, Fields: []DBValue{StringField{"josie"}, IntField{20}}}
	t2 := Tuple{Desc: *td, Fields: []DBValue{StringField{"annie"}, IntField{17}}}
	if err := hf.insertTuple(&t1, tid); err != nil {
		t.Fatalf(err.Error())
	}
	if err := hf.insertTuple(&t2, tid); err != nil {
		t.Fatalf(err.Error())
	}

	if err := hf.deleteTuple(&t1, tid); err != nil {
		t.Fatalf(err.Error())
	}

	iter, err := hf.Iterator(tid)
	if err != nil {
		t.Fatalf(err.Error())
	}
	count := 0
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			break
		}
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 tuple remaining after delete, got %d", count)
	}
}

func TestHeapFileIteratorAcrossCommit(t *testing.T) {
	td, hf, bp, tid := makeHeapFileTestVars(t)
	tup := Tuple{Desc: *td, Fields: []DBValue{StringField{"josie"}, IntField{20}}}
	if err := hf.insertTuple(&tup, tid); err != nil {
		t.Fatalf(err.Error())
	}
	bp.CommitTransaction(tid)

	tid2 := NewTID()
	if err := bp.BeginTransaction(tid2); err != nil {
		t.Fatalf(err.Error())
	}
	iter, err := hf.Iterator(tid2)
	if err != nil {
		t.Fatalf(err.Error())
	}
	got, err := iter()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if got == nil {
		t.Fatalf("expected the committed tuple to be visible to a later transaction")
	}
	bp.CommitTransaction(tid2)
}
