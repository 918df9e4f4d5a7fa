package godb

import (
	"os"
	"testing"
)

type sliceOp struct {
	desc *TupleDesc
	rows []*Tuple
}

func (s *sliceOp) Descriptor() *TupleDesc { return s.desc }

func (s *sliceOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	idx := 0
	return func() (*Tuple, error) {
		if idx >= len(s.rows) {
			return nil, nil
		}
		t := s.rows[idx]
		idx++
		return t, nil
	}, nil
}

func makeOperatorsTestVars() (*TupleDesc, []*Tuple) {
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	rows := []struct {
		name string
		age  int64
	}{
		{"ben", 33}, {"annie", 17}, {"josie", 20},
	}
	tups := make([]*Tuple, len(rows))
	for i, r := range rows {
		tups[i] = &Tuple{Desc: *td, Fields: []DBValue{StringField{r.name}, IntField{r.age}}}
	}
	return td, tups
}

func drainAll(t *testing.T, iter func() (*Tuple, error)) []*Tuple {
	var out []*Tuple
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf(err.Error())
		}
		if tup == nil {
			return out
		}
		out = append(out, tup)
	}
}

func TestOrderByAscending(t *testing.T) {
	td, tups := makeOperatorsTestVars()
	child := &sliceOp{desc: td, rows: tups}
	ageField := &FieldExpr{Field: td.Fields[1]}
	ob, err := NewOrderBy([]Expr{ageField}, child, []bool{true})
	if err != nil {
		t.Fatalf(err.Error())
	}
	iter, err := ob.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if len(out) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out))
	}
	var ages []int64
	for _, tup := range out {
		ages = append(ages, tup.Fields[1].(IntField).Value)
	}
	if ages[0] != 17 || ages[1] != 20 || ages[2] != 33 {
		t.Errorf("expected ages sorted ascending, got %v", ages)
	}
}

func TestOrderByDescending(t *testing.T) {
	td, tups := makeOperatorsTestVars()
	child := &sliceOp{desc: td, rows: tups}
	ageField := &FieldExpr{Field: td.Fields[1]}
	ob, err := NewOrderBy([]Expr{ageField}, child, []bool{false})
	if err != nil {
		t.Fatalf(err.Error())
	}
	iter, err := ob.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if out[0].Fields[1].(IntField).Value != 33 {
		t.Errorf("expected the oldest row first when sorting descending")
	}
}

func TestLimitOp(t *testing.T) {
	td, tups := makeOperatorsTestVars()
	child := &sliceOp{desc: td, rows: tups}
	lim := NewLimitOp(&ConstExpr{Val: IntField{2}, Ftype: IntType}, child)
	iter, err := lim.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if len(out) != 2 {
		t.Errorf("expected LIMIT 2 to yield 2 rows, got %d", len(out))
	}
}

func TestProjectOp(t *testing.T) {
	td, tups := makeOperatorsTestVars()
	child := &sliceOp{desc: td, rows: tups}
	nameField := &FieldExpr{Field: td.Fields[0]}
	proj, err := NewProjectOp([]Expr{nameField}, []string{"name"}, false, child)
	if err != nil {
		t.Fatalf(err.Error())
	}
	if len(proj.Descriptor().Fields) != 1 {
		t.Fatalf("expected a single-column projection")
	}
	iter, err := proj.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if len(out) != 3 {
		t.Errorf("expected projection to preserve row count, got %d", len(out))
	}
	if len(out[0].Fields) != 1 {
		t.Errorf("expected each projected row to carry exactly one field")
	}
}

func TestProjectOpDistinct(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{{Fname: "dept", Ftype: StringType}}}
	rows := []*Tuple{
		{Desc: *td, Fields: []DBValue{StringField{"eng"}}},
		{Desc: *td, Fields: []DBValue{StringField{"eng"}}},
		{Desc: *td, Fields: []DBValue{StringField{"sales"}}},
	}
	child := &sliceOp{desc: td, rows: rows}
	deptField := &FieldExpr{Field: td.Fields[0]}
	proj, err := NewProjectOp([]Expr{deptField}, []string{"dept"}, true, child)
	if err != nil {
		t.Fatalf(err.Error())
	}
	iter, err := proj.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if len(out) != 2 {
		t.Errorf("expected DISTINCT to collapse duplicate rows, got %d", len(out))
	}
}

func TestFilterOp(t *testing.T) {
	td, tups := makeOperatorsTestVars()
	child := &sliceOp{desc: td, rows: tups}
	ageField := &FieldExpr{Field: td.Fields[1]}
	threshold := &ConstExpr{Val: IntField{18}, Ftype: IntType}
	filter, err := NewFilter(threshold, OpGt, ageField, child)
	if err != nil {
		t.Fatalf(err.Error())
	}
	iter, err := filter.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if len(out) != 2 {
		t.Errorf("expected age > 18 to keep 2 of 3 rows, got %d", len(out))
	}
}

func TestEqualityJoin(t *testing.T) {
	leftTd := &TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}, {Fname: "name", Ftype: StringType}}}
	rightTd := &TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}, {Fname: "dept", Ftype: StringType}}}

	left := &sliceOp{desc: leftTd, rows: []*Tuple{
		{Desc: *leftTd, Fields: []DBValue{IntField{1}, StringField{"josie"}}},
		{Desc: *leftTd, Fields: []DBValue{IntField{2}, StringField{"annie"}}},
	}}
	right := &sliceOp{desc: rightTd, rows: []*Tuple{
		{Desc: *rightTd, Fields: []DBValue{IntField{1}, StringField{"eng"}}},
		{Desc: *rightTd, Fields: []DBValue{IntField{3}, StringField{"sales"}}},
	}}

	leftIDField := &FieldExpr{Field: leftTd.Fields[0]}
	rightIDField := &FieldExpr{Field: rightTd.Fields[0]}
	join, err := NewJoin(left, leftIDField, right, rightIDField, 1000)
	if err != nil {
		t.Fatalf(err.Error())
	}
	iter, err := join.Iterator(0)
	if err != nil {
		t.Fatalf(err.Error())
	}
	out := drainAll(t, iter)
	if len(out) != 1 {
		t.Fatalf("expected exactly one matching row (id=1), got %d", len(out))
	}
	if len(out[0].Fields) != 4 {
		t.Errorf("expected a joined tuple to carry all 4 fields, got %d", len(out[0].Fields))
	}
}

func TestInsertAndDeleteOps(t *testing.T) {
	os.Remove("opstest.dat")
	td := &TupleDesc{Fields: []FieldType{{Fname: "age", Ftype: IntType}}}
	bp, err := NewBufferPool(25)
	if err != nil {
		t.Fatalf(err.Error())
	}
	hf, err := NewHeapFile("opstest.dat", td, bp)
	if err != nil {
		t.Fatalf(err.Error())
	}
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf(err.Error())
	}

	source := &sliceOp{desc: td, rows: []*Tuple{
		{Desc: *td, Fields: []DBValue{IntField{1}}},
		{Desc: *td, Fields: []DBValue{IntField{2}}},
	}}
	ins := NewInsertOp(hf, source)
	insIter, err := ins.Iterator(tid)
	if err != nil {
		t.Fatalf(err.Error())
	}
	res, err := insIter()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if res.Fields[0].(IntField).Value != 2 {
		t.Errorf("expected InsertOp to report inserting 2 rows, got %v", res.Fields[0])
	}

	scanIter, err := hf.Iterator(tid)
	if err != nil {
		t.Fatalf(err.Error())
	}
	scanned := drainAll(t, scanIter)
	if len(scanned) != 2 {
		t.Fatalf("expected 2 rows scanned back from the heap file, got %d", len(scanned))
	}

	del := NewDeleteOp(hf, &scanOpForTest{file: hf})
	delIter, err := del.Iterator(tid)
	if err != nil {
		t.Fatalf(err.Error())
	}
	delRes, err := delIter()
	if err != nil {
		t.Fatalf(err.Error())
	}
	if delRes.Fields[0].(IntField).Value != 2 {
		t.Errorf("expected DeleteOp to report deleting 2 rows, got %v", delRes.Fields[0])
	}

	finalIter, err := hf.Iterator(tid)
	if err != nil {
		t.Fatalf(err.Error())
	}
	remaining := drainAll(t, finalIter)
	if len(remaining) != 0 {
		t.Errorf("expected no rows remaining after DeleteOp, got %d", len(remaining))
	}

	bp.CommitTransaction(tid)
}
