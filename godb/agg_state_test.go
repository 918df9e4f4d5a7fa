package godb

import "testing"

func makeAggStateTestTuples() (*TupleDesc, []*Tuple) {
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	ages := []int64{10, 20, 30}
	tups := make([]*Tuple, len(ages))
	for i, age := range ages {
		tups[i] = &Tuple{Desc: *td, Fields: []DBValue{StringField{"x"}, IntField{age}}}
	}
	return td, tups
}

func TestCountAggState(t *testing.T) {
	_, tups := makeAggStateTestTuples()
	var a CountAggState
	if err := a.Init("count", &FieldExpr{Field: tups[0].Desc.Fields[0]}); err != nil {
		t.Fatalf(err.Error())
	}
	for _, tup := range tups {
		a.AddTuple(tup)
	}
	res := a.Finalize()
	if res.Fields[0].(IntField).Value != int64(len(tups)) {
		t.Errorf("expected count %d, got %v", len(tups), res.Fields[0])
	}
}

func TestSumAggState(t *testing.T) {
	td, tups := makeAggStateTestTuples()
	ageField := &FieldExpr{Field: td.Fields[1]}
	var a SumAggState
	if err := a.Init("sum", ageField); err != nil {
		t.Fatalf(err.Error())
	}
	for _, tup := range tups {
		a.AddTuple(tup)
	}
	res := a.Finalize()
	if res.Fields[0].(IntField).Value != 60 {
		t.Errorf("expected sum 60, got %v", res.Fields[0])
	}
}

func TestSumAggStateRejectsStringField(t *testing.T) {
	td, _ := makeAggStateTestTuples()
	nameField := &FieldExpr{Field: td.Fields[0]}
	var a SumAggState
	if err := a.Init("sum", nameField); err == nil {
		t.Errorf("expected SUM over a string field to be rejected at Init")
	}
}

func TestAvgAggState(t *testing.T) {
	td, tups := makeAggStateTestTuples()
	ageField := &FieldExpr{Field: td.Fields[1]}
	var a AvgAggState
	if err := a.Init("avg", ageField); err != nil {
		t.Fatalf(err.Error())
	}
	for _, tup := range tups {
		a.AddTuple(tup)
	}
	res := a.Finalize()
	if res.Fields[0].(IntField).Value != 20 {
		t.Errorf("expected average 20, got %v", res.Fields[0])
	}
}

func TestAvgAggStateNoTuplesDoesNotDivideByZero(t *testing.T) {
	td, _ := makeAggStateTestTuples()
	ageField := &FieldExpr{Field: td.Fields[1]}
	var a AvgAggState
	if err := a.Init("avg", ageField); err != nil {
		t.Fatalf(err.Error())
	}
	res := a.Finalize()
	if res.Fields[0].(IntField).Value != 0 {
		t.Errorf("expected average of an empty group to be 0, got %v", res.Fields[0])
	}
}

func TestMaxAndMinAggState(t *testing.T) {
	td, tups := makeAggStateTestTuples()
	ageField := &FieldExpr{Field: td.Fields[1]}

	var max MaxAggState
	if err := max.Init("max", ageField); err != nil {
		t.Fatalf(err.Error())
	}
	var min MinAggState
	if err := min.Init("min", ageField); err != nil {
		t.Fatalf(err.Error())
	}
	for _, tup := range tups {
		max.AddTuple(tup)
		min.AddTuple(tup)
	}

	if max.Finalize().Fields[0].(IntField).Value != 30 {
		t.Errorf("expected max 30, got %v", max.Finalize().Fields[0])
	}
	if min.Finalize().Fields[0].(IntField).Value != 10 {
		t.Errorf("expected min 10, got %v", min.Finalize().Fields[0])
	}
}

func TestMaxAggStateRejectsStringField(t *testing.T) {
	td, _ := makeAggStateTestTuples()
	nameField := &FieldExpr{Field: td.Fields[0]}
	var a MaxAggState
	if err := a.Init("max", nameField); err == nil {
		t.Errorf("expected MAX over a string field to be rejected at Init")
	}
}

func TestMinAggStateRejectsStringField(t *testing.T) {
	td, _ := makeAggStateTestTuples()
	nameField := &FieldExpr{Field: td.Fields[0]}
	var a MinAggState
	if err := a.Init("min", nameField); err == nil {
		t.Errorf("expected MIN over a string field to be rejected at Init")
	}
}

func TestAggStateCopyIsIndependent(t *testing.T) {
	td, tups := makeAggStateTestTuples()
	ageField := &FieldExpr{Field: td.Fields[1]}
	var a SumAggState
	if err := a.Init("sum", ageField); err != nil {
		t.Fatalf(err.Error())
	}
	a.AddTuple(tups[0])

	b := a.Copy()
	b.AddTuple(tups[1])

	if a.Finalize().Fields[0].(IntField).Value != 10 {
		t.Errorf("expected the original state to be unaffected by the copy's mutation")
	}
	if b.Finalize().Fields[0].(IntField).Value != 30 {
		t.Errorf("expected the copy to reflect both tuples")
	}
}
