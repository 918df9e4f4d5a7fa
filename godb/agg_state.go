package godb

// interface for an aggregation state
type AggState interface {
	// Initializes an aggregation state. Is supplied with an alias and an expr
	// to evaluate an input tuple into a DBValue.
	Init(alias string, expr Expr) error

	// Makes an copy of the aggregation state.
	Copy() AggState

	// Adds an tuple to the aggregation state.
	AddTuple(*Tuple)

	// Returns the final result of the aggregation as a tuple.
	Finalize() *Tuple

	// Gets the tuple description of the tuple that Finalize() returns.
	GetTupleDesc() *TupleDesc
}

// Implements the aggregation state for COUNT
type CountAggState struct {
	alias string
	expr  Expr
	count int
}

func (a *CountAggState) Copy() AggState {
	return &CountAggState{a.alias, a.expr, a.count}
}

func (a *CountAggState) Init(alias string, expr Expr) error {
	a.count = 0
	a.expr = expr
	a.alias = alias
	return nil
}

func (a *CountAggState) AddTuple(t *Tuple) {
	a.count++
}

func (a *CountAggState) Finalize() *Tuple {
	td := a.GetTupleDesc()
	f := IntField{int64(a.count)}
	fs := []DBValue{f}
	t := Tuple{*td, fs, nil}
	return &t
}

func (a *CountAggState) GetTupleDesc() *TupleDesc {
	ft := FieldType{a.alias, "", IntType}
	fts := []FieldType{ft}
	td := TupleDesc{}
	td.Fields = fts
	return &td
}

// Implements the aggregation state for SUM
type SumAggState struct {
	sum   int64
	alias string
	expr  Expr
}

func (a *SumAggState) Copy() AggState {
	return &SumAggState{a.sum, a.alias, a.expr}
}

func (a *SumAggState) Init(alias string, expr Expr) error {
	if expr.GetExprType().Ftype != IntType {
		return newErr(IncompatibleTypesError, "SUM requires an int field, got %v", expr.GetExprType().Ftype)
	}
	a.sum = 0
	a.alias = alias
	a.expr = expr

	return nil
}

func (a *SumAggState) AddTuple(t *Tuple) {
	get, _ := a.expr.EvalExpr(t)
	add, _ := get.(IntField)
	a.sum += add.Value
}

func (a *SumAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{
		Fields: []FieldType{{a.alias, "", IntType}},
	}
}

func (a *SumAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{a.sum}}, nil}
}

// Implements the aggregation state for AVG
type AvgAggState struct {
	alias string
	expr  Expr
	count int
	sum   int64
}

func (a *AvgAggState) Copy() AggState {
	return &AvgAggState{a.alias, a.expr, a.count, a.sum}
}

func (a *AvgAggState) Init(alias string, expr Expr) error {
	if expr.GetExprType().Ftype != IntType {
		return newErr(IncompatibleTypesError, "AVG requires an int field, got %v", expr.GetExprType().Ftype)
	}
	a.alias = alias
	a.expr = expr
	a.sum = 0
	a.count = 0
	return nil
}

func (a *AvgAggState) AddTuple(t *Tuple) {
	get, _ := a.expr.EvalExpr(t)
	value, _ := get.(IntField)
	a.sum += value.Value
	a.count++
}

func (a *AvgAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{
		Fields: []FieldType{{a.alias, "", IntType}},
	}
}

func (a *AvgAggState) Finalize() *Tuple {
	td := a.GetTupleDesc()
	if a.count == 0 {
		return &Tuple{*td, []DBValue{IntField{0}}, nil}
	}
	res := IntField{a.sum / int64(a.count)}
	return &Tuple{*td, []DBValue{res}, nil}
}

// Implements the aggregation state for MAX
// Note that we always AddTuple() at least once before Finalize()
// so no worries for NaN max
type MaxAggState struct {
	maximum DBValue
	alias   string
	expr    Expr
}

func (a *MaxAggState) Copy() AggState {
	return &MaxAggState{a.maximum, a.alias, a.expr}
}

func (a *MaxAggState) Init(alias string, expr Expr) error {
	if expr.GetExprType().Ftype != IntType {
		return newErr(IncompatibleTypesError, "MAX is only supported over int fields, got %v", expr.GetExprType().Ftype)
	}
	a.maximum = nil
	a.alias = alias
	a.expr = expr
	return nil
}

func (a *MaxAggState) AddTuple(t *Tuple) {
	if tmpVal, _ := a.expr.EvalExpr(t); a.maximum == nil {
		a.maximum = tmpVal
		return
	} else if tmpVal.EvalPred(a.maximum, OpGt) {
		a.maximum = tmpVal
	}
}

func (a *MaxAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{
		Fields: []FieldType{{a.alias, "", a.expr.GetExprType().Ftype}},
	}
}

func (a *MaxAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{a.maximum}, nil}
}

// Implements the aggregation state for MIN
// Note that we always AddTuple() at least once before Finalize()
// so no worries for NaN min
type MinAggState struct {
	minimum DBValue
	alias   string
	expr    Expr
}

func (a *MinAggState) Copy() AggState {
	return &MinAggState{a.minimum, a.alias, a.expr}
}

func (a *MinAggState) Init(alias string, expr Expr) error {
	if expr.GetExprType().Ftype != IntType {
		return newErr(IncompatibleTypesError, "MIN is only supported over int fields, got %v", expr.GetExprType().Ftype)
	}
	a.minimum = nil
	a.alias = alias
	a.expr = expr
	return nil
}

func (a *MinAggState) AddTuple(t *Tuple) {
	if tmpVal, _ := a.expr.EvalExpr(t); a.minimum == nil {
		a.minimum = tmpVal
		return
	} else if tmpVal.EvalPred(a.minimum, OpLt) {
		a.minimum = tmpVal
	}
}

func (a *MinAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{
		Fields: []FieldType{{a.alias, "", a.expr.GetExprType().Ftype}},
	}
}

func (a *MinAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{a.minimum}, nil}
}
