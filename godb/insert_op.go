package godb

// InsertOp drains its child operator into a DBFile and reports how many
// tuples it wrote.
type InsertOp struct {
	target DBFile
	source Operator
	desc   *TupleDesc
}

// insertResultDesc is the fixed one-column "count" schema every InsertOp
// and DeleteOp reports its tally through.
func insertResultDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}
}

// NewInsertOp builds an operator that copies every tuple source produces
// into target.
func NewInsertOp(target DBFile, source Operator) *InsertOp {
	return &InsertOp{target: target, source: source, desc: insertResultDesc()}
}

func (iop *InsertOp) Descriptor() *TupleDesc {
	return iop.desc
}

// Iterator is lazy: the drain loop runs the first (and only) time the
// returned function is called, inserting every tuple from source into
// target via [DBFile.insertTuple] before yielding the single count tuple.
func (iop *InsertOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	next, err := iop.source.Iterator(tid)
	if err != nil {
		return nil, err
	}

	var inserted int64
	done := false
	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		done = true
		for {
			tup, err := next()
			if err != nil {
				return nil, err
			}
			if tup == nil {
				break
			}
			if err := iop.target.insertTuple(tup, tid); err != nil {
				return nil, err
			}
			inserted++
		}
		return &Tuple{Desc: *iop.desc, Fields: []DBValue{IntField{inserted}}}, nil
	}, nil
}
