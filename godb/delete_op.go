package godb

// DeleteOp drains its child operator, deleting each tuple it produces from
// a DBFile, and reports how many tuples it removed.
type DeleteOp struct {
	target DBFile
	source Operator
	desc   *TupleDesc
}

// NewDeleteOp builds an operator that removes every tuple source produces
// from target.
func NewDeleteOp(target DBFile, source Operator) *DeleteOp {
	return &DeleteOp{target: target, source: source, desc: insertResultDesc()}
}

func (dop *DeleteOp) Descriptor() *TupleDesc {
	return dop.desc
}

// Iterator is eager: it drains source and deletes every tuple via
// [DBFile.deleteTuple] before returning, so the count is known up front and
// the returned function always yields exactly one result tuple.
func (dop *DeleteOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	next, err := dop.source.Iterator(tid)
	if err != nil {
		return nil, err
	}

	var deleted int64
	for {
		tup, err := next()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			break
		}
		if err := dop.target.deleteTuple(tup, tid); err != nil {
			return nil, err
		}
		deleted++
	}

	done := false
	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		done = true
		return &Tuple{Desc: *dop.desc, Fields: []DBValue{IntField{deleted}}}, nil
	}, nil
}
