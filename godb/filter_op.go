package godb

// Filter passes through only the tuples of its child for which evaluating
// the left expression against the right expression satisfies op.
type Filter struct {
	op          BoolOp
	left, right Expr
	child       Operator
}

// NewFilter builds a Filter evaluating "field op constExpr" against every
// tuple produced by child.
func NewFilter(constExpr Expr, op BoolOp, field Expr, child Operator) (*Filter, error) {
	return &Filter{op: op, left: field, right: constExpr, child: child}, nil
}

// Descriptor is unchanged by filtering: Filter drops rows, not columns.
func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

// Iterator pulls from child and yields only the tuples satisfying the
// predicate; everything else is skipped transparently.
func (f *Filter) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	next, err := f.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	return func() (*Tuple, error) {
		for {
			tup, err := next()
			if err != nil {
				return nil, err
			}
			if tup == nil {
				return nil, nil
			}

			lhs, err := f.left.EvalExpr(tup)
			if err != nil {
				return nil, err
			}
			rhs, err := f.right.EvalExpr(tup)
			if err != nil {
				return nil, err
			}

			if lhs.EvalPred(rhs, f.op) {
				return tup, nil
			}
		}
	}, nil
}
