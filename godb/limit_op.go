package godb

// LimitOp caps its child's output at a fixed number of tuples, evaluated
// once against a constant expression so LIMIT can be parameterized the same
// way WHERE constants are.
type LimitOp struct {
	child Operator
	count Expr
}

// NewLimitOp builds an operator yielding at most the first n tuples child
// produces, where n is the evaluated value of count.
func NewLimitOp(count Expr, child Operator) *LimitOp {
	return &LimitOp{child: child, count: count}
}

func (l *LimitOp) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

func (l *LimitOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	bound, err := l.count.EvalExpr(nil)
	if err != nil {
		return nil, err
	}
	n := int(bound.(IntField).Value)

	next, err := l.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	seen := 0
	return func() (*Tuple, error) {
		if seen >= n {
			return nil, nil
		}
		tup, err := next()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			return nil, nil
		}
		seen++
		return tup, nil
	}, nil
}
