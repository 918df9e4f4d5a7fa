package godb

import (
	"golang.org/x/exp/slices"
)

type OrderBy struct {
	orderBy        []Expr // OrderBy should include these two fields (used by parser)
	child          Operator
	ascending_list []bool
}

// Construct an order by operator. Saves the list of field, child, and ascending
// values for use in the Iterator() method. Here, orderByFields is a list of
// expressions that can be extracted from the child operator's tuples, and the
// ascending bitmap indicates whether the ith field in the orderByFields list
// should be in ascending (true) or descending (false) order.
func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	return &OrderBy{
		orderBy:        orderByFields,
		child:          child,
		ascending_list: ascending,
	}, nil

}

// Return the tuple descriptor.
//
// Note that the order by just changes the order of the child tuples, not the
// fields that are emitted.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

// Return a function that iterates through the results of the child iterator in
// ascending/descending order, as specified in the constructor. This sort is
// blocking: it first drains the child into an in-memory slice, sorts it with
// slices.SortFunc, and then hands results out one at a time.
func (o *OrderBy) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	child_iter, err := o.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	res := make([]*Tuple, 0)
	for tuple, _ := child_iter(); tuple != nil; tuple, _ = child_iter() {
		res = append(res, tuple)
	}

	slices.SortFunc(res, func(a, b *Tuple) int {
		switch {
		case o.less(a, b):
			return -1
		case o.less(b, a):
			return 1
		default:
			return 0
		}
	})

	count := 0
	return func() (*Tuple, error) {
		if count >= len(res) {
			return nil, nil
		}

		tuple := res[count]
		count += 1
		return tuple, nil
	}, nil
}

// less reports whether a sorts before b, breaking ties by walking the key
// list left to right.
func (o *OrderBy) less(a, b *Tuple) bool {
	for index, expr := range o.orderBy {
		valA, _ := expr.EvalExpr(a)
		valB, _ := expr.EvalExpr(b)

		if valA.EvalPred(valB, OpEq) {
			continue
		}

		if o.ascending_list[index] {
			return valA.EvalPred(valB, OpLt)
		}
		return !valA.EvalPred(valB, OpLt)
	}
	return false
}
