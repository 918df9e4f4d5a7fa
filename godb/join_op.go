package godb

import (
	"errors"
	"sort"
)

// EqualityJoin implements an equi-join between two operators via sort-merge:
// both sides are drained and sorted by their join key, then walked together,
// which avoids the O(n*m) blowup of a nested-loop join at the cost of
// buffering both inputs in memory.
type EqualityJoin struct {
	leftField, rightField Expr
	left, right           Operator
	maxBufferSize         int
}

// NewJoin builds an equi-join on leftField = rightField. Returns an error if
// the two fields don't share a type.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, maxBufferSize int) (*EqualityJoin, error) {
	if leftField.GetExprType().Ftype != rightField.GetExprType().Ftype {
		return nil, errors.New("join: left and right key expressions have different types")
	}
	return &EqualityJoin{
		leftField:     leftField,
		rightField:    rightField,
		left:          left,
		right:         right,
		maxBufferSize: maxBufferSize,
	}, nil
}

// Descriptor is the union of both sides' schemas.
func (ej *EqualityJoin) Descriptor() *TupleDesc {
	return ej.left.Descriptor().merge(ej.right.Descriptor())
}

// Iterator materializes and sorts both sides by their join key, then merges
// them: equal-keyed runs on each side are cross-joined against each other,
// and the cursor with the smaller key advances otherwise.
func (ej *EqualityJoin) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	leftIter, err := ej.left.Iterator(tid)
	if err != nil {
		return nil, err
	}
	leftRows, err := drainTuples(leftIter)
	if err != nil {
		return nil, err
	}

	rightIter, err := ej.right.Iterator(tid)
	if err != nil {
		return nil, err
	}
	rightRows, err := drainTuples(rightIter)
	if err != nil {
		return nil, err
	}

	if err := sortByField(leftRows, ej.leftField); err != nil {
		return nil, err
	}
	if err := sortByField(rightRows, ej.rightField); err != nil {
		return nil, err
	}

	matches, err := mergeJoin(leftRows, rightRows, ej.leftField, ej.rightField)
	if err != nil {
		return nil, err
	}

	i := 0
	return func() (*Tuple, error) {
		if i >= len(matches) {
			return nil, nil
		}
		tup := matches[i]
		i++
		return tup, nil
	}, nil
}

func drainTuples(next func() (*Tuple, error)) ([]*Tuple, error) {
	var out []*Tuple
	for {
		tup, err := next()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			return out, nil
		}
		out = append(out, tup)
	}
}

func sortByField(rows []*Tuple, field Expr) error {
	var sortErr error
	sort.Slice(rows, func(i, j int) bool {
		order, err := rows[i].compareField(rows[j], field)
		if err != nil {
			sortErr = err
		}
		return order == OrderedLessThan
	})
	return sortErr
}

// mergeJoin walks two key-sorted tuple slices together, cross-joining every
// run of equal keys on one side against the matching run on the other.
func mergeJoin(left, right []*Tuple, leftField, rightField Expr) ([]*Tuple, error) {
	var out []*Tuple
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		order, err := compareAcross(left[i], right[j], leftField, rightField)
		if err != nil {
			return nil, err
		}
		switch order {
		case OrderedEqual:
			leftEnd := equalRunEnd(left, i, leftField)
			rightEnd := equalRunEnd(right, j, rightField)
			for a := i; a < leftEnd; a++ {
				for b := j; b < rightEnd; b++ {
					out = append(out, joinTuples(left[a], right[b]))
				}
			}
			i, j = leftEnd, rightEnd
		case OrderedLessThan:
			i++
		case OrderedGreaterThan:
			j++
		}
	}
	return out, nil
}

// compareAcross orders a left-side tuple against a right-side tuple by their
// (possibly differently-named) join key expressions.
func compareAcross(left, right *Tuple, leftField, rightField Expr) (orderByState, error) {
	leftVal, err := leftField.EvalExpr(left)
	if err != nil {
		return OrderedEqual, err
	}
	rightVal, err := rightField.EvalExpr(right)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(leftVal, rightVal)
}

// equalRunEnd returns the index one past the last tuple (from start) whose
// key equals tuples[start]'s key.
func equalRunEnd(tuples []*Tuple, start int, field Expr) int {
	end := start + 1
	for end < len(tuples) {
		order, err := tuples[end].compareField(tuples[start], field)
		if err != nil || order != OrderedEqual {
			break
		}
		end++
	}
	return end
}
