package godb

import "errors"

// Project evaluates a fixed list of expressions against each child tuple,
// renaming the results per outputNames, and optionally collapses duplicate
// output rows.
type Project struct {
	fields   []Expr
	names    []string
	child    Operator
	distinct bool
}

// NewProjectOp builds a projection over fields, naming the i'th result
// column names[i]. Returns an error if fields and names are different
// lengths.
func NewProjectOp(fields []Expr, names []string, distinct bool, child Operator) (Operator, error) {
	if len(fields) != len(names) {
		return nil, errors.New("project: field and name list length mismatch")
	}
	return &Project{fields: fields, names: names, child: child, distinct: distinct}, nil
}

// Descriptor builds one FieldType per projected expression, taking its type
// from the expression and its name from the constructor's names list.
func (p *Project) Descriptor() *TupleDesc {
	desc := &TupleDesc{Fields: make([]FieldType, len(p.fields))}
	for i, expr := range p.fields {
		ft := expr.GetExprType()
		ft.Fname = p.names[i]
		desc.Fields[i] = ft
	}
	return desc
}

// Iterator evaluates every projected expression against each child tuple.
// When distinct is set, rows whose projected values have already been seen
// (tracked by [Tuple.tupleKey]) are skipped.
func (p *Project) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	next, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	desc := *p.Descriptor()

	var seen map[any]struct{}
	if p.distinct {
		seen = make(map[any]struct{})
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

			out := &Tuple{Desc: desc, Fields: make([]DBValue, len(p.fields))}
			for i, expr := range p.fields {
				val, err := expr.EvalExpr(tup)
				if err != nil {
					return nil, err
				}
				out.Fields[i] = val
			}

			if p.distinct {
				key := out.tupleKey()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}

			return out, nil
		}
	}, nil
}
