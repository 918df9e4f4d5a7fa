package godb

/* Aggregator groups the tuples produced by its child according to
groupByFields (possibly empty, meaning one group for the whole input) and
folds each group through a copy of every AggState template supplied to
NewAggregator. It is a blocking operator: the whole child is consumed before
the first result tuple is produced, since a group's final value isn't known
until every tuple that could belong to it has been seen.

Each AggState in aggState must already be Init'd by the caller (Iterator
copies it per group via AggState.Copy, so the template itself is never
mutated). SUM and AVG reject non-int fields at Init time; COUNT accepts any
field, including string fields grouped without further restriction, which is
the one aggregate a string column supports beyond appearing in GROUP BY.
*/

type Aggregator struct {
	aggState      []AggState
	groupByFields []Expr
	child         Operator
}

// NewAggregator builds an aggregation operator. aggState holds one
// already-initialized template per requested aggregate (e.g. COUNT(*),
// SUM(x)); groupByFields, if non-empty, partitions the input before folding.
func NewAggregator(aggState []AggState, groupByFields []Expr, child Operator) *Aggregator {
	return &Aggregator{aggState: aggState, groupByFields: groupByFields, child: child}
}

// Descriptor returns group-by columns followed by each aggregate's column,
// in the order supplied to NewAggregator.
func (a *Aggregator) Descriptor() *TupleDesc {
	td := &TupleDesc{}
	for _, f := range a.groupByFields {
		td.Fields = append(td.Fields, f.GetExprType())
	}
	for _, s := range a.aggState {
		td = td.merge(s.GetTupleDesc())
	}
	return td
}

type aggGroup struct {
	keyTuple *Tuple // nil when there is no GROUP BY
	states   []AggState
}

func (a *Aggregator) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := a.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	groups := make(map[any]*aggGroup)
	order := make([]any, 0)

	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		if err := a.mergeTupleIntoGroup(t, groups, &order); err != nil {
			return nil, err
		}
	}

	desc := a.Descriptor()
	idx := 0
	return func() (*Tuple, error) {
		if idx >= len(order) {
			return nil, nil
		}
		g := groups[order[idx]]
		idx++

		fields := make([]DBValue, 0, len(a.groupByFields)+len(a.aggState))
		if g.keyTuple != nil {
			fields = append(fields, g.keyTuple.Fields...)
		}
		for _, s := range g.states {
			res := s.Finalize()
			fields = append(fields, res.Fields...)
		}
		return &Tuple{Desc: *desc, Fields: fields}, nil
	}, nil
}

// mergeTupleIntoGroup computes t's group key, creating a fresh set of
// AggState copies the first time a key is seen, and folds t into that
// group's states.
func (a *Aggregator) mergeTupleIntoGroup(t *Tuple, groups map[any]*aggGroup, order *[]any) error {
	key, keyTuple, err := a.groupKey(t)
	if err != nil {
		return err
	}

	g, ok := groups[key]
	if !ok {
		states := make([]AggState, len(a.aggState))
		for i, template := range a.aggState {
			states[i] = template.Copy()
		}
		g = &aggGroup{keyTuple: keyTuple, states: states}
		groups[key] = g
		*order = append(*order, key)
	}

	for _, s := range g.states {
		s.AddTuple(t)
	}
	return nil
}

func (a *Aggregator) groupKey(t *Tuple) (any, *Tuple, error) {
	if len(a.groupByFields) == 0 {
		return struct{}{}, nil, nil
	}

	fields := make([]FieldType, len(a.groupByFields))
	vals := make([]DBValue, len(a.groupByFields))
	for i, f := range a.groupByFields {
		v, err := f.EvalExpr(t)
		if err != nil {
			return nil, nil, err
		}
		fields[i] = f.GetExprType()
		vals[i] = v
	}
	keyTuple := &Tuple{Desc: TupleDesc{Fields: fields}, Fields: vals}
	return keyTuple.tupleKey(), keyTuple, nil
}
