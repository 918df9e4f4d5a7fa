package godb

import "fmt"

// BoolOp is a comparison operator usable in a predicate, ORDER BY
// comparison, or aggregate fold (OpGt/OpLt in MAX/MIN).
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
)

func (op BoolOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	}
	return "?"
}

// Expr is evaluated against a tuple to produce a DBValue. Most expressions
// in this module are a [FieldExpr] (project one named field out of the
// tuple) or a [ConstExpr] (a literal, ignoring the tuple).
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr extracts a named field from a tuple.
type FieldExpr struct {
	Field FieldType
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.Field
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot evaluate field expression %s.%s against a nil tuple", e.Field.TableQualifier, e.Field.Fname)
	}
	idx, err := findFieldInTd(e.Field, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[idx], nil
}

// ConstExpr is a literal value; it ignores the tuple it is evaluated
// against.
type ConstExpr struct {
	Val   DBValue
	Ftype DBType
}

func (e *ConstExpr) GetExprType() FieldType {
	return FieldType{Ftype: e.Ftype}
}

func (e *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return e.Val, nil
}

// evalPred compares v1 op v2, dispatching on the concrete DBValue types.
// IntField and StringField implement [DBValue.EvalPred] in terms of this.
func evalPred(v1 DBValue, v2 DBValue, op BoolOp) bool {
	switch a := v1.(type) {
	case IntField:
		b, ok := v2.(IntField)
		if !ok {
			return false
		}
		return compareOrdered(a.Value, b.Value, op)
	case StringField:
		b, ok := v2.(StringField)
		if !ok {
			return false
		}
		return compareOrdered(a.Value, b.Value, op)
	}
	return false
}

func compareOrdered[T int64 | string](a, b T, op BoolOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}
