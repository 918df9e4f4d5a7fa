package main

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"

	"github.com/CreatureOX/godb/godb"
)

// lower parses sql and mechanically lowers it into an operator tree: a
// single-table SELECT becomes Scan -> Filter -> OrderBy -> Limit -> Project,
// and INSERT/DELETE become InsertOp/DeleteOp over a VALUES literal or a
// Filter respectively. There is no join-order enumeration, no subqueries, no
// multi-table FROM -- a single name after FROM is the only shape accepted.
func (db *database) lower(sql string, tid godb.TransactionID) (godb.Operator, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	switch stmt := stmt.(type) {
	case *sqlparser.Select:
		return db.lowerSelect(stmt)
	case *sqlparser.Insert:
		return db.lowerInsert(stmt)
	case *sqlparser.Delete:
		return db.lowerDelete(stmt)
	default:
		return nil, fmt.Errorf("unsupported statement: %T", stmt)
	}
}

func (db *database) lowerSelect(stmt *sqlparser.Select) (godb.Operator, error) {
	if len(stmt.From) != 1 {
		return nil, fmt.Errorf("only single-table FROM is supported")
	}
	aliased, ok := stmt.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported FROM clause")
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return nil, fmt.Errorf("unsupported FROM clause")
	}

	file, err := db.catalog.GetTable(tableName.Name.String())
	if err != nil {
		return nil, err
	}

	var op godb.Operator = &scanOp{file: file}

	if stmt.Where != nil {
		op, err = applyWhere(op, stmt.Where.Expr)
		if err != nil {
			return nil, err
		}
	}

	if len(stmt.OrderBy) > 0 {
		exprs := make([]godb.Expr, 0, len(stmt.OrderBy))
		asc := make([]bool, 0, len(stmt.OrderBy))
		for _, o := range stmt.OrderBy {
			col, ok := o.Expr.(*sqlparser.ColName)
			if !ok {
				return nil, fmt.Errorf("ORDER BY only supports column names")
			}
			fe, err := fieldExpr(op, col.Name.String())
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, fe)
			asc = append(asc, o.Direction != sqlparser.DescScr)
		}
		op, err = godb.NewOrderBy(exprs, op, asc)
		if err != nil {
			return nil, err
		}
	}

	if stmt.Limit != nil && stmt.Limit.Rowcount != nil {
		n, err := constExprOf(stmt.Limit.Rowcount)
		if err != nil {
			return nil, err
		}
		op = godb.NewLimitOp(n, op)
	}

	selectFields, outputNames, err := projectionOf(op, stmt.SelectExprs)
	if err != nil {
		return nil, err
	}
	return godb.NewProjectOp(selectFields, outputNames, false, op)
}

// projectionOf turns SELECT *|col,col,... into the Expr/name pair lists
// NewProjectOp wants.
func projectionOf(op godb.Operator, sel sqlparser.SelectExprs) ([]godb.Expr, []string, error) {
	td := op.Descriptor()
	if _, star := sel[0].(*sqlparser.StarExpr); star && len(sel) == 1 {
		exprs := make([]godb.Expr, len(td.Fields))
		names := make([]string, len(td.Fields))
		for i, f := range td.Fields {
			exprs[i] = &godb.FieldExpr{Field: f}
			names[i] = f.Fname
		}
		return exprs, names, nil
	}

	exprs := make([]godb.Expr, 0, len(sel))
	names := make([]string, 0, len(sel))
	for _, se := range sel {
		aliased, ok := se.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, nil, fmt.Errorf("unsupported select expression: %T", se)
		}
		col, ok := aliased.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, nil, fmt.Errorf("only column projections are supported")
		}
		fe, err := fieldExpr(op, col.Name.String())
		if err != nil {
			return nil, nil, err
		}
		name := col.Name.String()
		if !aliased.As.IsEmpty() {
			name = aliased.As.String()
		}
		exprs = append(exprs, fe)
		names = append(names, name)
	}
	return exprs, names, nil
}

func fieldExpr(op godb.Operator, colName string) (*godb.FieldExpr, error) {
	td := op.Descriptor()
	for _, f := range td.Fields {
		if f.Fname == colName {
			return &godb.FieldExpr{Field: f}, nil
		}
	}
	return nil, fmt.Errorf("no such column %q", colName)
}

// applyWhere lowers a single top-level comparison (AND-less -- no compound
// predicates) into a Filter operator.
func applyWhere(child godb.Operator, expr sqlparser.Expr) (godb.Operator, error) {
	cmp, ok := expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("WHERE only supports a single comparison")
	}
	col, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return nil, fmt.Errorf("WHERE's left side must be a column")
	}
	fe, err := fieldExpr(child, col.Name.String())
	if err != nil {
		return nil, err
	}

	var rightExpr godb.Expr
	switch fe.Field.Ftype {
	case godb.IntType:
		n, err := constExprOf(cmp.Right)
		if err != nil {
			return nil, err
		}
		rightExpr = n
	case godb.StringType:
		val, ok := cmp.Right.(*sqlparser.SQLVal)
		if !ok {
			return nil, fmt.Errorf("expected a string literal")
		}
		rightExpr = &godb.ConstExpr{Val: godb.StringField{Value: string(val.Val)}, Ftype: godb.StringType}
	}

	op, err := boolOpOf(cmp.Operator)
	if err != nil {
		return nil, err
	}
	return godb.NewFilter(rightExpr, op, fe, child)
}

func boolOpOf(op string) (godb.BoolOp, error) {
	switch op {
	case sqlparser.EqualStr:
		return godb.OpEq, nil
	case sqlparser.NotEqualStr:
		return godb.OpNeq, nil
	case sqlparser.LessThanStr:
		return godb.OpLt, nil
	case sqlparser.LessEqualStr:
		return godb.OpLte, nil
	case sqlparser.GreaterThanStr:
		return godb.OpGt, nil
	case sqlparser.GreaterEqualStr:
		return godb.OpGte, nil
	}
	return 0, fmt.Errorf("unsupported comparison operator %q", op)
}

func constExprOf(e sqlparser.Expr) (*godb.ConstExpr, error) {
	val, ok := e.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return nil, fmt.Errorf("expected an integer literal")
	}
	n, err := strconv.ParseInt(string(val.Val), 10, 64)
	if err != nil {
		return nil, err
	}
	return &godb.ConstExpr{Val: godb.IntField{Value: n}, Ftype: godb.IntType}, nil
}

func (db *database) lowerInsert(stmt *sqlparser.Insert) (godb.Operator, error) {
	file, err := db.catalog.GetTable(stmt.Table.Name.String())
	if err != nil {
		return nil, err
	}
	rows, ok := stmt.Rows.(sqlparser.Values)
	if !ok {
		return nil, fmt.Errorf("only VALUES(...) inserts are supported")
	}

	td := file.Descriptor()
	tuples := make([]*godb.Tuple, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(td.Fields) {
			return nil, fmt.Errorf("expected %d values, got %d", len(td.Fields), len(row))
		}
		fields := make([]godb.DBValue, len(row))
		for i, expr := range row {
			val, ok := expr.(*sqlparser.SQLVal)
			if !ok {
				return nil, fmt.Errorf("only literal values are supported in INSERT")
			}
			switch td.Fields[i].Ftype {
			case godb.IntType:
				n, err := strconv.ParseInt(string(val.Val), 10, 64)
				if err != nil {
					return nil, err
				}
				fields[i] = godb.IntField{Value: n}
			case godb.StringType:
				fields[i] = godb.StringField{Value: string(val.Val)}
			}
		}
		tuples = append(tuples, &godb.Tuple{Desc: *td, Fields: fields})
	}

	return godb.NewInsertOp(file, &literalScan{desc: td, tuples: tuples}), nil
}

func (db *database) lowerDelete(stmt *sqlparser.Delete) (godb.Operator, error) {
	if len(stmt.TableExprs) != 1 {
		return nil, fmt.Errorf("only single-table DELETE is supported")
	}
	aliased, ok := stmt.TableExprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported DELETE target")
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return nil, fmt.Errorf("unsupported DELETE target")
	}
	file, err := db.catalog.GetTable(tableName.Name.String())
	if err != nil {
		return nil, err
	}

	var op godb.Operator = &scanOp{file: file}
	if stmt.Where != nil {
		op, err = applyWhere(op, stmt.Where.Expr)
		if err != nil {
			return nil, err
		}
	}
	return godb.NewDeleteOp(file, op), nil
}

// scanOp wraps a DBFile as an Operator, the way a bare table reference
// lowers before any WHERE/ORDER BY/LIMIT/projection is applied.
type scanOp struct {
	file godb.DBFile
}

func (s *scanOp) Descriptor() *godb.TupleDesc {
	return s.file.Descriptor()
}

func (s *scanOp) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	return s.file.Iterator(tid)
}

// literalScan replays an in-memory tuple slice, used as InsertOp's child for
// an INSERT ... VALUES statement.
type literalScan struct {
	desc   *godb.TupleDesc
	tuples []*godb.Tuple
}

func (l *literalScan) Descriptor() *godb.TupleDesc {
	return l.desc
}

func (l *literalScan) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	idx := 0
	return func() (*godb.Tuple, error) {
		if idx >= len(l.tuples) {
			return nil, nil
		}
		t := l.tuples[idx]
		idx++
		return t, nil
	}, nil
}
