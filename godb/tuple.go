package godb

//This file defines methods for working with tuples, including defining
// the types DBType, FieldType, TupleDesc, DBValue, and Tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field, in GoDB, e.g., IntType or StringType
type DBType int

const (
	IntType     DBType = iota
	StringType  DBType = iota
	UnknownType DBType = iota //used internally, during parsing, because sometimes the type is unknown
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType is the type of a field in a tuple, e.g., its name, table, and [godb.DBType].
// TableQualifier may or may not be an emtpy string, depending on whether the table
// was specified in the query
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is "type" of the tuple, e.g., the field names and types
type TupleDesc struct {
	Fields []FieldType
}

// Compare two tuple descs, and return true iff
// they are the same length and every field has the
// same Fname and Ftype (TableQualifier is not compared)
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname {
			return false
		}
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}

	}
	return true

}

// Given a FieldType f and a TupleDesc desc, find the best
// matching field in desc for f.  A match is defined as
// having the same Ftype and the same name, preferring a match
// with the same TableQualifier if f has a TableQualifier
// We have provided this implementation because it's details are
// idiosyncratic to the behavior of the parser, which we are not
// asking you to write
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, GoDBError{AmbiguousNameError, fmt.Sprintf("select name %s is ambiguous", f.Fname)}
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, GoDBError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}

}

// Make a copy of a tuple desc.  Note that in go, assignment of a slice to
// another slice object does not make a copy of the contents of the slice.
// Look at the built-in function "copy".
func (td *TupleDesc) copy() *TupleDesc {
	fieldsCopy := make([]FieldType, len(td.Fields))
	copy(fieldsCopy, td.Fields)
	return &TupleDesc{Fields: fieldsCopy}
}

// Assign the TableQualifier of every field in the TupleDesc to be the
// supplied alias.  We have provided this function as it is only used
// by the parser.
func (td *TupleDesc) setTableAlias(alias string) {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	for i := range fields {
		fields[i].TableQualifier = alias
	}
	td.Fields = fields
}

// Merge two TupleDescs together.  The resulting TupleDesc
// should consist of the fields of desc2
// appended onto the fields of desc.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// ================== Tuple Methods ======================

// Interface for tuple field values
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
}

// Integer field value
type IntField struct {
	Value int64
}

// EvalPred compares this field against v using op. Returns false if v is
// not also an IntField.
func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	return evalPred(f, v, op)
}

// String field value
type StringField struct {
	Value string
}

// EvalPred compares this field against v using op. Returns false if v is
// not also a StringField.
func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	return evalPred(f, v, op)
}

// Tuple represents the contents of a tuple read from a database
// It includes the tuple descriptor, and the value of the fields
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    recordID //used to track the page and position this page was read from
}

type recordID interface {
}

// Serialize the contents of the tuple into a byte array. Since all tuples
// are of fixed size, this writes the fields in schema order into the
// supplied buffer.
//
// Integers are 4 bytes, big-endian. Strings are a 4-byte big-endian length
// prefix L followed by L bytes of content and StringLength-L bytes of zero
// padding, so every serialized string field occupies StringLength+4 bytes
// regardless of its content's length.
//
// May return an error if the buffer has insufficient capacity to store the
// tuple.

func writeStringField(b *bytes.Buffer, strField StringField) error {
	content := []byte(strField.Value)
	if len(content) > StringLength {
		content = content[:StringLength]
	}
	if err := binary.Write(b, binary.BigEndian, int32(len(content))); err != nil {
		return err
	}
	if _, err := b.Write(content); err != nil {
		return err
	}
	_, err := b.Write(make([]byte, StringLength-len(content)))
	return err
}

func writeIntField(b *bytes.Buffer, intField IntField) error {
	return binary.Write(b, binary.BigEndian, int32(intField.Value))
}

func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type: %T", field)
		}
	}
	return nil
}

// Read the contents of a tuple with the specified [TupleDesc] from the
// specified buffer, returning a Tuple.
//
// Integers are 4 bytes, big-endian. Strings are a 4-byte big-endian length
// prefix L, then L bytes of content, then StringLength-L bytes of zero
// padding that are discarded on read.
//
// May return an error if the buffer has insufficent data to deserialize the
// tuple.
func readStringField(b *bytes.Buffer) (StringField, error) {
	var length int32
	if err := binary.Read(b, binary.BigEndian, &length); err != nil {
		return StringField{}, err
	}
	if length < 0 || int(length) > StringLength {
		return StringField{}, newErr(MalformedDataError, "string field length %d out of range", length)
	}
	padded := make([]byte, StringLength)
	if err := binary.Read(b, binary.BigEndian, padded); err != nil {
		return StringField{}, err
	}
	return StringField{Value: string(padded[:length])}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var val int32
	if err := binary.Read(b, binary.BigEndian, &val); err != nil {
		return IntField{}, err
	}
	return IntField{Value: int64(val)}, nil
}

func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	tuple := &Tuple{Desc: *desc}

	for _, fieldDesc := range desc.Fields {
		switch fieldDesc.Ftype {
		case StringType:
			strField, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, strField)
		case IntType:
			intField, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, intField)
		default:
			return nil, newErr(TypeMismatchError, "cannot deserialize field of unknown type")
		}
	}
	return tuple, nil
}

// Compare two tuples for equality.  Equality means that the TupleDescs are equal
// and all of the fields are equal.  TupleDescs should be compared with
// the [TupleDesc.equals] method, but fields can be compared directly with equality
// operators.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	for ind := range t1.Fields {
		if t1.Fields[ind] != t2.Fields[ind] {
			return false
		}
	}
	return true
}

// Merge two tuples together, producing a new tuple with the fields of t2
// appended to t1. The new tuple should have a correct TupleDesc that is created
// by merging the descriptions of the two input tuples.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	fields := make([]DBValue, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: fields,
	}
}

type orderByState int

const (
	OrderedLessThan    orderByState = iota
	OrderedEqual       orderByState = iota
	OrderedGreaterThan orderByState = iota
)

// Apply the supplied expression to both t and t2, and compare the results,
// returning an orderByState value.
//
// Takes an arbitrary expressions rather than a field, because, e.g., for an
// ORDER BY SQL may ORDER BY arbitrary expressions, e.g., substr(name, 1, 2)
//
// Note that in most cases Expr will be a [godb.FieldExpr], which simply
// extracts a named field from a supplied tuple.
//
// Calling the [Expr.EvalExpr] method on a tuple will return the value of the
// expression on the supplied tuple.
//
// Note that [FieldExpr.EvalExpr] locates its field with findFieldInTd.
func (t *Tuple) compareField(t2 *Tuple, field Expr) (orderByState, error) {
	val_1, err := field.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	val_2, err := field.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(val_1, val_2)
}

func compareFields(val1, val2 interface{}) (orderByState, error) {
	if val_1, a := val1.(IntField); a {
		if val_2, a := val2.(IntField); a {
			switch {
			case val_1.Value > val_2.Value:
				return OrderedGreaterThan, nil
			case val_1.Value == val_2.Value:
				return OrderedEqual, nil
			default:
				return OrderedLessThan, nil
			}
		}
	}

	if val_1, a := val1.(StringField); a {
		if val_2, a := val2.(StringField); a {
			switch {
			case val_1.Value > val_2.Value:
				return OrderedGreaterThan, nil
			case val_1.Value == val_2.Value:
				return OrderedEqual, nil
			default:
				return OrderedLessThan, nil
			}
		}
	}

	return OrderedEqual, fmt.Errorf("unsupported field comparison between %T and %T", val1, val2)
}

// Project out the supplied fields from the tuple. Should return a new Tuple
// with just the fields named in fields.
//
// Should not require a match on TableQualifier, but should prefer fields that
// do match on TableQualifier (e.g., a field  t1.name in fields should match an
// entry t2.name in t, but only if there is not an entry t1.name in t)
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	projected := &Tuple{
		Desc:   TupleDesc{},
		Fields: []DBValue{},
	}
	for _, field := range fields {
		matchedIndex := -1
		for i, descField := range t.Desc.Fields {
			if field.Fname == descField.Fname && field.TableQualifier == descField.TableQualifier {
				matchedIndex = i
				break
			}
		}
		if matchedIndex == -1 {
			for i, descField := range t.Desc.Fields {
				if field.Fname == descField.Fname {
					matchedIndex = i
					break
				}
			}
		}
		if matchedIndex == -1 {
			return nil, fmt.Errorf("field %s.%s not found", field.TableQualifier, field.Fname)
		}
		projected.Fields = append(projected.Fields, t.Fields[matchedIndex])
		projected.Desc.Fields = append(projected.Desc.Fields, t.Desc.Fields[matchedIndex])
	}
	return projected, nil
}

// Compute a key for the tuple to be used in a map structure
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

var winWidth int = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	} else {
		return " " + v[0:colWid-4] + " |"
	}
}

// Return a string representing the header of a table for a tuple with the
// supplied TupleDesc.
//
// Aligned indicates if the tuple should be foramtted in a tabular format
func (d *TupleDesc) HeaderString(aligned bool) string {
	outstr := ""
	for i, f := range d.Fields {
		tableName := ""
		if f.TableQualifier != "" {
			tableName = f.TableQualifier + "."
		}

		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(tableName+f.Fname, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, tableName+f.Fname)
		}
	}
	return outstr
}

// Return a string representing the tuple
// Aligned indicates if the tuple should be formatted in a tabular format
func (t *Tuple) PrettyPrintString(aligned bool) string {
	outstr := ""
	for i, f := range t.Fields {
		str := ""
		switch f := f.(type) {
		case IntField:
			str = strconv.FormatInt(f.Value, 10)
		case StringField:
			str = f.Value
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, str)
		}
	}
	return outstr
}
