package engine

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/quarrydb/quarry/engine/sql"
)

// ValueKind tags the dynamic type of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is one cell of a row: a tagged union of null, 64-bit integer,
// 64-bit float, UTF-8 text, or a byte blob.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
	Blob  []byte
}

func Null() Value           { return Value{Kind: KindNull} }
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func Text(s string) Value   { return Value{Kind: KindText, Text: s} }
func Blob(b []byte) Value   { return Value{Kind: KindBlob, Blob: b} }

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.Text)
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.Blob)
	}
	return "?"
}

// bindLiteral converts a parsed literal to a Value with the column's
// affinity applied: integral floats collapse into INTEGER columns and
// integers widen into REAL columns.
func bindLiteral(l *sql.Literal, colType ColumnType) (Value, error) {
	v, err := literalValue(l)
	if err != nil {
		return Value{}, err
	}
	switch {
	case colType == ColReal && v.Kind == KindInteger:
		return Float(float64(v.Int)), nil
	case colType == ColInteger && v.Kind == KindFloat:
		if i := int64(v.Float); float64(i) == v.Float {
			return Integer(i), nil
		}
	}
	return v, nil
}

// literalValue converts a parsed literal by shape alone.
func literalValue(l *sql.Literal) (Value, error) {
	switch {
	case l.Null:
		return Null(), nil
	case l.String != nil:
		return Text(l.Unquote()), nil
	case l.Blob != nil:
		b, err := l.BlobBytes()
		if err != nil {
			return Value{}, fmt.Errorf("engine: %w", err)
		}
		return Blob(b), nil
	case l.Number != nil:
		if l.IsFloat() {
			f, err := strconv.ParseFloat(*l.Number, 64)
			if err != nil {
				return Value{}, fmt.Errorf("engine: bad numeric literal %q: %w", *l.Number, err)
			}
			return Float(f), nil
		}
		i, err := strconv.ParseInt(*l.Number, 10, 64)
		if err != nil {
			// Out of int64 range; fall back to the float reading.
			f, ferr := strconv.ParseFloat(*l.Number, 64)
			if ferr != nil {
				return Value{}, fmt.Errorf("engine: bad numeric literal %q: %w", *l.Number, err)
			}
			return Float(f), nil
		}
		return Integer(i), nil
	}
	return Value{}, fmt.Errorf("engine: empty literal")
}

// valuesEqual implements WHERE equality. Numeric values compare across
// the integer/float divide; everything else requires matching kinds.
func valuesEqual(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return asFloat(a) == asFloat(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		// SQL null never equals anything, itself included.
		return false
	case KindText:
		return a.Text == b.Text
	case KindBlob:
		return bytes.Equal(a.Blob, b.Blob)
	}
	return false
}

func isNumeric(v Value) bool {
	return v.Kind == KindInteger || v.Kind == KindFloat
}

func asFloat(v Value) float64 {
	if v.Kind == KindInteger {
		return float64(v.Int)
	}
	return v.Float
}
