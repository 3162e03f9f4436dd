package quarry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quarrydb/quarry/engine"
)

// ValueKind tags the dynamic type of a boundary Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

var kindNames = map[ValueKind]string{
	KindNull:    "null",
	KindInteger: "integer",
	KindFloat:   "float",
	KindText:    "text",
	KindBlob:    "blob",
}

func (k ValueKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is the tagged representation rows cross the boundary in:
// null, 64-bit signed integer, 64-bit IEEE-754 float, UTF-8 text, or a
// byte blob. The conversion from engine values is lossless.
type Value struct {
	kind  ValueKind
	int_  int64
	float float64
	text  string
	blob  []byte
}

func Null() Value           { return Value{kind: KindNull} }
func Integer(i int64) Value { return Value{kind: KindInteger, int_: i} }
func Float(f float64) Value { return Value{kind: KindFloat, float: f} }
func Text(s string) Value   { return Value{kind: KindText, text: s} }
func Blob(b []byte) Value   { return Value{kind: KindBlob, blob: b} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) Int() int64      { return v.int_ }
func (v Value) Float() float64  { return v.float }
func (v Value) Text() string    { return v.text }
func (v Value) Blob() []byte    { return v.blob }

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.int_, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.text)
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.blob)
	}
	return "?"
}

// Equal reports exact equality: same kind, same payload.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInteger:
		return v.int_ == w.int_
	case KindFloat:
		return v.float == w.float
	case KindText:
		return v.text == w.text
	case KindBlob:
		return string(v.blob) == string(w.blob)
	}
	return false
}

type valueJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the value as {"type": ..., "value": ...} with blobs
// in base64, so rows survive the host payload boundary.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Type: v.kind.String()}
	var err error
	switch v.kind {
	case KindNull:
	case KindInteger:
		out.Value, err = json.Marshal(v.int_)
	case KindFloat:
		out.Value, err = json.Marshal(v.float)
	case KindText:
		out.Value, err = json.Marshal(v.text)
	case KindBlob:
		out.Value, err = json.Marshal(base64.StdEncoding.EncodeToString(v.blob))
	default:
		err = fmt.Errorf("quarry: cannot marshal %v", v.kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "null":
		*v = Null()
		return nil
	case "integer":
		var i int64
		if err := json.Unmarshal(in.Value, &i); err != nil {
			return err
		}
		*v = Integer(i)
		return nil
	case "float":
		var f float64
		if err := json.Unmarshal(in.Value, &f); err != nil {
			return err
		}
		*v = Float(f)
		return nil
	case "text":
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case "blob":
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		*v = Blob(b)
		return nil
	}
	return fmt.Errorf("quarry: unknown value type %q", in.Type)
}

// valueFromEngine converts an internal engine value to the boundary
// representation, preserving type and payload exactly.
func valueFromEngine(v engine.Value) Value {
	switch v.Kind {
	case engine.KindInteger:
		return Integer(v.Int)
	case engine.KindFloat:
		return Float(v.Float)
	case engine.KindText:
		return Text(v.Text)
	case engine.KindBlob:
		return Blob(v.Blob)
	}
	return Null()
}
