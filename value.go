package libsqlproxy

import "strconv"

// Value is the tagged scalar every bound parameter and result column
// cell carries: exactly one of Integer, Real, Text is meaningful,
// selected by Kind (spec §3).
type Kind int

const (
	KindInteger Kind = iota
	KindReal
	KindText
	KindNull
)

type Value struct {
	Kind    Kind
	Integer int64
	Real    float64
	Text    string
}

func IntegerValue(v int64) Value  { return Value{Kind: KindInteger, Integer: v} }
func RealValue(v float64) Value   { return Value{Kind: KindReal, Real: v} }
func TextValue(v string) Value    { return Value{Kind: KindText, Text: v} }
func NullValue() Value            { return Value{Kind: KindNull} }

// ColumnType maps a Value's Kind to the wire-level SQLITE_* column
// type constant (spec §6).
func (v Value) ColumnType() int {
	switch v.Kind {
	case KindInteger:
		return SQLITE_INTEGER
	case KindReal:
		return SQLITE_FLOAT
	case KindText:
		return SQLITE_TEXT
	default:
		return SQLITE_NULL
	}
}

// AsInt64 converts on readout: Integer is exact, Real truncates,
// Text/Null coerce to 0 (spec §3).
func (v Value) AsInt64() int64 {
	switch v.Kind {
	case KindInteger:
		return v.Integer
	case KindReal:
		return int64(v.Real)
	default:
		return 0
	}
}

// AsFloat64 converts on readout: Real is exact, Integer casts,
// Text/Null coerce to 0.0.
func (v Value) AsFloat64() float64 {
	switch v.Kind {
	case KindReal:
		return v.Real
	case KindInteger:
		return float64(v.Integer)
	default:
		return 0.0
	}
}

// AsText renders the value the way sqlite3_column_text would after an
// implicit conversion: numbers stringify, Null becomes the literal
// "NULL".
func (v Value) AsText() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInteger:
		return strconv.FormatInt(v.Integer, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	default:
		return "NULL"
	}
}

// ByteLen is sqlite3_column_bytes: UTF-8 length for Text, a fixed 8
// for any numeric kind regardless of its textual representation, 0
// for Null. This fixed numeric width is the source behavior called
// out in spec §9 as possibly surprising; we keep it rather than
// silently "fixing" it.
func (v Value) ByteLen() int {
	switch v.Kind {
	case KindText:
		return len(v.Text)
	case KindInteger, KindReal:
		return 8
	default:
		return 0
	}
}
