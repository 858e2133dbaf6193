// Package codec implements §4.6's value codec: a tagged-union escaper used
// to build text-protocol SQL, and a server-field-type-keyed decoder table
// used by the result reader. Grounded in native/codecs.go's
// escapeString/escapeQuotes and mysql/types.go's Str*/Date/Time parsers,
// generalized per §9's design note from the teacher's interface{}-typed
// switch statements to an explicit sum type.
package codec

import (
	"fmt"
	"time"
)

// Value is the tagged union described in §9: every Go value the codec
// knows how to render as SQL text is one of these kinds. Unknown types
// fall back to the string escaper at the call site, matching §4.6.
type Value struct {
	kind valueKind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	bs   []byte
	t    time.Time
	dur  time.Duration
	seq  []Value
	m    map[string]Value
}

type valueKind int

const (
	KindNull valueKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindDate
	KindDateTime
	KindTime
	KindDuration
	KindSeq
	KindMap
)

func Null() Value                 { return Value{kind: KindNull} }
func Bool(v bool) Value           { return Value{kind: KindBool, b: v} }
func Int(v int64) Value           { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value         { return Value{kind: KindUint, u: v} }
func Float(v float64) Value       { return Value{kind: KindFloat, f: v} }
func Str(v string) Value          { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value        { return Value{kind: KindBytes, bs: v} }
func Date(v time.Time) Value      { return Value{kind: KindDate, t: v} }
func DateTime(v time.Time) Value  { return Value{kind: KindDateTime, t: v} }
func Time(v time.Time) Value      { return Value{kind: KindTime, t: v} }
func Duration(v time.Duration) Value { return Value{kind: KindDuration, dur: v} }
func Seq(v []Value) Value         { return Value{kind: KindSeq, seq: v} }
func Map(v map[string]Value) Value { return Value{kind: KindMap, m: v} }

// Any unwraps a Value back to a native Go value, for callers outside
// this package that need the decoded result rather than its SQL text
// form (database/sql's driver.Value conversion, application code
// reading a Rows cursor directly).
func (v Value) Any() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.bs
	case KindDate, KindDateTime, KindTime:
		return v.t
	case KindDuration:
		return v.dur
	case KindSeq:
		out := make([]interface{}, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Any()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.Any()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts an arbitrary Go value to a Value using the same
// dispatch a caller would reach for when building a query by hand. This
// is the entry point §4.6 describes as falling back to the string escaper
// for unrecognized types.
func FromAny(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return Str(x)
	case []byte:
		return Bytes(x)
	case time.Time:
		return DateTime(x)
	case time.Duration:
		return Duration(x)
	case []interface{}:
		vs := make([]Value, len(x))
		for i, e := range x {
			vs[i] = FromAny(e)
		}
		return Seq(vs)
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = FromAny(e)
		}
		return Map(m)
	default:
		return Str(fmt.Sprint(x))
	}
}
