package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/proto"
)

func mustEscape(t *testing.T, v Value) string {
	t.Helper()
	s, err := Escape(v, false)
	assert.NoError(t, err)
	return s
}

func TestEscape(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null(), "NULL"},
		{Bool(true), "1"},
		{Bool(false), "0"},
		{Int(-42), "-42"},
		{Uint(42), "42"},
		{Float(3.5), "3.5e0"},
		{Str("it's"), `'it\'s'`},
		{Bytes([]byte{0xDE, 0xAD}), "_binary'\xde\xad'"},
		{Seq([]Value{Int(1), Int(2)}), "(1,2)"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mustEscape(t, c.v))
	}
}

func TestEscapeFloatExponent(t *testing.T) {
	assert.Equal(t, "1e+10", mustEscape(t, Float(1e10)))
	assert.Equal(t, "3.14e0", mustEscape(t, Float(3.14)))
}

func TestEscapeFloatNonFiniteIsProgrammingError(t *testing.T) {
	for _, f := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := Escape(Float(f), false)
		var derr *errors.Error
		if assert.ErrorAs(t, err, &derr) {
			assert.Equal(t, errors.KindProgrammingError, derr.Kind)
		}
	}
}

func TestEscapeNoBackslashEscapes(t *testing.T) {
	s, err := Escape(Str(`it's a "test"\n`), true)
	assert.NoError(t, err)
	assert.Equal(t, `'it''s a "test"\n'`, s)
}

func TestEscapeDateTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "'2024-01-02'", mustEscape(t, Date(ts)))
	assert.Equal(t, "'2024-01-02 03:04:05'", mustEscape(t, DateTime(ts)))
}

func TestEscapeDuration(t *testing.T) {
	assert.Equal(t, "'25:00:01'", mustEscape(t, Duration(25*time.Hour+time.Second)))
	assert.Equal(t, "'-00:00:30'", mustEscape(t, Duration(-30*time.Second)))
}

func TestDecodeTextInteger(t *testing.T) {
	v, err := DecodeText(proto.TypeLong, false, false, []byte("123"))
	assert.NoError(t, err)
	assert.Equal(t, KindInt, v.kind)
	assert.Equal(t, int64(123), v.i)

	v, err = DecodeText(proto.TypeLong, true, false, []byte("4294967295"))
	assert.NoError(t, err)
	assert.Equal(t, KindUint, v.kind)
	assert.Equal(t, uint64(4294967295), v.u)
}

func TestDecodeTextDate(t *testing.T) {
	v, err := DecodeText(proto.TypeDate, false, false, []byte("2024-06-01"))
	assert.NoError(t, err)
	assert.Equal(t, KindDate, v.kind)
	assert.Equal(t, 2024, v.t.Year())

	v, err = DecodeText(proto.TypeDate, false, false, []byte("0000-00-00"))
	assert.NoError(t, err)
	assert.Equal(t, KindNull, v.kind)
}

func TestDecodeTextDatetimeFractional(t *testing.T) {
	v, err := DecodeText(proto.TypeDatetime, false, false, []byte("2024-06-01 10:20:30.500000"))
	assert.NoError(t, err)
	assert.Equal(t, KindDateTime, v.kind)
	assert.Equal(t, 500000000, v.t.Nanosecond())
}

func TestDecodeTextTimeNegative(t *testing.T) {
	v, err := DecodeText(proto.TypeTime, false, false, []byte("-10:00:00"))
	assert.NoError(t, err)
	assert.Equal(t, KindDuration, v.kind)
	assert.Equal(t, -10*time.Hour, v.dur)
}

func TestDecodeTextBlobVsString(t *testing.T) {
	v, err := DecodeText(proto.TypeVarString, false, true, []byte{0x00, 0x01})
	assert.NoError(t, err)
	assert.Equal(t, KindBytes, v.kind)

	v, err = DecodeText(proto.TypeVarString, false, false, []byte("hi"))
	assert.NoError(t, err)
	assert.Equal(t, KindString, v.kind)
	assert.Equal(t, "hi", v.s)
}

func TestFromAny(t *testing.T) {
	assert.Equal(t, KindNull, FromAny(nil).kind)
	assert.Equal(t, KindInt, FromAny(7).kind)
	assert.Equal(t, KindString, FromAny("x").kind)
	seq := FromAny([]interface{}{1, "a"})
	assert.Equal(t, KindSeq, seq.kind)
	assert.Len(t, seq.seq, 2)
}

func TestDecodeCharsetPassthroughUTF8(t *testing.T) {
	s, err := DecodeCharset("utf8mb4", []byte("héllo"))
	assert.NoError(t, err)
	assert.Equal(t, "héllo", s)
}

func TestDecodeCharsetLatin1(t *testing.T) {
	// 0xE9 in latin1/windows-1252 is é.
	s, err := DecodeCharset("latin1", []byte{0xE9})
	assert.NoError(t, err)
	assert.Equal(t, "é", s)
}

func TestValueAnyRoundTrip(t *testing.T) {
	assert.Nil(t, Null().Any())
	assert.Equal(t, int64(-7), Int(-7).Any())
	assert.Equal(t, uint64(7), Uint(7).Any())
	assert.Equal(t, "x", Str("x").Any())
	assert.Equal(t, []byte{1, 2}, Bytes([]byte{1, 2}).Any())

	seq := Seq([]Value{Int(1), Str("a")}).Any().([]interface{})
	assert.Equal(t, []interface{}{int64(1), "a"}, seq)
}
