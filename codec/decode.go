package codec

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/proto"
)

// dateLayout mirrors mysql/types.go's StrToDate parsing, generalized from
// the teacher's fixed-width manual parsing to time.Parse. DATETIME and
// TIMESTAMP, whose fractional part is variable width (0-6 digits), are
// parsed by parseDateTime below instead of a fixed layout.
const (
	dateLayout = "2006-01-02"
)

// DecodeText decodes one text-protocol column value: raw is the exact
// length-encoded-string payload the server sent, already stripped of its
// length prefix. fieldType is the column's proto.TypeXxx code, unsigned
// reports whether proto.FlagUnsigned was set, and isBinary reports
// whether the column is a BINARY/VARBINARY/BLOB carrying uninterpreted
// bytes (proto.CharsetBinary), per §4.6's decode table. A nil raw with
// ok=false (NULL) is the caller's responsibility to check before calling.
func DecodeText(fieldType byte, unsigned bool, isBinary bool, raw []byte) (Value, error) {
	s := string(raw)
	switch fieldType {
	case proto.TypeTiny, proto.TypeShort, proto.TypeLong, proto.TypeInt24, proto.TypeLongLong, proto.TypeYear:
		if unsigned {
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return Value{}, errors.Wrap(errors.KindDataError, "decode unsigned integer column", err)
			}
			return Uint(v), nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, errors.Wrap(errors.KindDataError, "decode integer column", err)
		}
		return Int(v), nil

	case proto.TypeFloat, proto.TypeDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, errors.Wrap(errors.KindDataError, "decode float column", err)
		}
		return Float(v), nil

	case proto.TypeDecimal, proto.TypeNewDecimal:
		// DECIMAL is decoded as its exact textual representation rather
		// than a floating approximation, per the Open Question decision
		// recorded in the grounding ledger: no arbitrary-precision decimal
		// library appears anywhere in the retrieved pack, so the raw text
		// is preserved verbatim and callers that need arithmetic parse it
		// themselves.
		return Str(s), nil

	case proto.TypeDate, proto.TypeNewDate:
		if s == "0000-00-00" || s == "" {
			return Null(), nil
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return Value{}, errors.Wrap(errors.KindDataError, "decode date column", err)
		}
		return Date(t), nil

	case proto.TypeDatetime, proto.TypeTimestamp:
		if strings.HasPrefix(s, "0000-00-00") || s == "" {
			return Null(), nil
		}
		t, err := parseDateTime(s)
		if err != nil {
			return Value{}, errors.Wrap(errors.KindDataError, "decode datetime column", err)
		}
		return DateTime(t), nil

	case proto.TypeTime:
		d, err := parseTimeOfDay(s)
		if err != nil {
			return Value{}, errors.Wrap(errors.KindDataError, "decode time column", err)
		}
		return Duration(d), nil

	case proto.TypeBit:
		return Bytes(raw), nil

	case proto.TypeVarchar, proto.TypeVarString, proto.TypeString, proto.TypeEnum, proto.TypeSet,
		proto.TypeTinyBlob, proto.TypeMediumBlob, proto.TypeBlob, proto.TypeLongBlob, proto.TypeJSON:
		if isBinary {
			return Bytes(raw), nil
		}
		return Str(s), nil

	case proto.TypeNull:
		return Null(), nil

	default:
		return Bytes(raw), nil
	}
}

// parseDateTime parses MySQL's DATETIME/TIMESTAMP text form, which omits
// the fractional-second separator entirely when there is no fractional
// part, mirroring mysql/types.go's StrToDatetime.
func parseDateTime(s string) (time.Time, error) {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return time.Parse("2006-01-02 15:04:05.999999", s)
	}
	if len(s) == len(dateLayout) {
		return time.Parse(dateLayout, s)
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

// parseTimeOfDay parses MySQL's TIME text form into a Duration, handling
// the leading sign and the hours-beyond-24 range TIME columns allow,
// mirroring mysql/types.go's StrToTime.
func parseTimeOfDay(s string) (time.Duration, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var frac time.Duration
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		fracStr := s[idx+1:]
		s = s[:idx]
		for len(fracStr) < 6 {
			fracStr += "0"
		}
		fracStr = fracStr[:6]
		micros, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, err
		}
		frac = time.Duration(micros) * time.Microsecond
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.ErrMalformed
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second + frac
	if neg {
		d = -d
	}
	return d, nil
}

// DecodeBinary decodes one binary-protocol (prepared statement result
// row) column value, reading directly from p per the fixed-width and
// length-encoded layouts §4.5 describes for COM_STMT_EXECUTE result sets.
// This has no direct analogue in the teacher, which never implemented
// prepared statements; the per-type layouts follow the same encoding
// rules §4.2 defines for the length-encoded and fixed-width primitives
// used everywhere else in the protocol.
func DecodeBinary(fieldType byte, unsigned bool, p *proto.Packet) (Value, error) {
	switch fieldType {
	case proto.TypeTiny:
		b, err := p.ReadByte()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint(uint64(b)), nil
		}
		return Int(int64(int8(b))), nil

	case proto.TypeShort, proto.TypeYear:
		v, err := p.ReadUint16()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint(uint64(v)), nil
		}
		return Int(int64(int16(v))), nil

	case proto.TypeLong, proto.TypeInt24:
		v, err := p.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint(uint64(v)), nil
		}
		return Int(int64(int32(v))), nil

	case proto.TypeLongLong:
		v, err := p.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		if unsigned {
			return Uint(v), nil
		}
		return Int(int64(v)), nil

	case proto.TypeFloat:
		v, err := p.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		return Float(float64(math.Float32frombits(v))), nil

	case proto.TypeDouble:
		v, err := p.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		return Float(math.Float64frombits(v)), nil

	case proto.TypeDate, proto.TypeDatetime, proto.TypeTimestamp:
		return decodeBinaryTemporal(p)

	case proto.TypeTime:
		return decodeBinaryDuration(p)

	case proto.TypeDecimal, proto.TypeNewDecimal,
		proto.TypeVarchar, proto.TypeVarString, proto.TypeString, proto.TypeEnum, proto.TypeSet,
		proto.TypeTinyBlob, proto.TypeMediumBlob, proto.TypeBlob, proto.TypeLongBlob, proto.TypeJSON, proto.TypeBit:
		b, ok, err := p.ReadLengthEncodedString()
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Null(), nil
		}
		return Bytes(b), nil

	case proto.TypeNull:
		return Null(), nil

	default:
		b, ok, err := p.ReadLengthEncodedString()
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Null(), nil
		}
		return Bytes(b), nil
	}
}

// decodeBinaryTemporal decodes the variable-length DATE/DATETIME/TIMESTAMP
// binary row encoding: a length byte followed by 0, 4, 7 or 11 bytes of
// year/month/day/hour/minute/second/microsecond.
func decodeBinaryTemporal(p *proto.Packet) (Value, error) {
	n, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	if n == 0 {
		return Null(), nil
	}
	year, err := p.ReadUint16()
	if err != nil {
		return Value{}, err
	}
	month, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	day, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var hour, min, sec byte
	var micros uint32
	if n >= 7 {
		if hour, err = p.ReadByte(); err != nil {
			return Value{}, err
		}
		if min, err = p.ReadByte(); err != nil {
			return Value{}, err
		}
		if sec, err = p.ReadByte(); err != nil {
			return Value{}, err
		}
	}
	if n >= 11 {
		if micros, err = p.ReadUint32(); err != nil {
			return Value{}, err
		}
	}
	t := time.Date(int(year), time.Month(month), int(day), int(hour), int(min), int(sec), int(micros)*1000, time.UTC)
	return DateTime(t), nil
}

// decodeBinaryDuration decodes the variable-length TIME binary row
// encoding: a length byte, a sign byte, a 4-byte day count, then
// hour/minute/second and an optional 4-byte microsecond count.
func decodeBinaryDuration(p *proto.Packet) (Value, error) {
	n, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	if n == 0 {
		return Duration(0), nil
	}
	sign, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	days, err := p.ReadUint32()
	if err != nil {
		return Value{}, err
	}
	hour, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	min, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	sec, err := p.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var micros uint32
	if n >= 12 {
		if micros, err = p.ReadUint32(); err != nil {
			return Value{}, err
		}
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hour)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(micros)*time.Microsecond
	if sign != 0 {
		d = -d
	}
	return Duration(d), nil
}
