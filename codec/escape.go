package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/long2ice/asyncmy/errors"
)

// Escape renders v as a literal suitable for interpolation into the text
// protocol, per §4.6. This mirrors native/codecs.go's escapeString /
// escapeQuotes pairing: everything that isn't already a safe numeric
// literal goes through quote-and-backslash escaping. noBackslashEscapes
// selects the alternate quoting mode the server advertises via
// SERVER_STATUS_NO_BACKSLASH_ESCAPES, in which only `'` is doubled and
// no backslash sequence is special.
func Escape(v Value, noBackslashEscapes bool) (string, error) {
	switch v.kind {
	case KindNull:
		return "NULL", nil
	case KindBool:
		if v.b {
			return "1", nil
		}
		return "0", nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindUint:
		return strconv.FormatUint(v.u, 10), nil
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return quoteString(v.s, noBackslashEscapes), nil
	case KindBytes:
		return quoteBytes(v.bs, noBackslashEscapes), nil
	case KindDate:
		return quoteString(v.t.Format("2006-01-02"), noBackslashEscapes), nil
	case KindDateTime:
		return quoteString(v.t.Format("2006-01-02 15:04:05.999999"), noBackslashEscapes), nil
	case KindTime:
		return quoteString(formatTimeOfDay(v.t), noBackslashEscapes), nil
	case KindDuration:
		return quoteString(formatDuration(v.dur), noBackslashEscapes), nil
	case KindSeq:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			s, err := Escape(e, noBackslashEscapes)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ",") + ")", nil
	case KindMap:
		// Maps have no canonical SQL literal form; render as a JSON-ish
		// object of escaped values, for use with JSON columns.
		var b strings.Builder
		b.WriteByte('{')
		first := true
		for k, e := range v.m {
			if !first {
				b.WriteByte(',')
			}
			first = false
			s, err := Escape(e, noBackslashEscapes)
			if err != nil {
				return "", err
			}
			b.WriteString(quoteString(k, noBackslashEscapes))
			b.WriteByte(':')
			b.WriteString(s)
		}
		b.WriteByte('}')
		return b.String(), nil
	default:
		return "NULL", nil
	}
}

// formatFloat renders f the way the text protocol requires: a repr-style
// shortest decimal, with an explicit `e0` exponent appended when the
// formatted form carries no exponent marker of its own. Inf/NaN have no
// SQL literal form, per §4.6, so they are rejected rather than silently
// emitting invalid text like `+Inf`.
func formatFloat(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", errors.New(errors.KindProgrammingError, "cannot escape a non-finite float for SQL interpolation")
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, "eE") {
		s += "e0"
	}
	return s, nil
}

// quoteString applies the text protocol's string-literal quoting rule.
// With noBackslashEscapes false (the default), \0, \n, \r, \, ', ", \x1a
// are backslash-escaped, per native/codecs.go's escapeQuotes. With it
// true (SERVER_STATUS_NO_BACKSLASH_ESCAPES), only `'` is doubled and no
// other byte is treated specially.
func quoteString(s string, noBackslashEscapes bool) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	if noBackslashEscapes {
		for i := 0; i < len(s); i++ {
			if s[i] == '\'' {
				b.WriteByte('\'')
			}
			b.WriteByte(s[i])
		}
		b.WriteByte('\'')
		return b.String()
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// quoteBytes renders a []byte literal in the `_binary'…'` form §4.6
// documents, applying the same quoting rule quoteString does (bytes
// escape exactly like a string's bytes, just introduced by the
// _binary charset-introducer instead of a bare quote).
func quoteBytes(b []byte, noBackslashEscapes bool) string {
	var out strings.Builder
	out.WriteString("_binary'")
	for _, c := range b {
		if noBackslashEscapes {
			if c == '\'' {
				out.WriteByte('\'')
			}
			out.WriteByte(c)
			continue
		}
		switch c {
		case 0:
			out.WriteString(`\0`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\\':
			out.WriteString(`\\`)
		case '\'':
			out.WriteString(`\'`)
		case '"':
			out.WriteString(`\"`)
		case 0x1a:
			out.WriteString(`\Z`)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte('\'')
	return out.String()
}

func formatTimeOfDay(t time.Time) string {
	return t.Format("15:04:05.999999")
}

// formatDuration renders a Duration as MySQL TIME literal text, including
// the sign and hours beyond 24 that TIME columns support.
func formatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	secs := d / time.Second
	d -= secs * time.Second
	if d == 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, mins, secs)
	}
	micros := d / time.Microsecond
	return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, hours, mins, secs, micros)
}
