package codec

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/long2ice/asyncmy/errors"
)

// charsetEncodings maps the subset of MySQL collation names this driver
// recognizes to a golang.org/x/text/encoding.Encoding capable of decoding
// column bytes to UTF-8 Go strings. utf8/utf8mb4/binary need no entry:
// utf8 bytes pass through unchanged and binary columns are never
// charset-decoded (§4.6).
var charsetEncodings = map[string]encoding.Encoding{
	"latin1":   charmap.Windows1252,
	"latin2":   charmap.ISO8859_2,
	"koi8r":    charmap.KOI8R,
	"ascii":    charmap.Windows1252,
	"cp1250":   charmap.Windows1250,
	"cp1251":   charmap.Windows1251,
	"cp1256":   charmap.Windows1256,
	"cp1257":   charmap.Windows1257,
	"greek":    charmap.ISO8859_7,
	"hebrew":   charmap.ISO8859_8,
	"sjis":     japanese.ShiftJIS,
	"ujis":     japanese.EUCJP,
	"euckr":    korean.EUCKR,
	"gb2312":   simplifiedchinese.HZGB2312,
	"gbk":      simplifiedchinese.GBK,
	"big5":     traditionalchinese.Big5,
}

// DecodeCharset converts raw column bytes from the connection charset
// named by collation to a UTF-8 string. utf8, utf8mb4 and any collation
// not present in charsetEncodings are returned unchanged, on the
// assumption that the server is sending valid UTF-8 (true for utf8mb4
// and for any charset this table doesn't know how to reinterpret).
func DecodeCharset(collation string, raw []byte) (string, error) {
	enc, ok := charsetEncodings[collation]
	if !ok {
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(errors.KindDataError, "decode column charset "+collation, err)
	}
	return string(out), nil
}
