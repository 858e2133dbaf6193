package proto

import (
	"bytes"

	"github.com/long2ice/asyncmy/errors"
)

// Packet is a logical protocol message: the payload produced by one
// Framer.ReadPacket call, together with a read cursor. It is the Go
// analogue of the teacher's pktReader, but operates over an already
// fully-read (and, per §4.1, already frame-stitched) byte slice rather
// than pulling bytes lazily off the wire — simpler to reason about and
// just as cheap, since ReadPacket already had to buffer the whole payload
// to detect the continuation-frame boundary.
type Packet struct {
	buf []byte
	pos int
}

func NewPacket(buf []byte) *Packet { return &Packet{buf: buf} }

func (p *Packet) Len() int       { return len(p.buf) }
func (p *Packet) Pos() int       { return p.pos }
func (p *Packet) Remaining() int { return len(p.buf) - p.pos }
func (p *Packet) Bytes() []byte  { return p.buf }

// PeekByte returns the first byte of the packet without consuming it, or 0
// if the packet is empty. Packet kind is always determined by this byte.
func (p *Packet) PeekByte() byte {
	if len(p.buf) == 0 {
		return 0
	}
	return p.buf[0]
}

// Kind values per §3's Packet kind dispatch table.
type Kind int

const (
	KindResultSetHeader Kind = iota
	KindOK
	KindErr
	KindEOF
	KindAuthSwitchRequest
	KindExtraAuthData
	KindLocalInfile
)

// Kind classifies the packet by its first byte and (for the 0xFE
// ambiguity) its length, per §3 and §9's Open Question #3:
// is_auth_switch_request is identical to is_eof on the first byte; the
// two are disambiguated only by packet length (>= 9 is AuthSwitchRequest,
// < 9 is EOF).
func (p *Packet) Kind() Kind {
	if len(p.buf) == 0 {
		return KindEOF
	}
	switch p.buf[0] {
	case 0x00:
		if len(p.buf) >= 7 {
			return KindOK
		}
	case 0xFF:
		return KindErr
	case 0xFB:
		return KindLocalInfile
	case 0x01:
		return KindExtraAuthData
	case 0xFE:
		if len(p.buf) >= 9 {
			return KindAuthSwitchRequest
		}
		return KindEOF
	}
	if p.buf[0] >= 0x01 && p.buf[0] <= 0xFA {
		return KindResultSetHeader
	}
	return KindOK
}

func (p *Packet) IsOK() bool                 { return p.Kind() == KindOK }
func (p *Packet) IsEOF() bool                { return p.Kind() == KindEOF }
func (p *Packet) IsErr() bool                { return p.Kind() == KindErr }
func (p *Packet) IsAuthSwitchRequest() bool  { return p.Kind() == KindAuthSwitchRequest }
func (p *Packet) IsExtraAuthData() bool      { return p.Kind() == KindExtraAuthData }
func (p *Packet) IsLocalInfile() bool        { return p.Kind() == KindLocalInfile }
func (p *Packet) IsResultSetHeader() bool    { return p.Kind() == KindResultSetHeader }

func (p *Packet) need(n int) error {
	if p.pos+n > len(p.buf) {
		return errors.ErrMalformed
	}
	return nil
}

// ReadByte consumes and returns the next byte.
func (p *Packet) ReadByte() (byte, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	b := p.buf[p.pos]
	p.pos++
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (p *Packet) Skip(n int) error {
	if err := p.need(n); err != nil {
		return err
	}
	p.pos += n
	return nil
}

// ReadUint8/16/24/32/64 read fixed-width little-endian integers.
func (p *Packet) ReadUint8() (uint8, error) {
	b, err := p.ReadByte()
	return b, err
}

func (p *Packet) ReadUint16() (uint16, error) {
	if err := p.need(2); err != nil {
		return 0, err
	}
	v := DecodeU16(p.buf[p.pos:])
	p.pos += 2
	return v, nil
}

func (p *Packet) ReadUint24() (uint32, error) {
	if err := p.need(3); err != nil {
		return 0, err
	}
	v := DecodeU24(p.buf[p.pos:])
	p.pos += 3
	return v, nil
}

func (p *Packet) ReadUint32() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := DecodeU32(p.buf[p.pos:])
	p.pos += 4
	return v, nil
}

func (p *Packet) ReadUint64() (uint64, error) {
	if err := p.need(8); err != nil {
		return 0, err
	}
	v := DecodeU64(p.buf[p.pos:])
	p.pos += 8
	return v, nil
}

// ReadBytes consumes and returns the next n raw bytes.
func (p *Packet) ReadBytes(n int) ([]byte, error) {
	if err := p.need(n); err != nil {
		return nil, err
	}
	b := p.buf[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

// ReadRest returns (and consumes) every remaining byte in the packet.
func (p *Packet) ReadRest() []byte {
	b := p.buf[p.pos:]
	p.pos = len(p.buf)
	return b
}

// ReadString reads a NUL-terminated byte run. Returns (nil, false) if no
// NUL byte remains in the packet (§4.2).
func (p *Packet) ReadString() ([]byte, bool) {
	idx := bytes.IndexByte(p.buf[p.pos:], 0)
	if idx < 0 {
		return nil, false
	}
	s := p.buf[p.pos : p.pos+idx]
	p.pos += idx + 1
	return s, true
}

// ReadStringToEOF reads the rest of the packet, treating it as a
// NUL-terminated-or-to-EOF string (used for the trailing auth plugin name
// in the initial handshake packet, which some servers omit the trailing
// NUL for).
func (p *Packet) ReadStringToEOF() []byte {
	if s, ok := p.ReadString(); ok {
		return s
	}
	return p.ReadRest()
}

// lenEncNull is the sentinel first byte for a NULL length-encoded integer
// or string (§4.2).
const lenEncNull = 0xFB

// ReadLengthEncodedInt decodes a length-encoded integer per §4.2:
// < 0xFB is the literal value, 0xFB is NULL, 0xFC/0xFD/0xFE select a
// following uint16/uint24/uint64. ok is false for NULL.
func (p *Packet) ReadLengthEncodedInt() (val uint64, ok bool, err error) {
	b, err := p.ReadByte()
	if err != nil {
		return 0, false, err
	}
	switch {
	case b < lenEncNull:
		return uint64(b), true, nil
	case b == lenEncNull:
		return 0, false, nil
	case b == 0xFC:
		v, err := p.ReadUint16()
		return uint64(v), true, err
	case b == 0xFD:
		v, err := p.ReadUint24()
		return uint64(v), true, err
	case b == 0xFE:
		v, err := p.ReadUint64()
		return v, true, err
	}
	return 0, false, errors.ErrMalformed
}

// ReadLengthEncodedString reads a length-encoded integer followed by that
// many raw bytes. ok is false when the length was NULL.
func (p *Packet) ReadLengthEncodedString() (b []byte, ok bool, err error) {
	n, ok, err := p.ReadLengthEncodedInt()
	if err != nil || !ok {
		return nil, ok, err
	}
	b, err = p.ReadBytes(int(n))
	return b, true, err
}

// AppendLengthEncodedInt appends the shortest length-encoded-int form of
// v to dst, per §8's invariant that encoding always chooses the shortest
// prefix.
func AppendLengthEncodedInt(dst []byte, v uint64) []byte {
	switch {
	case v < lenEncNull:
		return append(dst, byte(v))
	case v <= 0xFFFF:
		return append(append(dst, 0xFC), EncodeU16(uint16(v))...)
	case v <= 0xFFFFFF:
		return append(append(dst, 0xFD), EncodeU24(uint32(v))...)
	default:
		return append(append(dst, 0xFE), EncodeU64(v)...)
	}
}

// AppendLengthEncodedString appends the length-encoded-string form of b
// (length-encoded int length, followed by the raw bytes).
func AppendLengthEncodedString(dst []byte, b []byte) []byte {
	dst = AppendLengthEncodedInt(dst, uint64(len(b)))
	return append(dst, b...)
}

// AppendNulString appends b followed by a single NUL byte.
func AppendNulString(dst []byte, b []byte) []byte {
	return append(append(dst, b...), 0)
}
