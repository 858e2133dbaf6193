package resultset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/long2ice/asyncmy/proto"
)

type fakeIO struct {
	packets [][]byte
	pos     int
	writes  [][]byte
}

func (f *fakeIO) ReadPacket() ([]byte, error) {
	if f.pos >= len(f.packets) {
		return nil, assertEOF{}
	}
	p := f.packets[f.pos]
	f.pos++
	return p, nil
}

func (f *fakeIO) WritePacket(payload []byte) error {
	f.writes = append(f.writes, payload)
	return nil
}

func (f *fakeIO) WriteCommand(opcode byte, body []byte) error {
	f.writes = append(f.writes, append([]byte{opcode}, body...))
	return nil
}

type assertEOF struct{}

func (assertEOF) Error() string { return "fakeIO: exhausted" }

func okPacket(affected, insertID uint64) []byte {
	var buf []byte
	buf = append(buf, 0x00)
	buf = proto.AppendLengthEncodedInt(buf, affected)
	buf = proto.AppendLengthEncodedInt(buf, insertID)
	buf = append(buf, proto.EncodeU16(2)...) // status: autocommit
	buf = append(buf, proto.EncodeU16(0)...) // warnings
	return buf
}

func TestReadResultSetOKOnly(t *testing.T) {
	io := &fakeIO{packets: [][]byte{okPacket(3, 0)}}
	rows, err := ReadResultSet(io, true)
	assert.NoError(t, err)
	assert.NotNil(t, rows.OK())
	assert.Equal(t, uint64(3), rows.OK().AffectedRows)
}

func TestDecodeOK(t *testing.T) {
	ok, err := decodeOK(okPacket(5, 42))
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), ok.AffectedRows)
	assert.Equal(t, uint64(42), ok.LastInsertID)
}

func TestHasMoreResults(t *testing.T) {
	r := &OKResult{Status: proto.StatusMoreResultsExists}
	assert.True(t, r.HasMoreResults())
	r2 := &OKResult{Status: 0}
	assert.False(t, r2.HasMoreResults())
}

func TestSplitTextRowNulls(t *testing.T) {
	var raw []byte
	raw = proto.AppendLengthEncodedString(raw, []byte("1"))
	raw = append(raw, 0xFB) // NULL
	row := splitTextRow(raw, 2)
	assert.Equal(t, []byte("1"), row[0])
	assert.Nil(t, row[1])
}
