// Package resultset implements the result-set protocol of §4.5: field
// descriptors, buffered and unbuffered ("streaming") row decode,
// multi-resultset dispatch and the LOAD DATA LOCAL INFILE sub-protocol.
// Grounded in result.go's getResult/getResSetHeadPacket/getFieldPacket
// dispatch loop, generalized from the teacher's single panic-driven
// Result/Row pair to an explicit-error streaming Rows cursor plus a
// field-type-keyed column decoder (codec.DecodeText).
package resultset

import "github.com/long2ice/asyncmy/proto"

// Field is one column descriptor from the result-set header, read before
// any row data, per §4.5. Ported field-for-field from result.go's Field
// struct, adding Charset (which the teacher's struct comments out) since
// §4.6's charset-aware decode needs it.
type Field struct {
	Catalog  string
	Schema   string
	Table    string
	OrgTable string
	Name     string
	OrgName  string
	Charset  uint16
	Length   uint32
	Type     byte
	Flags    uint16
	Decimals byte
}

// decodeField parses one Protocol::ColumnDefinition41 packet, per §4.5.
func decodeField(raw []byte) (*Field, error) {
	p := proto.NewPacket(raw)
	f := &Field{}

	catalog, _, err := p.ReadLengthEncodedString()
	if err != nil {
		return nil, err
	}
	f.Catalog = string(catalog)

	schema, _, err := p.ReadLengthEncodedString()
	if err != nil {
		return nil, err
	}
	f.Schema = string(schema)

	table, _, err := p.ReadLengthEncodedString()
	if err != nil {
		return nil, err
	}
	f.Table = string(table)

	orgTable, _, err := p.ReadLengthEncodedString()
	if err != nil {
		return nil, err
	}
	f.OrgTable = string(orgTable)

	name, _, err := p.ReadLengthEncodedString()
	if err != nil {
		return nil, err
	}
	f.Name = string(name)

	orgName, _, err := p.ReadLengthEncodedString()
	if err != nil {
		return nil, err
	}
	f.OrgName = string(orgName)

	if _, _, err := p.ReadLengthEncodedInt(); err != nil { // length of fixed fields, always 0x0c
		return nil, err
	}

	charset, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	f.Charset = charset

	length, err := p.ReadUint32()
	if err != nil {
		return nil, err
	}
	f.Length = length

	typ, err := p.ReadByte()
	if err != nil {
		return nil, err
	}
	f.Type = typ

	flags, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	f.Flags = flags

	decimals, err := p.ReadByte()
	if err != nil {
		return nil, err
	}
	f.Decimals = decimals

	return f, nil
}

// Unsigned reports whether the column was declared UNSIGNED.
func (f *Field) Unsigned() bool { return f.Flags&proto.FlagUnsigned != 0 }

// IsBinary reports whether the column's bytes should be treated as
// opaque binary rather than charset-decoded text, per §4.6.
func (f *Field) IsBinary() bool { return f.Charset == proto.CharsetBinary }
