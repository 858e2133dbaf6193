package resultset

import (
	"github.com/long2ice/asyncmy/codec"
	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/proto"
)

// PacketIO is the minimal transport a result-set reader needs: the
// subset of session.Session's exported surface this package depends on.
// Accepting an interface here instead of importing the session package
// directly keeps resultset testable against a fake transport and avoids
// a package-import cycle, since session never needs to know about
// result-set decoding itself.
type PacketIO interface {
	ReadPacket() ([]byte, error)
	WritePacket(payload []byte) error
}

// StatusUpdater lets a result reader feed the server status bits it
// just observed back to whatever owns the transport, so escaping
// decisions that depend on SERVER_STATUS_NO_BACKSLASH_ESCAPES (§4.6)
// see the current value instead of only the handshake's snapshot.
// session.Session implements this; a bare PacketIO in tests need not.
type StatusUpdater interface {
	SetStatusFlags(uint16)
}

func updateStatus(io PacketIO, status uint16) {
	if u, ok := io.(StatusUpdater); ok {
		u.SetStatusFlags(status)
	}
}

// OKResult is the decoded form of an OK packet, per §4.5. Ported from
// result.go's Result struct fields that describe a non-SELECT command's
// outcome, minus the Fields/Map bookkeeping that only applies to an
// actual result set.
type OKResult struct {
	AffectedRows uint64
	LastInsertID uint64
	Status       uint16
	WarningCount uint16
	Message      string
}

// HasMoreResults reports whether SERVER_MORE_RESULTS_EXISTS is set, per
// §4.5's multi-resultset support.
func (r *OKResult) HasMoreResults() bool {
	return r.Status&proto.StatusMoreResultsExists != 0
}

func decodeOK(raw []byte) (*OKResult, error) {
	p := proto.NewPacket(raw)
	if err := p.Skip(1); err != nil { // 0x00 header byte
		return nil, err
	}
	affected, _, err := p.ReadLengthEncodedInt()
	if err != nil {
		return nil, err
	}
	insertID, _, err := p.ReadLengthEncodedInt()
	if err != nil {
		return nil, err
	}
	status, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	warnings, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	return &OKResult{
		AffectedRows: affected,
		LastInsertID: insertID,
		Status:       status,
		WarningCount: warnings,
		Message:      string(p.ReadRest()),
	}, nil
}

func decodeErr(raw []byte) error {
	p := proto.NewPacket(raw)
	if err := p.Skip(1); err != nil {
		return err
	}
	errno, err := p.ReadUint16()
	if err != nil {
		return err
	}
	sqlstate := ""
	if p.PeekByte() == '#' {
		p.Skip(1)
		if sb, err := p.ReadBytes(5); err == nil {
			sqlstate = string(sb)
		}
	}
	return errors.FromErrno(errno, sqlstate, string(p.ReadRest()))
}

// Rows is a streaming cursor over a result set's rows, per §4.5. In
// unbuffered mode (buffered == false) Next reads exactly one row per
// call directly off the wire, mirroring how a real cursor should behave
// when the caller wants to start processing before the whole result set
// has arrived; in buffered mode every row is read up front by
// ReadResultSet (through readAll), and
// Next just walks the in-memory slice. This generalizes result.go's
// getResult, which the teacher only ever calls in the equivalent of
// buffered mode.
type Rows struct {
	io     PacketIO
	fields []*Field
	cols   map[string]int

	buffered bool
	rows     [][][]byte
	pos      int

	ok   *OKResult
	err  error
	eof  bool
	done func()
}

// OnExhausted registers fn to run exactly once, when the result set has
// been read to its end off the wire. If that has already happened (a
// buffered result set, or ReadResultSet's OK-only case), fn runs at
// once; otherwise it runs when Next or Close reads the final EOF.
// Callers that mark a
// session busy for the duration of a streamed read use this to mark it
// idle again without having to poll Next's return value themselves.
func (r *Rows) OnExhausted(fn func()) {
	r.done = fn
	if r.eof {
		r.fireDone()
	}
}

func (r *Rows) fireDone() {
	if r.done != nil {
		fn := r.done
		r.done = nil
		fn()
	}
}

// Close drains any remaining rows to EOF and runs the exhausted
// callback if it has not already fired. In buffered mode this is a
// cheap no-op (readAll already consumed the whole result set); in
// unbuffered mode it reads and discards whatever rows the caller never
// asked for. Per §4.5's unbuffered contract and §9's explicit-close
// design note, a caller abandoning an unbuffered Rows before reading it
// to exhaustion must call Close so the session's position on the wire
// is left consistent for the next command.
func (r *Rows) Close() error {
	if r.err != nil {
		return r.err
	}
	if r.buffered {
		r.pos = len(r.rows)
		r.eof = true
		r.fireDone()
		return nil
	}
	for !r.eof {
		raw, err := r.io.ReadPacket()
		if err != nil {
			r.err = err
			return err
		}
		p := proto.NewPacket(raw)
		if p.IsErr() {
			r.err = decodeErr(raw)
			return r.err
		}
		if p.IsEOF() {
			ok, err := decodeEOF(raw)
			if err != nil {
				r.err = err
				return err
			}
			r.ok = ok
			r.eof = true
			updateStatus(r.io, ok.Status)
			break
		}
		// discard the row payload; draining doesn't need the values.
	}
	r.fireDone()
	return nil
}

// Fields returns the result set's column descriptors.
func (r *Rows) Fields() []*Field { return r.fields }

// ColumnIndex returns the 0-based index of the named column, or -1.
func (r *Rows) ColumnIndex(name string) int {
	if i, ok := r.cols[name]; ok {
		return i
	}
	return -1
}

// OK returns the OK-packet data for a result set with no rows at all
// (an OK packet rather than a result-set header was the server's whole
// response), or nil for an ordinary result set.
func (r *Rows) OK() *OKResult {
	if len(r.fields) > 0 {
		return nil
	}
	return r.ok
}

// ReadResultSet reads one result set's header and field descriptors off
// io and returns a Rows cursor positioned before the first row, per
// §4.5. If the server's response was itself an OK packet (no rows),
// Rows.OK() is non-nil and Next always reports no more rows.
func ReadResultSet(io PacketIO, buffered bool) (*Rows, error) {
	raw, err := io.ReadPacket()
	if err != nil {
		return nil, err
	}
	p := proto.NewPacket(raw)
	if p.IsErr() {
		return nil, decodeErr(raw)
	}
	if p.IsOK() {
		ok, err := decodeOK(raw)
		if err != nil {
			return nil, err
		}
		updateStatus(io, ok.Status)
		return &Rows{io: io, ok: ok, eof: true}, nil
	}
	if p.IsLocalInfile() {
		return nil, errors.New(errors.KindProgrammingError, "LOAD DATA LOCAL INFILE is serviced only by Query, not by ReadResultSet")
	}

	fieldCount, _, err := p.ReadLengthEncodedInt()
	if err != nil {
		return nil, err
	}

	fields := make([]*Field, 0, fieldCount)
	cols := make(map[string]int, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		raw, err := io.ReadPacket()
		if err != nil {
			return nil, err
		}
		f, err := decodeField(raw)
		if err != nil {
			return nil, err
		}
		cols[f.Name] = len(fields)
		fields = append(fields, f)
	}

	// A trailing EOF terminates the field list unless
	// CLIENT_DEPRECATE_EOF was negotiated; this driver never sets that
	// flag (§9 decision), so the EOF is always present and is consumed
	// here rather than surfaced to the caller.
	raw, err = io.ReadPacket()
	if err != nil {
		return nil, err
	}
	if proto.NewPacket(raw).IsErr() {
		return nil, decodeErr(raw)
	}

	r := &Rows{io: io, fields: fields, cols: cols, buffered: buffered}
	if buffered {
		if err := r.readAll(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Rows) readAll() error {
	for {
		raw, err := r.io.ReadPacket()
		if err != nil {
			return err
		}
		p := proto.NewPacket(raw)
		if p.IsErr() {
			return decodeErr(raw)
		}
		if p.IsEOF() {
			ok, err := decodeEOF(raw)
			if err != nil {
				return err
			}
			r.ok = ok
			r.eof = true
			updateStatus(r.io, ok.Status)
			r.fireDone()
			return nil
		}
		r.rows = append(r.rows, splitTextRow(raw, len(r.fields)))
	}
}

func decodeEOF(raw []byte) (*OKResult, error) {
	p := proto.NewPacket(raw)
	if err := p.Skip(1); err != nil {
		return nil, err
	}
	warnings, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	status, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	return &OKResult{Status: status, WarningCount: warnings}, nil
}

// splitTextRow splits one text-protocol row packet into its raw
// length-encoded-string cells, per §4.5; a nil cell means the column was
// NULL (0xFB).
func splitTextRow(raw []byte, ncols int) [][]byte {
	p := proto.NewPacket(raw)
	out := make([][]byte, ncols)
	for i := 0; i < ncols; i++ {
		b, ok, _ := p.ReadLengthEncodedString()
		if ok {
			out[i] = b
		}
	}
	return out
}

// Next advances to the next row and decodes it into vals, one
// codec.Value per column, per §4.6's decode table. It returns false when
// the result set is exhausted; a read or server error is returned as the
// second value, with false.
func (r *Rows) Next(vals []codec.Value) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if r.buffered {
		if r.pos >= len(r.rows) {
			return false, nil
		}
		row := r.rows[r.pos]
		r.pos++
		return true, decodeRow(r.fields, row, vals)
	}

	if r.eof {
		return false, nil
	}
	raw, err := r.io.ReadPacket()
	if err != nil {
		r.err = err
		return false, err
	}
	p := proto.NewPacket(raw)
	if p.IsErr() {
		r.err = decodeErr(raw)
		return false, r.err
	}
	if p.IsEOF() {
		ok, err := decodeEOF(raw)
		if err != nil {
			r.err = err
			return false, err
		}
		r.ok = ok
		r.eof = true
		updateStatus(r.io, ok.Status)
		r.fireDone()
		return false, nil
	}
	row := splitTextRow(raw, len(r.fields))
	return true, decodeRow(r.fields, row, vals)
}

func decodeRow(fields []*Field, row [][]byte, vals []codec.Value) error {
	for i, f := range fields {
		if row[i] == nil {
			vals[i] = codec.Null()
			continue
		}
		v, err := codec.DecodeText(f.Type, f.Unsigned(), f.IsBinary(), row[i])
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return nil
}
