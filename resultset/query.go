package resultset

import (
	"bufio"
	"io"
	"os"

	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/proto"
)

// Commander is the subset of session.Session's surface Query needs to
// send a command in addition to the PacketIO it already requires.
type Commander interface {
	PacketIO
	WriteCommand(opcode byte, body []byte) error
}

// LocalInfileHandler opens the local file (or other data source) named
// by a LOAD DATA LOCAL INFILE request. Returning an error aborts the
// load with an empty data packet, per §4.5's sub-protocol.
type LocalInfileHandler func(name string) (io.ReadCloser, error)

// OSLocalInfileHandler is the default LocalInfileHandler, opening name
// directly off the local filesystem. Wiring this up is opt-in via
// session.Options.AllowLocalInfile (§4.5's security note).
func OSLocalInfileHandler(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Query sends sql as COM_QUERY and returns a Rows cursor over its first
// result set, transparently servicing a LOAD DATA LOCAL INFILE request
// if the server sends one instead of an ordinary result set, per §4.5.
// If localInfile is nil and the server requests a local file, the load
// is rejected with an empty data packet (matching the behavior of a
// client that never advertised CLIENT_LOCAL_FILES).
func Query(c Commander, sql string, buffered bool, localInfile LocalInfileHandler) (*Rows, error) {
	if err := c.WriteCommand(proto.ComQuery, []byte(sql)); err != nil {
		return nil, err
	}
	return readResultOrLocalInfile(c, buffered, localInfile)
}

func readResultOrLocalInfile(c Commander, buffered bool, localInfile LocalInfileHandler) (*Rows, error) {
	raw, err := c.ReadPacket()
	if err != nil {
		return nil, err
	}
	p := proto.NewPacket(raw)
	if !p.IsLocalInfile() {
		return readResultSetFromFirstPacket(c, raw, buffered)
	}

	if err := p.Skip(1); err != nil {
		return nil, err
	}
	name := string(p.ReadStringToEOF())

	if err := serviceLocalInfile(c, name, localInfile); err != nil {
		// A local open/read failure still sent the empty terminator, so
		// the server's reply is read off the wire before the error is
		// returned.
		if e, ok := err.(*errors.Error); !ok || e.Errno != errors.CRServerLost {
			_, _ = c.ReadPacket()
		}
		return nil, err
	}

	raw, err = c.ReadPacket()
	if err != nil {
		return nil, err
	}
	return readResultSetFromFirstPacket(c, raw, buffered)
}

// serviceLocalInfile streams the file's contents as a series of packets
// followed by the empty terminating packet the protocol requires, per
// §4.5. Any local I/O error still sends the empty terminator so the
// connection's sequence-id and command bookkeeping stay consistent, but
// the error itself is propagated to the caller rather than swallowed.
func serviceLocalInfile(c Commander, name string, handler LocalInfileHandler) error {
	if handler == nil {
		return c.WritePacket(nil)
	}
	f, err := handler(name)
	if err != nil {
		if termErr := c.WritePacket(nil); termErr != nil {
			return termErr
		}
		return errors.Wrap(errors.KindOperationalError, "open local infile "+name, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	buf := make([]byte, 64*1024)
	for {
		n, readErr := br.Read(buf)
		if n > 0 {
			if err := c.WritePacket(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if termErr := c.WritePacket(nil); termErr != nil {
				return termErr
			}
			return errors.Wrap(errors.KindOperationalError, "read local infile "+name, readErr)
		}
	}
	return c.WritePacket(nil)
}

// readResultSetFromFirstPacket builds a Rows cursor when the first
// packet of the response has already been read (as happens after
// servicing a LOAD DATA LOCAL INFILE request, whose terminal response
// is an ordinary OK/ERR/result-set-header packet).
func readResultSetFromFirstPacket(c Commander, first []byte, buffered bool) (*Rows, error) {
	p := proto.NewPacket(first)
	if p.IsErr() {
		return nil, decodeErr(first)
	}
	if p.IsOK() {
		ok, err := decodeOK(first)
		if err != nil {
			return nil, err
		}
		updateStatus(c, ok.Status)
		return &Rows{io: c, ok: ok, eof: true}, nil
	}

	fieldCount, _, err := p.ReadLengthEncodedInt()
	if err != nil {
		return nil, err
	}
	fields := make([]*Field, 0, fieldCount)
	cols := make(map[string]int, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		raw, err := c.ReadPacket()
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
	raw, err := c.ReadPacket()
	if err != nil {
		return nil, err
	}
	if proto.NewPacket(raw).IsErr() {
		return nil, decodeErr(raw)
	}

	r := &Rows{io: c, fields: fields, cols: cols, buffered: buffered}
	if buffered {
		if err := r.readAll(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NextResultSet advances to the next result set of a multi-statement
// query per §4.5's SERVER_MORE_RESULTS_EXISTS handling. It must only be
// called after the previous Rows has been fully drained (Next returned
// false); it returns (nil, nil) when there is no further result set.
func NextResultSet(c Commander, prev *Rows, buffered bool) (*Rows, error) {
	if prev.ok == nil || !prev.ok.HasMoreResults() {
		return nil, nil
	}
	return ReadResultSet(c, buffered)
}
