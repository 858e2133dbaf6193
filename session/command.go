package session

import (
	"github.com/long2ice/asyncmy/proto"
)

// WriteCommand sends opcode and body as one command packet, per §4.4;
// exported for the resultset package, which owns interpreting the
// response (OK, ERR, or a result-set header).
func (s *Session) WriteCommand(opcode byte, body []byte) error {
	return s.framer.WriteCommand(opcode, body)
}

// ReadPacket reads the next logical packet off the wire; exported for
// the resultset package's header/row/EOF decode loop.
func (s *Session) ReadPacket() ([]byte, error) {
	return s.framer.ReadPacket()
}

// WritePacket writes one logical packet without resetting the sequence
// id, used mid-exchange (e.g. a LOAD DATA LOCAL INFILE chunk).
func (s *Session) WritePacket(payload []byte) error {
	return s.framer.WritePacket(payload)
}

// InitDB sends COM_INIT_DB to change the default database, per §4.4.
func (s *Session) InitDB(dbname string) error {
	if err := s.WriteCommand(proto.ComInitDB, []byte(dbname)); err != nil {
		return err
	}
	raw, err := s.ReadPacket()
	if err != nil {
		return err
	}
	p := proto.NewPacket(raw)
	if p.IsErr() {
		return readErrPacket(p)
	}
	return nil
}

// Kill sends COM_PROCESS_KILL for the given connection id, per §4.4.
func (s *Session) Kill(connectionID uint32) error {
	if err := s.WriteCommand(proto.ComProcessKill, proto.EncodeU32(connectionID)); err != nil {
		return err
	}
	raw, err := s.ReadPacket()
	if err != nil {
		return err
	}
	p := proto.NewPacket(raw)
	if p.IsErr() {
		return readErrPacket(p)
	}
	return nil
}
