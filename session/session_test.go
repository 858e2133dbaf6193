package session

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/long2ice/asyncmy/proto"
)

// writeFrame writes one raw length-prefixed frame directly to conn,
// bypassing Framer, so tests can play the server side of the wire
// without depending on the client's own framing code.
func writeFrame(t *testing.T, conn net.Conn, seq byte, payload []byte) {
	t.Helper()
	hdr := []byte{byte(len(payload)), byte(len(payload) >> 8), byte(len(payload) >> 16), seq}
	_, err := conn.Write(append(hdr, payload...))
	require.NoError(t, err)
}

// readFrame reads one raw frame off conn and returns its payload,
// discarding the header.
func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var hdr [4]byte
	_, err := io.ReadFull(conn, hdr[:])
	require.NoError(t, err)
	length := int(hdr[0]) | int(hdr[1])<<8 | int(hdr[2])<<16
	payload := make([]byte, length)
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)
	return payload
}

// okPacket is the shortest valid OK packet body: header byte, two
// zero-valued length-encoded ints (affected rows, last insert id), and
// two zero uint16s (status flags, warning count).
var okPacket = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	s := &Session{
		opts:   &Options{},
		conn:   client,
		framer: proto.NewFramer(client, nil),
	}
	t.Cleanup(func() { client.Close(); server.Close() })
	return s, server
}

func TestWantedCapabilitiesMasksUnsupported(t *testing.T) {
	o := &Options{}
	server := &handshakeInfo{capabilities: proto.ClientProtocol41 | proto.ClientLongPassword}
	got := wantedCapabilities(o, server, false, nil)
	assert.NotZero(t, got&proto.ClientProtocol41)
	assert.Zero(t, got&proto.ClientTransactions)
}

func TestWantedCapabilitiesLocalFiles(t *testing.T) {
	o := &Options{AllowLocalInfile: true}
	server := &handshakeInfo{capabilities: 0xFFFFFFFF}
	got := wantedCapabilities(o, server, false, nil)
	assert.NotZero(t, got&proto.ClientLocalFiles)
}

func TestWantedCapabilitiesTLS(t *testing.T) {
	o := &Options{}
	server := &handshakeInfo{capabilities: 0xFFFFFFFF}
	got := wantedCapabilities(o, server, true, nil)
	assert.NotZero(t, got&proto.ClientSSL)
}

func TestBuildHandshakeResponseLayout(t *testing.T) {
	o := &Options{DBName: "mydb"}
	flags := proto.ClientProtocol41 | proto.ClientConnectWithDB | proto.ClientPluginAuth
	body := buildHandshakeResponse(o, flags, 33, "root", []byte("tok"), "mysql_native_password", nil)
	assert.Contains(t, string(body), "root")
	assert.Contains(t, string(body), "mydb")
	assert.Contains(t, string(body), "mysql_native_password")
}

func TestWantedCapabilitiesConnAttrs(t *testing.T) {
	o := &Options{}
	server := &handshakeInfo{capabilities: 0xFFFFFFFF}
	got := wantedCapabilities(o, server, false, map[string]string{"_client_session_id": "x"})
	assert.NotZero(t, got&proto.ClientConnectAttrs)
}

func TestBuildHandshakeResponseIncludesConnAttrs(t *testing.T) {
	o := &Options{}
	flags := proto.ClientProtocol41 | proto.ClientConnectAttrs
	body := buildHandshakeResponse(o, flags, 33, "root", []byte("tok"), "", map[string]string{"_client_session_id": "abc-123"})
	assert.Contains(t, string(body), "_client_session_id")
	assert.Contains(t, string(body), "abc-123")
}

func TestExecOKReadsOnePacket(t *testing.T) {
	s, server := newTestSession(t)
	done := make(chan []byte, 1)
	go func() {
		done <- readFrame(t, server)
		writeFrame(t, server, 1, okPacket)
	}()
	err := s.execOK("SET sql_mode=ONLY_FULL_GROUP_BY")
	require.NoError(t, err)
	sent := <-done
	assert.Equal(t, byte(proto.ComQuery), sent[0])
	assert.Equal(t, "SET sql_mode=ONLY_FULL_GROUP_BY", string(sent[1:]))
}

func TestExecOKPropagatesErrPacket(t *testing.T) {
	s, server := newTestSession(t)
	go func() {
		readFrame(t, server)
		errBody := append([]byte{0xFF}, proto.EncodeU16(1064)...)
		errBody = append(errBody, "bad syntax"...)
		writeFrame(t, server, 1, errBody)
	}()
	err := s.execOK("SET sql_mode=bogus")
	assert.Error(t, err)
}

func TestPostConnectSendsSQLModeInitCommandAndAutocommit(t *testing.T) {
	s, server := newTestSession(t)
	autocommit := false
	s.opts.SQLMode = "STRICT_TRANS_TABLES"
	s.opts.InitCommand = "SET time_zone='+00:00'"
	s.opts.Autocommit = &autocommit

	var received []string
	seq := byte(0)
	go func() {
		for i := 0; i < 4; i++ {
			received = append(received, string(readFrame(t, server)[1:]))
			seq = 1
			writeFrame(t, server, seq, okPacket)
		}
	}()

	err := s.postConnect()
	require.NoError(t, err)
	require.Len(t, received, 4)
	assert.Equal(t, "SET sql_mode=STRICT_TRANS_TABLES", received[0])
	assert.Equal(t, "SET time_zone='+00:00'", received[1])
	assert.Equal(t, "COMMIT", received[2])
	assert.Equal(t, "SET AUTOCOMMIT = 0", received[3])
}

func TestPostConnectSkipsUnsetOptions(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.postConnect()
	require.NoError(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "closed", StateClosed.String())
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "db.example.com", hostOf("db.example.com:3306"))
	assert.Equal(t, "nohost", hostOf("nohost"))
}
