package session

import (
	"crypto/tls"

	"github.com/long2ice/asyncmy/auth"
	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/proto"
)

// handshakeInfo holds everything parsed out of the server's initial
// handshake packet, playing the role of native/init.go's my.info struct.
type handshakeInfo struct {
	protocolVersion byte
	serverVersion   string
	connectionID    uint32
	scramble        []byte
	capabilities    uint32
	charset         byte
	statusFlags     uint16
	authPluginName  string
}

// parseHandshake decodes the server's initial handshake packet per §4.4,
// generalizing native/init.go's fixed-offset reads (which assume
// Protocol::HandshakeV10's pre-4.1 layout never comes up) to also read
// the second scramble half, the full 4-byte capability flags and the
// trailing auth plugin name that only appear when
// CLIENT_PLUGIN_AUTH is set.
func parseHandshake(p *proto.Packet) (*handshakeInfo, error) {
	info := &handshakeInfo{}

	ver, err := p.ReadByte()
	if err != nil {
		return nil, err
	}
	info.protocolVersion = ver

	serverVersion, ok := p.ReadString()
	if !ok {
		return nil, errors.ErrMalformed
	}
	info.serverVersion = string(serverVersion)

	connID, err := p.ReadUint32()
	if err != nil {
		return nil, err
	}
	info.connectionID = connID

	scramble1, err := p.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if err := p.Skip(1); err != nil { // filler
		return nil, err
	}

	capLow, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	caps := uint32(capLow)

	if p.Remaining() > 0 {
		charset, err := p.ReadByte()
		if err != nil {
			return nil, err
		}
		info.charset = charset

		status, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		info.statusFlags = status

		capHigh, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		caps |= uint32(capHigh) << 16

		scrambleLen, err := p.ReadByte()
		if err != nil {
			return nil, err
		}
		if err := p.Skip(10); err != nil { // reserved
			return nil, err
		}

		info.capabilities = caps
		if caps&proto.ClientProtocol41 == 0 {
			return nil, errors.ErrOldProtocol
		}

		if caps&proto.ClientSecureConnection != 0 {
			n := int(scrambleLen) - 8
			if n < 0 {
				n = 13
			}
			scramble2, err := p.ReadBytes(n)
			if err != nil {
				return nil, err
			}
			info.scramble = append(append([]byte{}, scramble1...), trimTrailingNUL(scramble2)...)
		} else {
			info.scramble = scramble1
		}

		if caps&proto.ClientPluginAuth != 0 {
			info.authPluginName = string(trimTrailingNUL(p.ReadStringToEOF()))
		}
		return info, nil
	}

	info.capabilities = caps
	info.scramble = scramble1
	if caps&proto.ClientProtocol41 == 0 {
		return nil, errors.ErrOldProtocol
	}
	return info, nil
}

func trimTrailingNUL(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return b[:len(b)-1]
	}
	return b
}

// wantedCapabilities is the capability set this driver requests, mirroring
// native/init.go's auth() flags computation but adding CLIENT_SSL,
// CLIENT_PLUGIN_AUTH and CLIENT_CONNECT_ATTRS, which the teacher never set.
func wantedCapabilities(o *Options, server *handshakeInfo, useTLS bool, attrs map[string]string) uint32 {
	flags := proto.ClientProtocol41 |
		proto.ClientLongPassword |
		proto.ClientLongFlag |
		proto.ClientTransactions |
		proto.ClientSecureConnection |
		proto.ClientMultiStatements |
		proto.ClientMultiResults |
		proto.ClientPluginAuth

	if o.AllowLocalInfile {
		flags |= proto.ClientLocalFiles
	}
	if o.DBName != "" {
		flags |= proto.ClientConnectWithDB
	}
	if useTLS {
		flags |= proto.ClientSSL
	}
	if len(attrs) > 0 {
		flags |= proto.ClientConnectAttrs
	}
	// Reset any flag the server doesn't advertise support for, per
	// native/init.go's `flags &= uint32(my.info.caps) | 0xffff0000` mask
	// (the high word holds flags with no server-support bit to check).
	return flags & (server.capabilities | 0xFFFF0000)
}

// buildSSLRequest builds the capabilities-only SSLRequest packet body
// sent before the TLS handshake, per §4.4 and the Open Question decision
// recorded in the grounding ledger.
func buildSSLRequest(flags uint32, charset byte) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, proto.EncodeU32(flags)...)
	buf = append(buf, proto.EncodeU32(0xFFFFFF)...) // max packet size
	buf = append(buf, charset)
	buf = append(buf, make([]byte, 23)...)
	return buf
}

// buildHandshakeResponse builds Protocol::HandshakeResponse41's body per
// §4.4, generalizing native/init.go's auth() packet layout to add the
// plugin name, auth-response length encoding and connection attributes
// the teacher's version never wrote.
func buildHandshakeResponse(o *Options, flags uint32, charset byte, user string, authResponse []byte, pluginName string, attrs map[string]string) []byte {
	buf := make([]byte, 0, 64+len(user)+len(authResponse)+len(o.DBName))
	buf = append(buf, proto.EncodeU32(flags)...)
	buf = append(buf, proto.EncodeU32(0xFFFFFF)...)
	buf = append(buf, charset)
	buf = append(buf, make([]byte, 23)...)
	buf = proto.AppendNulString(buf, []byte(user))

	if flags&proto.ClientPluginAuthLenencClientData != 0 {
		buf = proto.AppendLengthEncodedString(buf, authResponse)
	} else {
		buf = append(buf, byte(len(authResponse)))
		buf = append(buf, authResponse...)
	}

	if flags&proto.ClientConnectWithDB != 0 {
		buf = proto.AppendNulString(buf, []byte(o.DBName))
	}
	if flags&proto.ClientPluginAuth != 0 {
		buf = proto.AppendNulString(buf, []byte(pluginName))
	}
	if flags&proto.ClientConnectAttrs != 0 {
		var encoded []byte
		for k, v := range attrs {
			encoded = proto.AppendLengthEncodedString(encoded, []byte(k))
			encoded = proto.AppendLengthEncodedString(encoded, []byte(v))
		}
		buf = proto.AppendLengthEncodedString(buf, encoded)
	}
	return buf
}

// initialAuthResponse computes the auth-response bytes sent as part of
// the handshake response itself (before any AuthSwitchRequest), per the
// per-plugin dispatch in §4.3. Plugins needing a further round trip
// return only their first step here (sha256_password without TLS sends
// the one-byte public key request, dialog an empty response) and are
// driven the rest of the way by continueAuth.
func initialAuthResponse(o *Options, plugin auth.Name, scramble []byte, useTLS bool) ([]byte, error) {
	switch plugin {
	case auth.NativePassword:
		return auth.ScrambleNative(o.Password, scramble), nil
	case auth.CachingSHA2:
		return auth.ScrambleCachingSHA2Fast(o.Password, scramble), nil
	case auth.ClearPassword:
		return auth.ScrambleClear(o.Password), nil
	case auth.Ed25519:
		return auth.ScrambleEd25519(o.Password, scramble)
	case auth.OldPassword:
		if !o.AllowOldPassword {
			return nil, errors.New(errors.KindNotSupportedError, "server requested mysql_old_password; AllowOldPassword is not set")
		}
		return auth.ScrambleOld(o.Password, scramble), nil
	case auth.SHA256Password:
		if useTLS {
			out := make([]byte, len(o.Password)+1)
			copy(out, o.Password)
			return out, nil
		}
		return auth.RequestScramblePacket(), nil
	case auth.Dialog:
		return nil, nil
	default:
		return nil, errors.New(errors.KindNotSupportedError, "unsupported auth plugin: "+string(plugin))
	}
}

// tlsUpgrade performs the mid-handshake TLS upgrade per §4.4: a
// capabilities-only SSLRequest is sent with ClientSSL set, then the raw
// socket is wrapped in a TLS client connection and a fresh Framer is
// built over it. Per the grounding ledger's Open Question decision, this
// asserts the plaintext read buffer is empty first — any buffered bytes
// at this point would mean the server sent data the TLS handshake must
// not see, a protocol violation worth failing loudly on rather than
// silently dropping.
func (s *Session) tlsUpgrade(flags uint32, charset byte) error {
	if s.framer.Buffered() != 0 {
		return errors.Internal("unread plaintext data buffered before TLS upgrade")
	}
	if err := s.framer.WritePacket(buildSSLRequest(flags, charset)); err != nil {
		return err
	}
	cfg := s.opts.TLSConfig
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = hostOf(s.opts.Addr)
	}
	seq := s.framer.Seq()
	tlsConn := tls.Client(s.conn, cfg)
	if err := tlsConn.HandshakeContext(s.ctx); err != nil {
		return errors.Wrap(errors.KindOperationalError, "TLS handshake", err)
	}
	s.conn = tlsConn
	s.framer = proto.NewFramer(tlsConn, s.log)
	// The server's sequence counter is not reset by a TLS upgrade; the
	// fresh Framer must carry on from the SSLRequest frame's sequence id.
	s.framer.SetSeq(seq)
	return nil
}
