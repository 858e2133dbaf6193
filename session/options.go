// Package session implements the per-connection state machine of §4.4:
// dialing, the handshake/auth exchange (including a mid-handshake TLS
// upgrade), command dispatch, and the quit/close lifecycle. Grounded in
// native/init.go's init/auth/authResponse sequence, generalized from the
// teacher's panic-based internals to an explicit-error public API and
// extended with the plugins and TLS upgrade the teacher never implemented.
package session

import (
	"crypto/tls"
	"time"

	"github.com/long2ice/asyncmy/auth"
)

// Options configures a Session, playing the role native's Conn struct
// fields (Conn.user, Conn.passwd, Conn.dbname, Conn.max_pkt_size, ...)
// played for the teacher, collected here into one value per the ambient
// config convention described in the grounding ledger.
type Options struct {
	Addr     string
	User     string
	Password string
	DBName   string

	// MaxPacketSize is carried on Options but not read by this package;
	// outgoing payloads are split only by the protocol's unconditional
	// 2^24-1 frame-splitting rule.
	MaxPacketSize uint32

	// Charset is carried on Options but not read: the handshake response
	// (§4.4) sends the server's default collation id from its greeting,
	// or Collation instead when that is non-zero.
	Charset   string
	Collation uint16

	// TLSConfig, if non-nil, enables the mid-handshake TLS upgrade
	// described in §4.4 and §9's Open Question: the client sends a
	// capabilities-only handshake response with ClientSSL set, then
	// re-wraps the raw socket in a TLS client connection before sending
	// the real handshake response.
	TLSConfig *tls.Config

	// AllowOldPassword permits falling back to the pre-4.1
	// mysql_old_password plugin. Off by default: §4.3 treats it as a
	// legacy compatibility path, not something a new connection should
	// silently accept.
	AllowOldPassword bool

	// AllowLocalInfile permits honoring a LOAD DATA LOCAL INFILE request
	// from the server (§4.5). Off by default for the same reason MySQL's
	// own clients default it off: a malicious server can otherwise read
	// arbitrary client-local files.
	AllowLocalInfile bool

	// ConnectTimeout bounds dialing, the handshake exchange and the
	// post-connect statements. ReadTimeout and WriteTimeout are carried
	// on Options but not applied: no read or write deadline is set once
	// the session is established.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// ConnAttrs are sent as connection attributes (performance_schema
	// session_connect_attrs) during the handshake response, per the
	// supplemented feature recorded in the grounding ledger.
	ConnAttrs map[string]string

	// DialogPrompter answers `dialog`-plugin prompts interactively; nil
	// means the dialog plugin cannot be used and auth fails immediately
	// if the server requests it.
	DialogPrompter auth.DialogPrompter

	// SQLMode, if non-empty, is sent as `SET sql_mode=<value>` immediately
	// after authentication succeeds (§4.4's post-connect step).
	SQLMode string

	// InitCommand, if non-empty, is executed once immediately after
	// authentication succeeds, followed by COMMIT, per §4.4's post-connect
	// step. Typical uses are a USE statement or session variable setup
	// that needs to run before any caller-issued query.
	InitCommand string

	// Autocommit, if non-nil, is applied as `SET AUTOCOMMIT = {0,1}`
	// immediately after authentication succeeds, per §4.4's post-connect
	// step. A nil value leaves the server's default autocommit setting
	// untouched.
	Autocommit *bool
}
