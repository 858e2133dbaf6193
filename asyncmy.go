// Package asyncmy is a MySQL/MariaDB client driver: length-prefixed
// wire-protocol framing, the full auth plugin set, buffered and
// streaming result decode, and a free/used/terminated connection pool.
// Grounded in the teacher's top-level Conn/Result/Stmt interface
// contract (interface.go), generalized from a single mutex-guarded
// connection type to the session/resultset/pool package split, and from
// interface.go's panic-internally style to explicit (value, error)
// returns throughout.
package asyncmy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/long2ice/asyncmy/codec"
	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/pool"
	"github.com/long2ice/asyncmy/resultset"
	"github.com/long2ice/asyncmy/session"
)

// Conn is a single connection to the server, wrapping a *session.Session
// with the query/exec surface callers actually use, per the original
// Conn interface's Start/Prepare/Use/Ping/Close contract.
type Conn struct {
	sess        *session.Session
	buffered    bool
	localInfile resultset.LocalInfileHandler
	log         *zerolog.Logger

	// active is the most recent Rows handed out that might still be
	// unexhausted. Query/NextResultSet drain it before dispatching the
	// next command, per §4.4's command-dispatch precondition: sending a
	// new command while a prior unbuffered result is still live desyncs
	// the wire.
	active *resultset.Rows
}

// Options configures Connect; re-exported from session.Options so
// callers of this package never need to import session directly for the
// common case.
type Options = session.Options

// Connect dials and authenticates one connection, per §4.4.
func Connect(ctx context.Context, opts *Options, log *zerolog.Logger) (*Conn, error) {
	s := session.New(opts, log)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	c := &Conn{sess: s, buffered: true, log: log}
	if opts.AllowLocalInfile {
		c.localInfile = resultset.OSLocalInfileHandler
	}
	return c, nil
}

// SetBuffered controls whether Query decodes the whole result set up
// front (the default) or streams rows one at a time off the wire, per
// §4.5's buffered/unbuffered distinction.
func (c *Conn) SetBuffered(buffered bool) { c.buffered = buffered }

// SetLocalInfileHandler overrides how LOAD DATA LOCAL INFILE requests
// are serviced; pass nil to reject them.
func (c *Conn) SetLocalInfileHandler(h resultset.LocalInfileHandler) { c.localInfile = h }

// Ping sends COM_PING, per §4.4.
func (c *Conn) Ping(ctx context.Context) error { return c.sess.Ping(ctx) }

// Use sends COM_INIT_DB to change the connection's default database.
func (c *Conn) Use(dbname string) error { return c.sess.InitDB(dbname) }

// Close sends COM_QUIT and closes the connection, per §4.4.
func (c *Conn) Close() error { return c.sess.Close() }

// ShowWarnings runs SHOW WARNINGS, the cursor-contract convenience for
// inspecting the warnings a prior statement's WarningCount reported.
func (c *Conn) ShowWarnings() (*resultset.Rows, error) {
	return c.Query("SHOW WARNINGS")
}

// ServerVersion returns the server's advertised version string.
func (c *Conn) ServerVersion() string { return c.sess.ServerVersion() }

// Query executes sql, interpolating args via codec.Escape the way
// native/codecs.go's parameter binding does, and returns a Rows cursor
// over the first result set.
func (c *Conn) Query(sql string, args ...interface{}) (*resultset.Rows, error) {
	text, err := interpolateFor(c.sess, sql, args...)
	if err != nil {
		return nil, err
	}
	c.drainActive()
	c.sess.Lock()
	rows, err := resultset.Query(c.sess, text, c.buffered, c.localInfile)
	if err != nil {
		c.sess.Unlock()
		return nil, err
	}
	c.track(rows)
	return rows, nil
}

// NextResultSet advances to the next result set of a multi-statement
// query, per §4.5.
func (c *Conn) NextResultSet(rows *resultset.Rows) (*resultset.Rows, error) {
	c.drainActive()
	c.sess.Lock()
	next, err := resultset.NextResultSet(c.sess, rows, c.buffered)
	if err != nil {
		c.sess.Unlock()
		return nil, err
	}
	if next == nil {
		c.sess.Unlock()
		return nil, nil
	}
	c.track(next)
	return next, nil
}

// track registers rows as this Conn's current unbuffered-in-flight
// result, clearing it again and unlocking the session the moment rows
// reports exhaustion.
func (c *Conn) track(rows *resultset.Rows) {
	c.active = rows
	rows.OnExhausted(func() {
		c.active = nil
		c.sess.Unlock()
	})
}

// drainActive drains a previous Rows this Conn hasn't exhausted yet
// before a new command goes out, per §4.4: "If a previous unbuffered
// result is still active, warn and drain it to EOF before sending."
// The session is unlocked unconditionally afterward so a drain error
// (the connection is already broken) cannot leave it stuck BUSY
// forever; the broken connection will simply fail the next command too.
func (c *Conn) drainActive() {
	if c.active == nil {
		return
	}
	rows := c.active
	c.active = nil
	c.log.Warn().Msg("asyncmy: draining unfinished unbuffered result set before next command")
	_ = rows.Close()
	c.sess.Unlock()
}

// Interpolate substitutes each `?` placeholder in sql with the escaped
// text form of the corresponding argument, mirroring the text-protocol
// parameter binding native/codecs.go's escapeString/escapeQuotes pair
// implements for the teacher's single bind style. It always escapes in
// the backslash-aware mode; use a *Conn's Query, which accounts for the
// server's live NO_BACKSLASH_ESCAPES status, when one is available.
func Interpolate(sql string, args ...interface{}) (string, error) {
	return interpolate(sql, false, args...)
}

// interpolateFor is Interpolate against a live session, escaping in
// whichever mode the server's last-observed status flags require.
func interpolateFor(s *session.Session, sql string, args ...interface{}) (string, error) {
	return interpolate(sql, s.NoBackslashEscapes(), args...)
}

func interpolate(sql string, noBackslashEscapes bool, args ...interface{}) (string, error) {
	if len(args) == 0 {
		return sql, nil
	}
	var out []byte
	argi := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			if argi >= len(args) {
				return "", errors.New(errors.KindProgrammingError, "not enough arguments for placeholders in query")
			}
			text, err := codec.Escape(codec.FromAny(args[argi]), noBackslashEscapes)
			if err != nil {
				return "", err
			}
			out = append(out, text...)
			argi++
			continue
		}
		out = append(out, sql[i])
	}
	if argi != len(args) {
		return "", errors.New(errors.KindProgrammingError, "too many arguments for placeholders in query")
	}
	return string(out), nil
}

// Pool is a pooled set of Conns, wrapping pool.Pool with the Conn-typed
// dialer callers actually want instead of a bare *session.Session.
type Pool struct {
	p *pool.Pool
}

// NewPool creates a connection pool that dials with opts, per §6.
func NewPool(ctx context.Context, cfg pool.Config, opts *Options, log *zerolog.Logger) (*Pool, error) {
	dial := func(ctx context.Context) (*session.Session, error) {
		s := session.New(opts, log)
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	p, err := pool.New(ctx, cfg, dial, log)
	if err != nil {
		return nil, err
	}
	return &Pool{p: p}, nil
}

// Acquire checks out a Conn from the pool, per §6.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	s, err := p.p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{sess: s, buffered: true}, nil
}

// Release returns c's underlying session to the pool.
func (p *Pool) Release(c *Conn) error { return p.p.Release(c.sess) }

// Close marks the pool closing, per §6.
func (p *Pool) Close() { p.p.Close() }

// Terminate force-closes every checked-out connection, per §6.
func (p *Pool) Terminate() error { return p.p.Terminate() }

// WaitClosed blocks until every pooled connection has closed.
func (p *Pool) WaitClosed(ctx context.Context) error { return p.p.WaitClosed(ctx) }
