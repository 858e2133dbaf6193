// Package driver registers "asyncmy" as a database/sql driver, adapting
// session/resultset to the database/sql/driver interfaces. Grounded in
// godrv/driver.go, which did the same thing against the now-obsolete
// "exp/sql" package and the teacher's own synchronous mysql.Conn; this
// version targets the standard database/sql and uses a DSN syntax
// generalized from godrv's `proto:addr*db/user/passwd` scheme.
package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"

	"github.com/long2ice/asyncmy/codec"
	"github.com/long2ice/asyncmy/resultset"
	"github.com/long2ice/asyncmy/session"
)

func init() {
	sql.Register("asyncmy", &Driver{})
}

// Driver implements driver.Driver and driver.DriverContext.
type Driver struct{}

// Open parses name as a DSN and returns a live connection, per
// driver.Driver. DSN syntax: "tcp:ADDR*DBNAME/USER/PASSWD", mirroring
// godrv's URI scheme minus the unix-socket variant (this driver only
// ever dials TCP, per session.Session.Connect).
func (d *Driver) Open(name string) (driver.Conn, error) {
	opts, err := parseDSN(name)
	if err != nil {
		return nil, err
	}
	return connect(context.Background(), opts)
}

// OpenConnector returns a Connector that defers dialing to Connect, so
// database/sql can pass a caller's context through to the dial.
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	opts, err := parseDSN(name)
	if err != nil {
		return nil, err
	}
	return &connector{opts: opts, driver: d}, nil
}

type connector struct {
	opts   *session.Options
	driver driver.Driver
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	return connect(ctx, c.opts)
}

func (c *connector) Driver() driver.Driver { return c.driver }

// parseDSN parses "tcp:ADDR*DBNAME/USER/PASSWD", or the protocol-less
// short form "DBNAME/USER/PASSWD" against 127.0.0.1:3306.
func parseDSN(dsn string) (*session.Options, error) {
	addr := "127.0.0.1:3306"
	rest := dsn
	if proto, tail, ok := strings.Cut(dsn, "*"); ok {
		p, a, ok := strings.Cut(proto, ":")
		if !ok || p != "tcp" {
			return nil, errors.New("asyncmy: dsn must use tcp:ADDR*DBNAME/USER/PASSWD")
		}
		addr = a
		rest = tail
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return nil, errors.New("asyncmy: dsn database part must be DBNAME/USER/PASSWD")
	}
	return &session.Options{
		Addr:     addr,
		DBName:   parts[0],
		User:     parts[1],
		Password: parts[2],
	}, nil
}

func connect(ctx context.Context, opts *session.Options) (driver.Conn, error) {
	s := session.New(opts, nil)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return &conn{sess: s}, nil
}

type conn struct {
	sess *session.Session
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

func (c *conn) Close() error { return c.sess.Close() }

func (c *conn) Begin() (driver.Tx, error) {
	if _, err := resultset.Query(c.sess, "BEGIN", true, nil); err != nil {
		return nil, err
	}
	return &tx{conn: c}, nil
}

type tx struct{ conn *conn }

func (t *tx) Commit() error {
	_, err := resultset.Query(t.conn.sess, "COMMIT", true, nil)
	return err
}

func (t *tx) Rollback() error {
	_, err := resultset.Query(t.conn.sess, "ROLLBACK", true, nil)
	return err
}

type stmt struct {
	conn  *conn
	query string
}

// NumInput returns the `?` placeholder count; asyncmy always interpolates
// client-side. database/sql checks the argument count against it.
func (s *stmt) NumInput() int { return strings.Count(s.query, "?") }

func (s *stmt) Close() error { return nil }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	text, err := interpolate(s.query, s.conn.sess.NoBackslashEscapes(), args)
	if err != nil {
		return nil, err
	}
	rows, err := resultset.Query(s.conn.sess, text, true, nil)
	if err != nil {
		return nil, err
	}
	ok := rows.OK()
	if ok == nil {
		return driver.RowsAffected(0), nil
	}
	return execResult{affected: int64(ok.AffectedRows), lastInsertID: int64(ok.LastInsertID)}, nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	text, err := interpolate(s.query, s.conn.sess.NoBackslashEscapes(), args)
	if err != nil {
		return nil, err
	}
	rows, err := resultset.Query(s.conn.sess, text, true, nil)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

type execResult struct {
	affected     int64
	lastInsertID int64
}

func (r execResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r execResult) RowsAffected() (int64, error) { return r.affected, nil }

type sqlRows struct {
	rows *resultset.Rows
}

func (r *sqlRows) Columns() []string {
	fields := r.rows.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func (r *sqlRows) Close() error { return r.rows.Close() }

func (r *sqlRows) Next(dest []driver.Value) error {
	vals := make([]codec.Value, len(r.rows.Fields()))
	ok, err := r.rows.Next(vals)
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	for i, v := range vals {
		dest[i] = v.Any()
	}
	return nil
}

// interpolate substitutes `?` placeholders with each arg's escaped SQL
// text form, since this driver has no server-side prepared-statement
// protocol to bind arguments against (text protocol only).
// noBackslashEscapes selects the quoting mode the server's last-observed
// status flags require, per §4.6.
func interpolate(query string, noBackslashEscapes bool, args []driver.Value) (string, error) {
	if len(args) == 0 {
		return query, nil
	}
	var out []byte
	argi := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			if argi >= len(args) {
				return "", errors.New("asyncmy: not enough arguments for placeholders in query")
			}
			text, err := codec.Escape(codec.FromAny(args[argi]), noBackslashEscapes)
			if err != nil {
				return "", err
			}
			out = append(out, text...)
			argi++
			continue
		}
		out = append(out, query[i])
	}
	return string(out), nil
}
