// Package autorc wraps a single asyncmy connection with automatic
// reconnect-and-retry, the way autorc/autorecon.go wraps a mysql.Conn:
// every call first connects if not already connected, then on a network
// error reconnects and retries with a linearly increasing backoff, up to
// MaxRetries attempts.
package autorc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/long2ice/asyncmy"
	"github.com/long2ice/asyncmy/resultset"
)

// IsNetErr reports whether err looks like a transport failure worth
// reconnecting for, as opposed to a server-side error (bad SQL, a
// constraint violation) that a reconnect can't fix.
func IsNetErr(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Conn is a reconnecting wrapper around a single asyncmy.Conn.
type Conn struct {
	opts *asyncmy.Options
	log  *zerolog.Logger

	mu   sync.Mutex
	conn *asyncmy.Conn

	// MaxRetries caps reconnect attempts per call; the default of 7
	// means up to 1+2+...+7 = 28 seconds of backoff before giving up.
	MaxRetries int

	// Debug logs each reconnect attempt at Info level when true.
	Debug bool
}

// New creates a reconnecting connection that dials lazily on first use.
func New(opts *asyncmy.Options, log *zerolog.Logger) *Conn {
	return &Conn{opts: opts, log: log, MaxRetries: 7}
}

func (c *Conn) connectIfNotConnected(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := asyncmy.Connect(ctx, c.opts, c.log)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *Conn) reconnect(ctx context.Context) error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	conn, err := asyncmy.Connect(ctx, c.opts, c.log)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// retry runs op, and on a network error reconnects and retries with a
// 1s, 2s, 3s, ... backoff until MaxRetries is exhausted.
func (c *Conn) retry(ctx context.Context, op func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectIfNotConnected(ctx); err != nil {
		return err
	}
	attempt := 0
	for {
		err := op()
		if err == nil || !IsNetErr(err) || attempt >= c.MaxRetries {
			return err
		}
		attempt++
		if c.Debug && c.log != nil {
			c.log.Info().Err(err).Int("attempt", attempt).Msg("autorc: reconnecting")
		}
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		if rerr := c.reconnect(ctx); rerr != nil {
			if c.Debug && c.log != nil {
				c.log.Warn().Err(rerr).Msg("autorc: reconnect failed")
			}
			return rerr
		}
	}
}

// Query runs sql with automatic connect/reconnect/retry.
func (c *Conn) Query(ctx context.Context, sql string, args ...interface{}) (*resultset.Rows, error) {
	var rows *resultset.Rows
	err := c.retry(ctx, func() error {
		var qerr error
		rows, qerr = c.conn.Query(sql, args...)
		return qerr
	})
	return rows, err
}

// Use changes the connection's default database, with retry.
func (c *Conn) Use(ctx context.Context, dbname string) error {
	return c.retry(ctx, func() error { return c.conn.Use(dbname) })
}

// Ping checks liveness, with retry.
func (c *Conn) Ping(ctx context.Context) error {
	return c.retry(ctx, func() error { return c.conn.Ping(ctx) })
}

// Close closes the underlying connection, if any.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
