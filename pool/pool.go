// Package pool implements the connection pool of §6: a bounded set of
// sessions split into free/used/terminated sets, guarded by one
// condition variable, with recycle-by-age and a liveness sweep. Grounded
// in original_source/asyncmy/pool.py's Pool class (the teacher's
// thrsafe.Conn is a single mutex-guarded connection, not a real pool, so
// it contributes no structure here beyond the general "wrap the
// protocol type behind a safe concurrent façade" idiom); translated from
// asyncio.Condition to sync.Cond and from Python's exception-based
// connect failures to Go's explicit error returns.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/long2ice/asyncmy/errors"
	"github.com/long2ice/asyncmy/proto"
	"github.com/long2ice/asyncmy/session"
)

// prefillConcurrency bounds how many dials New runs at once when bringing
// the pool up to MinSize; dialing is usually a real network round trip,
// so filling a large MinSize serially would make startup latency scale
// with MinSize instead of with the slowest single dial.
const prefillConcurrency = 4

// Dialer creates and connects a new Session, per pool.py's
// `connect(**self._connection_kwargs)`. Supplied by the caller so this
// package stays independent of how a Session's Options are constructed.
type Dialer func(ctx context.Context) (*session.Session, error)

// Config mirrors pool.py's Pool.__init__ keyword arguments, plus two
// additions: MaxLifetime (recycle-by-age) and LivenessInterval (the
// liveness sweep), neither of which the Python original has.
type Config struct {
	MinSize int
	MaxSize int

	// PoolRecycle is spec §4.7's pool_recycle: a free session that has
	// sat idle longer than this is dropped by the staleness sweep
	// fill_free_pool runs at the top of every Acquire, rather than
	// being handed to the caller. Zero or negative disables it (the
	// Go-idiomatic zero-value-means-off convention; the spec's Python
	// original instead reserves a negative value for "disabled" and
	// treats zero as "recycle immediately", but nothing in §4.7
	// requires zero to behave that way and every other Config field
	// here already uses zero-disables).
	PoolRecycle time.Duration

	// MaxLifetime recycles a session once it has existed this long,
	// closing it on release instead of returning it to the free set.
	// Zero disables recycling by age.
	MaxLifetime time.Duration

	// LivenessInterval, when non-zero, runs a background sweep that
	// pings every free session idle longer than LivenessInterval and
	// drops any that fail to respond, per §6's liveness sweep.
	LivenessInterval time.Duration
}

// Pool is the connection pool described in §6, translating pool.py's
// asyncio.Condition-guarded free/used/terminated sets to sync.Cond.
type Pool struct {
	cfg    Config
	dial   Dialer
	log    *zerolog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	free       []*session.Session
	used       map[*session.Session]struct{}
	terminated map[*session.Session]struct{}

	closing bool
	closed  bool

	acquiring int

	stopSweep chan struct{}
}

// New creates a Pool. If cfg.MinSize > 0, it blocks filling the pool to
// MinSize sessions before returning, per pool.py's _create_pool.
func New(ctx context.Context, cfg Config, dial Dialer, log *zerolog.Logger) (*Pool, error) {
	if cfg.MaxSize <= 0 {
		return nil, errors.New(errors.KindProgrammingError, "pool: MaxSize must be greater than zero")
	}
	if cfg.MinSize < 0 {
		return nil, errors.New(errors.KindProgrammingError, "pool: MinSize must be greater than or equal to zero")
	}
	if cfg.MinSize > cfg.MaxSize {
		return nil, errors.New(errors.KindProgrammingError, "pool: MinSize is greater than MaxSize")
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	p := &Pool{
		cfg:        cfg,
		dial:       dial,
		log:        log,
		used:       make(map[*session.Session]struct{}),
		terminated: make(map[*session.Session]struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	if cfg.MinSize > 0 {
		if err := p.prefill(ctx, cfg.MinSize); err != nil {
			return nil, err
		}
	}

	if cfg.LivenessInterval > 0 {
		p.stopSweep = make(chan struct{})
		go p.sweepLoop()
	}
	return p, nil
}

// MaxSize returns the pool's configured capacity.
func (p *Pool) MaxSize() int { return p.cfg.MaxSize }

// MinSize returns the pool's configured floor.
func (p *Pool) MinSize() int { return p.cfg.MinSize }

// FreeSize returns the number of immediately available sessions.
func (p *Pool) FreeSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Size returns the number of sessions the pool currently owns, free or
// in use, per pool.py's `size` property.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) + len(p.used)
}

// Acquiring returns the number of callers currently blocked in Acquire,
// useful for saturation metrics/dashboards.
func (p *Pool) Acquiring() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquiring
}

// prefill dials up to n sessions concurrently, bounded by
// prefillConcurrency, and adds them all to free. Used only by New, where
// there is no caller yet that could be racing the free/used sets.
func (p *Pool) prefill(ctx context.Context, n int) error {
	sem := semaphore.NewWeighted(prefillConcurrency)
	g, gctx := errgroup.WithContext(ctx)
	sessions := make([]*session.Session, n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			s, err := p.dial(gctx)
			if err != nil {
				return err
			}
			sessions[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, s := range sessions {
			if s != nil {
				s.Close()
			}
		}
		return err
	}
	p.free = append(p.free, sessions...)
	return nil
}

// fillFreeLocked is §4.7's fill_free_pool: first sweep free for stale
// entries, then dial new sessions until the pool reaches MinSize, per
// pool.py's initialize(). Must be called with p.mu held.
func (p *Pool) fillFreeLocked(ctx context.Context) error {
	p.sweepStaleLocked()
	for len(p.free)+len(p.used) < p.cfg.MinSize {
		p.mu.Unlock()
		s, err := p.dial(ctx)
		p.mu.Lock()
		if err != nil {
			return err
		}
		p.free = append(p.free, s)
		p.cond.Signal()
	}
	return nil
}

// sweepStaleLocked is §4.7's fill_free_pool staleness sweep: walking
// free from the tail, drop any session that has already closed itself
// or has sat idle longer than PoolRecycle (when PoolRecycle > 0).
// Surviving entries keep their relative order. p.mu must be held on
// entry.
func (p *Pool) sweepStaleLocked() {
	kept := p.free[:0:0]
	for i := len(p.free) - 1; i >= 0; i-- {
		s := p.free[i]
		stale := s.State() == session.StateClosed ||
			(p.cfg.PoolRecycle > 0 && s.Idle() > p.cfg.PoolRecycle)
		if stale {
			s.Close()
			continue
		}
		kept = append(kept, s)
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	p.free = kept
}

// Acquire waits for and returns a free session, dialing new ones up to
// MinSize as needed, per pool.py's _acquire. If the pool is already
// closing it returns an error at once; otherwise it blocks until a
// session is free or the context is done (Close does not wake callers
// already waiting).
func (p *Pool) Acquire(ctx context.Context) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return nil, errors.New(errors.KindInterfaceError, "pool: cannot acquire connection after closing pool")
	}

	p.acquiring++
	defer func() { p.acquiring-- }()

	for {
		if err := p.fillFreeLocked(ctx); err != nil {
			return nil, err
		}
		if len(p.free) > 0 {
			s := p.free[0]
			p.free = p.free[1:]
			p.used[s] = struct{}{}
			return s, nil
		}
		if len(p.free)+len(p.used) < p.cfg.MaxSize {
			p.mu.Unlock()
			s, err := p.dial(ctx)
			p.mu.Lock()
			if err != nil {
				return nil, err
			}
			p.used[s] = struct{}{}
			return s, nil
		}
		if waitErr := p.waitLocked(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

// waitLocked blocks on p.cond until signaled or ctx is done. p.mu must
// be held on entry and is held again on return; Go's sync.Cond has no
// context-aware wait, so a cancellation watcher goroutine is used to
// force a spurious wakeup, mirroring the role asyncio.Condition.wait()
// plays under a cancelled task in the original.
func (p *Pool) waitLocked(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()
	p.cond.Wait()
	close(done)
	return ctx.Err()
}

// Release returns s to the free set, or closes it outright if the pool
// is closing, the session has died, it is inside a transaction, or it
// has exceeded MaxLifetime, per
// pool.py's release() plus the recycle-by-age addition.
func (p *Pool) Release(s *session.Session) error {
	p.mu.Lock()
	if _, ok := p.terminated[s]; ok {
		delete(p.terminated, s)
		p.mu.Unlock()
		return nil
	}
	delete(p.used, s)

	recycle := p.closing || s.State() == session.StateClosed ||
		s.StatusFlags()&proto.StatusInTrans != 0 ||
		(p.cfg.MaxLifetime > 0 && s.Age() > p.cfg.MaxLifetime)

	if recycle {
		p.mu.Unlock()
		err := s.Close()
		p.mu.Lock()
		p.cond.Signal()
		p.mu.Unlock()
		return err
	}

	s.Unlock()
	p.free = append(p.free, s)
	p.cond.Signal()
	p.mu.Unlock()
	return nil
}

// Clear closes every currently free session, per pool.py's clear().
func (p *Pool) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for len(p.free) > 0 {
		s := p.free[0]
		p.free = p.free[1:]
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.cond.Signal()
	return firstErr
}

// Close marks the pool closing: every session returned via Release from
// now on is closed instead of recycled, per pool.py's close(). New
// acquisitions are rejected immediately.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closing = true
}

// Terminate closes the pool and forcibly closes every session currently
// checked out, per pool.py's terminate(). Unlike Close, it does not wait
// for in-flight users to finish with their sessions first.
func (p *Pool) Terminate() error {
	p.Close()

	p.mu.Lock()
	used := make([]*session.Session, 0, len(p.used))
	for s := range p.used {
		used = append(used, s)
	}
	p.mu.Unlock()

	var firstErr error
	for _, s := range used {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.mu.Lock()
		delete(p.used, s)
		p.terminated[s] = struct{}{}
		p.mu.Unlock()
	}
	return firstErr
}

// WaitClosed blocks until every session the pool owns has been
// released and closed, per pool.py's wait_closed(). Close must have
// been called first.
func (p *Pool) WaitClosed(ctx context.Context) error {
	p.mu.Lock()
	if !p.closing {
		p.mu.Unlock()
		return errors.New(errors.KindInterfaceError, "pool: WaitClosed should be called after Close")
	}
	for len(p.free) > 0 {
		s := p.free[0]
		p.free = p.free[1:]
		p.mu.Unlock()
		s.Close()
		p.mu.Lock()
	}
	for len(p.used) > 0 {
		if err := p.waitLocked(ctx); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	p.closed = true
	p.mu.Unlock()

	if p.stopSweep != nil {
		close(p.stopSweep)
	}
	return nil
}

// sweepLoop is the liveness sweep supplemented feature recorded in the
// grounding ledger: periodically pings every free session idle longer
// than LivenessInterval and drops any that fail to respond, so a
// half-dead connection doesn't sit in the free set until a caller
// discovers it the hard way.
func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Pool) sweepOnce() {
	p.mu.Lock()
	var candidates []*session.Session
	keep := p.free[:0:0]
	for _, s := range p.free {
		if s.Idle() > p.cfg.LivenessInterval {
			candidates = append(candidates, s)
		} else {
			keep = append(keep, s)
		}
	}
	p.free = keep
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range candidates {
		if err := s.Ping(ctx); err != nil {
			p.log.Warn().Err(err).Msg("pool: dropping unresponsive idle session")
			s.Close()
			continue
		}
		p.mu.Lock()
		p.free = append(p.free, s)
		p.cond.Signal()
		p.mu.Unlock()
	}
}
