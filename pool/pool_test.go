package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/long2ice/asyncmy/session"
)

func newTestDialer() Dialer {
	return func(ctx context.Context) (*session.Session, error) {
		return session.New(&session.Options{}, nil), nil
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(context.Background(), Config{MaxSize: 0}, newTestDialer(), nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{MaxSize: 1, MinSize: -1}, newTestDialer(), nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{MaxSize: 1, MinSize: 2}, newTestDialer(), nil)
	assert.Error(t, err)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p, err := New(context.Background(), Config{MaxSize: 2}, newTestDialer(), nil)
	assert.NoError(t, err)

	s, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, 0, p.FreeSize())

	assert.NoError(t, p.Release(s))
	assert.Equal(t, 1, p.FreeSize())
}

func TestAcquireRespectsMaxSize(t *testing.T) {
	p, err := New(context.Background(), Config{MaxSize: 1}, newTestDialer(), nil)
	assert.NoError(t, err)

	s1, err := p.Acquire(context.Background())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	assert.Error(t, err)

	assert.NoError(t, p.Release(s1))
}

func TestCloseRejectsAcquire(t *testing.T) {
	p, err := New(context.Background(), Config{MaxSize: 1}, newTestDialer(), nil)
	assert.NoError(t, err)
	p.Close()
	_, err = p.Acquire(context.Background())
	assert.Error(t, err)
}

func TestMinSizePrefills(t *testing.T) {
	p, err := New(context.Background(), Config{MaxSize: 3, MinSize: 2}, newTestDialer(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, p.FreeSize())
}

func TestPoolRecycleDropsIdleSession(t *testing.T) {
	dialCount := 0
	dialer := func(ctx context.Context) (*session.Session, error) {
		dialCount++
		return session.New(&session.Options{}, nil), nil
	}
	p, err := New(context.Background(), Config{MaxSize: 2, PoolRecycle: 50 * time.Millisecond}, dialer, nil)
	assert.NoError(t, err)

	s1, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, p.Release(s1))
	assert.Equal(t, 1, dialCount)

	time.Sleep(100 * time.Millisecond)

	s2, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, dialCount)
}

func TestPoolRecycleDisabledByDefault(t *testing.T) {
	p, err := New(context.Background(), Config{MaxSize: 2}, newTestDialer(), nil)
	assert.NoError(t, err)

	s1, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, p.Release(s1))

	time.Sleep(20 * time.Millisecond)

	s2, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.Same(t, s1, s2)
}
