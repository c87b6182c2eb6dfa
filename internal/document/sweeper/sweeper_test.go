package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int
	n     int
	err   error
}

func (c *countingSweeper) SweepOverdue(context.Context) (int, error) {
	c.calls++
	return c.n, c.err
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("sweeps when the lease is free and releases it", func(t *testing.T) {
		sw := &countingSweeper{n: 3}
		locker := NewLocalLocker()
		w := NewWorker(sw, locker, time.Minute, nil)

		n, err := w.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		_, ok, err := locker.TryLock(ctx, lockName, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "lease should be released after the sweep")
	})

	t.Run("skips while another holder has the lease", func(t *testing.T) {
		sw := &countingSweeper{n: 3}
		locker := NewLocalLocker()
		_, ok, err := locker.TryLock(ctx, lockName, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		n, err := NewWorker(sw, locker, time.Minute, nil).RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, sw.calls)
	})

	t.Run("propagates sweep errors", func(t *testing.T) {
		sw := &countingSweeper{err: errors.New("db down")}
		_, err := NewWorker(sw, NewLocalLocker(), time.Minute, nil).RunOnce(ctx)
		assert.Error(t, err)
	})
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	_, ok, _ := l.TryLock(ctx, "x", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	_, ok, _ = l.TryLock(ctx, "x", time.Minute)
	assert.True(t, ok, "expired lease can be taken over")
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := &countingSweeper{}
	done := make(chan error, 1)
	go func() { done <- NewWorker(sw, NewLocalLocker(), time.Millisecond, nil).Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNonPositiveIntervalFallsBack(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		w := NewWorker(&countingSweeper{}, NewLocalLocker(), interval, nil)
		assert.Equal(t, DefaultInterval, w.interval)
	}
}
