// Package sweeper expires overdue signature requests on a schedule. Reads
// of a user's pending list expire lazily as well; the sweeper covers
// documents nobody is looking at.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const lockName = "document-expiry-sweep"

// DefaultInterval applies when NewWorker gets a non-positive interval.
const DefaultInterval = time.Minute

type Sweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// Locker grants a lease so only one replica sweeps at a time.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Worker struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(sweeper Sweeper, locker Locker, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{sweeper: sweeper, locker: locker, interval: interval, logger: logger}
}

// Start sweeps every interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce sweeps if the lease is free. It returns the number of expired
// documents, zero when another replica holds the lease.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	release, ok, err := w.locker.TryLock(ctx, lockName, w.interval)
	if err != nil {
		return 0, err
	}
	if !ok {
		w.logger.DebugContext(ctx, "expiry sweep skipped, lease held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			w.logger.WarnContext(ctx, "failed to release sweep lease", "error", err)
		}
	}()

	n, err := w.sweeper.SweepOverdue(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "expired overdue documents", "count", n)
	}
	return n, nil
}

// LocalLocker is an in-process Locker for single-replica deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, false, nil
	}
	l.held[name] = now.Add(ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		return nil
	}, true, nil
}
