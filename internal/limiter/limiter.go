package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultMaxConcurrent = 5

// Limiter caps the number of in-flight calls. Waiters are admitted in FIFO order.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int
	inflight atomic.Int64
	peak     atomic.Int64

	// OnAcquire and OnRelease, when set, run after a slot is taken or returned.
	OnAcquire func()
	OnRelease func()
}

// New returns a limiter with max slots. Values below 1 use DefaultMaxConcurrent.
func New(max int) *Limiter {
	if max < 1 {
		max = DefaultMaxConcurrent
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(max)), size: max}
}

func (l *Limiter) Size() int { return l.size }

// InFlight returns the number of calls currently holding a slot.
func (l *Limiter) InFlight() int { return int(l.inflight.Load()) }

// Peak returns the highest in-flight count observed.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }

// Acquire blocks until a slot is free or ctx is done. A done context is never
// admitted, even when a slot is free.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	l.enter()
	return l.releaseFunc(), nil
}

// Allow tries to reserve a slot without waiting.
// Returns a release function and true if allowed; otherwise a no-op and false.
func (l *Limiter) Allow() (func(), bool) {
	if !l.sem.TryAcquire(1) {
		return func() {}, false
	}
	l.enter()
	return l.releaseFunc(), true
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (l *Limiter) enter() {
	n := l.inflight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if l.OnAcquire != nil {
		l.OnAcquire()
	}
}

func (l *Limiter) releaseFunc() func() {
	var done atomic.Bool
	return func() {
		if !done.CompareAndSwap(false, true) {
			return
		}
		l.inflight.Add(-1)
		l.sem.Release(1)
		if l.OnRelease != nil {
			l.OnRelease()
		}
	}
}
