package core

// limiter.go bounds the number of conversion runs in flight.
//
// Each run buffers its source and output document in memory, so an unbounded
// number of parallel runs can exhaust the process. The limiter wraps a
// weighted semaphore: callers wait up to maxWait for a slot, then fail with
// ErrTooManyConversions so the client can retry later.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyConversions is returned when every conversion slot is occupied
// and the wait timeout expires.
var ErrTooManyConversions = errors.New("too many concurrent conversions, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel conversion runs.
const DefaultMaxConcurrentRuns = 4

// DefaultSlotWait is how long Acquire waits for a slot before rejecting.
const DefaultSlotWait = 30 * time.Second

// ConversionLimiter restricts how many conversion runs execute at once.
type ConversionLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewConversionLimiter creates a limiter allowing at most maxConcurrent
// simultaneous runs. Non-positive arguments fall back to the defaults.
func NewConversionLimiter(maxConcurrent int, maxWait time.Duration) *ConversionLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultSlotWait
	}
	return &ConversionLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire claims a run slot, waiting up to the configured limit. It returns
// ErrTooManyConversions when the wait expires, or the context's error when
// the caller's context ends first. Every successful Acquire must be paired
// with exactly one Release.
func (l *ConversionLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyConversions
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return nil
}

// TryAcquire claims a slot without waiting. It reports whether one was
// acquired.
func (l *ConversionLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return true
}

// Release returns a previously acquired slot.
func (l *ConversionLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	l.sem.Release(1)
}

// ActiveCount returns the number of runs currently holding a slot.
func (l *ConversionLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot capacity.
func (l *ConversionLimiter) MaxConcurrent() int {
	return int(l.max)
}

// Available returns the number of free slots.
func (l *ConversionLimiter) Available() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int(l.max) - l.active
}

// WaitForDrain blocks until every active run has released its slot or the
// context ends. Used during shutdown so in-flight conversions can finish.
func (l *ConversionLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.max); err != nil {
		return err
	}
	l.sem.Release(l.max)
	return nil
}

// LimiterStatus is a snapshot of the limiter for the status endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports the limiter's current occupancy.
func (l *ConversionLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     int(l.max) - active,
		MaxConcurrent: int(l.max),
	}
}
