// Package ratelimit implements the fixed-window limiter guarding the contact
// endpoint.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"jertine-site/internal/repository"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 5
)

// Limiter counts attempts per key in fixed windows. Attempts past the limit
// are still counted, so a client stays blocked until its window resets.
// Counting is delegated to the store's atomic Incr, so limiters in different
// processes sharing one store enforce a single limit.
type Limiter struct {
	store  repository.RateStore
	window time.Duration
	max    int
}

// New creates a limiter over store. Non-positive window or max fall back to
// the defaults.
func New(store repository.RateStore, window time.Duration, max int) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store must not be nil")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	return &Limiter{store: store, window: window, max: max}, nil
}

// Allow records an attempt for key at now and reports whether it is within
// the limit.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	rec, err := l.store.Incr(ctx, key, now, l.window)
	if err != nil {
		return false, err
	}
	return rec.Count <= l.max, nil
}
