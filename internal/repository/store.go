package repository

import (
	"context"
	"time"

	"jertine-site/internal/domain"
)

// RateStore persists fixed-window rate records by client key. Implementations
// must be safe for concurrent use, including from several processes sharing
// one backend.
type RateStore interface {
	// Incr records one attempt for key at now and returns the updated record.
	// An absent record, or one whose window ended before now, is replaced by
	// {Count: 1, ResetAt: now+window}. The read-modify-write is atomic per key.
	Incr(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateRecord, error)
	Get(ctx context.Context, key string) (domain.RateRecord, bool, error)
	Set(ctx context.Context, key string, rec domain.RateRecord) error
	Delete(ctx context.Context, key string) error
}
