package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jertine-site/internal/domain"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10)
	s.now = func() time.Time { return now }

	_, ok, err := s.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, ok)

	rec := domain.RateRecord{Count: 2, ResetAt: now.Add(time.Minute)}
	require.NoError(t, s.Set(ctx, "1.2.3.4", rec))

	got, ok, err := s.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)

	require.NoError(t, s.Delete(ctx, "1.2.3.4"))
	_, ok, _ = s.Get(ctx, "1.2.3.4")
	require.False(t, ok)
}

func TestMemoryStore_ExpiredRecordIsPrunedOnRead(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", domain.RateRecord{Count: 5, ResetAt: now.Add(time.Second)}))
	require.Equal(t, 1, s.Len())

	now = now.Add(2 * time.Second)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, s.Len())
}

func TestMemoryStore_EvictsLeastRecentlySeen(t *testing.T) {
	ctx := context.Background()
	reset := time.Now().Add(time.Hour)
	s := NewMemoryStore(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), domain.RateRecord{Count: 1, ResetAt: reset}))
	}
	// Touch k0 so k1 becomes the oldest.
	_, ok, _ := s.Get(ctx, "k0")
	require.True(t, ok)

	require.NoError(t, s.Set(ctx, "k3", domain.RateRecord{Count: 1, ResetAt: reset}))
	require.Equal(t, 3, s.Len())

	_, ok, _ = s.Get(ctx, "k1")
	require.False(t, ok)
	_, ok, _ = s.Get(ctx, "k0")
	require.True(t, ok)
}

func TestNewMemoryStore_DefaultBound(t *testing.T) {
	s := NewMemoryStore(0)
	require.Equal(t, defaultMaxKeys, s.cache.MaxEntries)
}

func TestMemoryStore_Incr(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10)

	rec, err := s.Incr(ctx, "k", now, time.Minute)
	require.NoError(t, err)
	require.Equal(t, domain.RateRecord{Count: 1, ResetAt: now.Add(time.Minute)}, rec)

	rec, err = s.Incr(ctx, "k", now.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	require.Equal(t, domain.RateRecord{Count: 2, ResetAt: now.Add(time.Minute)}, rec)

	later := now.Add(time.Minute + time.Millisecond)
	rec, err = s.Incr(ctx, "k", later, time.Minute)
	require.NoError(t, err)
	require.Equal(t, domain.RateRecord{Count: 1, ResetAt: later.Add(time.Minute)}, rec)
}
