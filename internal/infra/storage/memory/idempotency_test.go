package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/app/middleware"
)

func TestIdempotencyStoreKeepsFirstRecord(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(0)

	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Fingerprint: "a"}))
	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Fingerprint: "b"}))

	rec, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", rec.Fingerprint)
	assert.False(t, rec.StoredAt.IsZero())
}

func TestIdempotencyStoreExpiresRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", StoredAt: now}))
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Fingerprint: "again"}))
	rec, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "again", rec.Fingerprint)
	assert.Equal(t, now, rec.StoredAt)
}
