package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cache:weather:berlin", "sunny", time.Hour))

	v, ok, err := s.Get(ctx, "cache:weather:berlin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sunny", v)
}

func TestGet_AbsentKey(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get(context.Background(), "cache:weather:nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_ExpiredKeyIsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cache:news:oslo", "quiet", -time.Second))

	_, ok, err := s.Get(ctx, "cache:news:oslo")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries must read as absent")
}

func TestSet_OverwriteRefreshesExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sess:abc", "v1", -time.Second))
	require.NoError(t, s.Set(ctx, "sess:abc", "v2", time.Hour))

	v, ok, err := s.Get(ctx, "sess:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestExpire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sess:abc", "v", time.Hour))
	assert.NoError(t, s.Expire(ctx, "sess:abc", 24*time.Hour))
	assert.ErrorIs(t, s.Expire(ctx, "sess:missing", time.Hour), ErrKeyNotFound)
}

func TestScan_GlobPatterns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cache:weather:berlin", "a", time.Hour))
	require.NoError(t, s.Set(ctx, "cache:weather:oslo", "b", time.Hour))
	require.NoError(t, s.Set(ctx, "cache:news:berlin", "c", time.Hour))
	require.NoError(t, s.Set(ctx, "sess:1", "d", time.Hour))
	require.NoError(t, s.Set(ctx, "cache:weather:gone", "e", -time.Second))

	keys, err := s.Scan(ctx, "cache:weather:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cache:weather:berlin", "cache:weather:oslo"}, keys)
}

func TestDeleteByPatterns_ReportsCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cache:tool:weather_line:berlin:today", "x", time.Hour))
	require.NoError(t, s.Set(ctx, "cache:news:berlin", "y", time.Hour))
	require.NoError(t, s.Set(ctx, "sess:1", "z", time.Hour))

	deleted, err := s.DeleteByPatterns(ctx, []string{"cache:*", "sess:*"})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	keys, err := s.Scan(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPurgeExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", -time.Second))
	require.NoError(t, s.Set(ctx, "b", "2", -time.Second))
	require.NoError(t, s.Set(ctx, "c", "3", time.Hour))
	require.NoError(t, s.Set(ctx, "d", "4", 0)) // no expiry

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = s.Get(ctx, "d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sess:1", "hello", time.Hour))

	report, err := s.Usage(ctx, 28)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Keys)
	assert.Equal(t, int64(len("sess:1")+len("hello")), report.UsedBytes)
	assert.False(t, report.ShouldPurge)
	assert.Equal(t, 28, report.ThresholdMB)
	assert.NotEmpty(t, report.UsedHuman)
}
