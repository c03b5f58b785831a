package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Empty(t *testing.T) {
	s := createTestStore(t)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
	assert.Zero(t, st.HitRate())
}

func TestStats_CountsEntriesAndSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.PutIfAbsent(ctx, "a", "sat")
	require.NoError(t, err)
	_, err = s.PutIfAbsent(ctx, "b", "unsat")
	require.NoError(t, err)

	start := time.UnixMilli(1700000000000)
	require.NoError(t, s.RecordSession(ctx, SessionRecord{
		ID: "s1", Solver: "z3", StartedAt: start, EndedAt: start.Add(time.Second),
		Lines: 10, Lookups: 4, Hits: 3, Misses: 1, Forwarded: 6, EndReason: "exit",
	}))
	require.NoError(t, s.RecordSession(ctx, SessionRecord{
		ID: "s2", Solver: "z3", StartedAt: start, EndedAt: start,
		Lookups: 4, Hits: 1, Misses: 3, Forwarded: 3, EndReason: "eof",
	}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Entries)
	assert.Equal(t, int64(8), st.ResultBytes)
	assert.Equal(t, int64(2), st.Sessions)
	assert.Equal(t, int64(8), st.Lookups)
	assert.Equal(t, int64(4), st.Hits)
	assert.Equal(t, int64(4), st.Misses)
	assert.Equal(t, int64(9), st.Forwarded)
	assert.InDelta(t, 0.5, st.HitRate(), 1e-9)
}

func TestRecordSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1700000000000)

	rec := SessionRecord{ID: "s1", Solver: "yices", StartedAt: start, EndedAt: start, Hits: 1, EndReason: "exit"}
	require.NoError(t, s.RecordSession(ctx, rec))

	rec.Hits = 99
	require.NoError(t, s.RecordSession(ctx, rec))

	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Hits)
	assert.Equal(t, "yices", got.Solver)
	assert.True(t, got.StartedAt.Equal(start))
}

func TestReadSession_Missing(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSession(context.Background(), "nope")
	assert.Error(t, err)
}

func TestEntries_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	entries, err := s.Entries(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	for _, h := range []string{"c", "a", "b"} {
		_, err := s.PutIfAbsent(ctx, h, "sat")
		require.NoError(t, err)
	}

	entries, err = s.Entries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Hash)
	assert.Equal(t, "b", entries[1].Hash)
}
