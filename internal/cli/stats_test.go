package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/smtcache/internal/store"
)

// seedStore creates a SQLite cache holding results and one session row.
func seedStore(t *testing.T, results map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for k, v := range results {
		_, err := st.PutIfAbsent(ctx, k, v)
		require.NoError(t, err)
	}
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, st.RecordSession(ctx, store.SessionRecord{
		ID:        "019bc2d4-0000-7000-8000-000000000001",
		Solver:    "z3",
		StartedAt: started,
		EndedAt:   started.Add(time.Second),
		Lines:     12,
		Lookups:   4,
		Hits:      3,
		Misses:    1,
		Forwarded: 9,
		EndReason: "eof",
	}))
	return path
}

func TestStats_Text(t *testing.T) {
	db := seedStore(t, map[string]string{"k1": "sat", "k2": "unsat"})

	res := runCLI(t, "", nil, "stats", "--db", db)
	require.Equal(t, ExitSuccess, res.Code, res.Stderr)

	assert.Contains(t, res.Stdout, "Database: "+db)
	assert.Contains(t, res.Stdout, "Results:   2 (8 bytes)")
	assert.Contains(t, res.Stdout, "Sessions:  1")
	assert.Contains(t, res.Stdout, "Hits:      3")
	assert.Contains(t, res.Stdout, "Hit rate:  75.0%")
	assert.NotContains(t, res.Stdout, "Entries:")
}

func TestStats_JSONWithEntries(t *testing.T) {
	db := seedStore(t, map[string]string{"k1": "sat"})

	res := runCLI(t, "", nil, "--format", "json", "stats", "--db", db, "--entries", "5")
	require.Equal(t, ExitSuccess, res.Code, res.Stderr)

	var resp struct {
		Status string      `json:"status"`
		Data   StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.Data.Stats.Entries)
	assert.InDelta(t, 0.75, resp.Data.HitRate, 1e-9)
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, "k1", resp.Data.Entries[0].Hash)
	assert.Equal(t, "sat", resp.Data.Entries[0].Result)
}

func TestStats_MissingDatabase(t *testing.T) {
	res := runCLI(t, "", nil, "stats", "--db", filepath.Join(t.TempDir(), "absent.db"))

	assert.Equal(t, ExitCommandError, res.Code)
	assert.Contains(t, res.Stderr, "database not found")
	assert.Contains(t, res.Stderr, ErrCodeNotFound)
}

func TestStats_RedisHasNoStatistics(t *testing.T) {
	res := runCLI(t, "", nil, "stats", "--db", "redis://localhost:6379/0")

	assert.Equal(t, ExitCommandError, res.Code)
	assert.Contains(t, res.Stderr, "only in SQLite")
}

func TestStats_AfterRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "c.db")
	solverPath := fakeSolver(t, "sat")

	for i := 0; i < 2; i++ {
		res := runCLI(t, bitvecQuery, nil, "run", "--db", db, "--solver", solverPath)
		require.Equal(t, ExitSuccess, res.Code, res.Stderr)
	}

	res := runCLI(t, "", nil, "--format", "json", "stats", "--db", db)
	require.Equal(t, ExitSuccess, res.Code, res.Stderr)

	var resp struct {
		Data StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &resp))
	assert.Equal(t, int64(2), resp.Data.Stats.Entries)
	assert.Equal(t, int64(2), resp.Data.Stats.Sessions)
	assert.Equal(t, int64(2), resp.Data.Stats.Hits)
	assert.Equal(t, int64(2), resp.Data.Stats.Misses)
}
