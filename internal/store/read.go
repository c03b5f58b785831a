package store

import (
	"context"
	"fmt"
	"time"
)

// Stats summarises a SQLite cache file.
type Stats struct {
	Entries     int64 `json:"entries"`
	ResultBytes int64 `json:"result_bytes"`
	Sessions    int64 `json:"sessions"`
	Lookups     int64 `json:"lookups"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Forwarded   int64 `json:"forwarded"`
}

// HitRate returns hits/lookups over all recorded sessions, or 0.
func (st Stats) HitRate() float64 {
	if st.Lookups == 0 {
		return 0
	}
	return float64(st.Hits) / float64(st.Lookups)
}

// Entry is one stored result.
type Entry struct {
	Hash   string `json:"hash"`
	Result string `json:"result"`
}

// Stats returns entry and session totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(result)), 0) FROM data
	`).Scan(&st.Entries, &st.ResultBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("query entries: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(lookups), 0),
		       COALESCE(SUM(hits), 0),
		       COALESCE(SUM(misses), 0),
		       COALESCE(SUM(forwarded), 0)
		FROM sessions
	`).Scan(&st.Sessions, &st.Lookups, &st.Hits, &st.Misses, &st.Forwarded)
	if err != nil {
		return Stats{}, fmt.Errorf("query sessions: %w", err)
	}

	return st, nil
}

// Entries returns up to limit stored results ordered by hash.
// Returns empty slice (not nil) if the cache is empty.
func (s *Store) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, result FROM data
		ORDER BY hash COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Hash, &e.Result); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// ReadSession returns the audit row for id.
func (s *Store) ReadSession(ctx context.Context, id string) (SessionRecord, error) {
	var (
		rec            SessionRecord
		started, ended int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, solver, started_at, ended_at, lines, lookups, hits, misses, forwarded, end_reason
		FROM sessions WHERE id = ?
	`, id).Scan(
		&rec.ID, &rec.Solver, &started, &ended,
		&rec.Lines, &rec.Lookups, &rec.Hits, &rec.Misses, &rec.Forwarded, &rec.EndReason,
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("read session %s: %w", id, err)
	}
	rec.StartedAt = time.UnixMilli(started)
	rec.EndedAt = time.UnixMilli(ended)
	return rec, nil
}
