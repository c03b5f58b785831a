package store

import (
	"context"
	"fmt"
)

// RecordSession inserts a session audit row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a session id is recorded once.
func (s *Store) RecordSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, solver, started_at, ended_at, lines, lookups, hits, misses, forwarded, end_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Solver,
		rec.StartedAt.UnixMilli(),
		rec.EndedAt.UnixMilli(),
		rec.Lines,
		rec.Lookups,
		rec.Hits,
		rec.Misses,
		rec.Forwarded,
		rec.EndReason,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}
