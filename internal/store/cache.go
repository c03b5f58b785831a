package store

import (
	"context"
	"strings"
	"time"
)

// Cache is a durable fingerprint -> result map with insert-if-absent
// semantics.
//
// Contract:
//   - Get returns (value, true, nil) on hit and ("", false, nil) on miss.
//     IO errors return ("", false, err).
//   - PutIfAbsent never overwrites: if key exists, the stored value wins and
//     inserted is false.
//   - Implementations must be usable from one goroutine at a time; the
//     transaction loop is the only caller during a session.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	PutIfAbsent(ctx context.Context, key, value string) (inserted bool, err error)
	Close() error
}

// SessionRecord is the audit row written when a session ends.
type SessionRecord struct {
	ID        string
	Solver    string
	StartedAt time.Time
	EndedAt   time.Time
	Lines     int64
	Lookups   int64
	Hits      int64
	Misses    int64
	Forwarded int64
	EndReason string
}

// SessionRecorder is implemented by backends that keep session audit rows.
type SessionRecorder interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
}

// Options configures OpenCache.
type Options struct {
	// MemoEntries is the capacity of the in-process front cache.
	// Zero disables it.
	MemoEntries int64
}

// OpenCache opens the backend named by dsn: a redis:// or rediss:// URL
// selects Redis, anything else is a SQLite file path.
func OpenCache(ctx context.Context, dsn string, opts Options) (Cache, error) {
	var (
		c   Cache
		err error
	)
	if IsRedisURL(dsn) {
		c, err = OpenRedis(ctx, dsn)
	} else {
		c, err = Open(dsn)
	}
	if err != nil {
		return nil, err
	}

	if opts.MemoEntries > 0 {
		m, err := NewMemo(c, opts.MemoEntries)
		if err != nil {
			c.Close()
			return nil, err
		}
		return m, nil
	}
	return c, nil
}

// IsRedisURL reports whether dsn names a Redis server.
func IsRedisURL(dsn string) bool {
	return strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://")
}

// Unwrap returns the backend beneath any front cache layers.
func Unwrap(c Cache) Cache {
	for {
		m, ok := c.(*Memo)
		if !ok {
			return c
		}
		c = m.next
	}
}
