package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Memo is an in-process read-through layer in front of another Cache.
//
// Only values read back from the backend are memoised. A result this
// process just wrote may lose the insert-if-absent race to another writer,
// so PutIfAbsent goes straight to the backend and leaves the memo alone.
// Stored results are immutable, so a memoised value never goes stale.
type Memo struct {
	next Cache
	c    *ristretto.Cache
}

var _ Cache = (*Memo)(nil)

// NewMemo wraps next with a front cache holding about maxEntries results.
func NewMemo(next Cache, maxEntries int64) (*Memo, error) {
	if next == nil {
		return nil, errors.New("memo: nil backend")
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("memo: invalid capacity %d", maxEntries)
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("memo: %w", err)
	}
	return &Memo{next: next, c: c}, nil
}

// Get answers from memory when it can and falls back to the backend.
func (m *Memo) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := m.c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, true, nil
		}
		// drop unexpected entry shape
		m.c.Del(key)
	}

	v, ok, err := m.next.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	m.c.Set(key, v, 1)
	return v, true, nil
}

// PutIfAbsent writes through to the backend.
func (m *Memo) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return m.next.PutIfAbsent(ctx, key, value)
}

// RecordSession forwards to the backend when it keeps audit rows.
func (m *Memo) RecordSession(ctx context.Context, rec SessionRecord) error {
	if r, ok := m.next.(SessionRecorder); ok {
		return r.RecordSession(ctx, rec)
	}
	return nil
}

// Wait blocks until buffered memo writes are applied. Used by tests.
func (m *Memo) Wait() {
	m.c.Wait()
}

// Close releases the memo and the backend.
func (m *Memo) Close() error {
	m.c.Close()
	return m.next.Close()
}
