// Package store persists solver results keyed by session fingerprint.
//
// Every backend implements Cache, a durable map from fingerprint to result
// with insert-if-absent semantics: the first result committed for a
// fingerprint is authoritative and is never overwritten or deleted.
//
// Backends:
//   - Store: SQLite file (github.com/mattn/go-sqlite3), the default. The
//     table layout, data(hash, result), matches satcache.db files written
//     by earlier versions of the tool.
//   - Redis: a shared cache for several machines (github.com/redis/go-redis/v9),
//     selected with a redis:// or rediss:// database URL.
//   - Memo: an in-process read-through layer (github.com/dgraph-io/ristretto)
//     in front of either backend.
//
// # Database Configuration
//
//   - WAL mode: readers in other processes do not block the writer
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// The design assumes one writer per database file at a time; concurrent
// writers in several processes are tolerated by SQLite locking but not
// coordinated beyond that.
package store
