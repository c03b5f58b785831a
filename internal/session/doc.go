// Package session fingerprints an interactive SMT-LIB2 solver session.
//
// A State folds every non-scoping line the solver has seen into a SHA3-384
// hash chain and keeps one snapshot per open (push) scope, so that a (pop)
// rewinds the fingerprint to exactly what it was before the matching push.
// Two sessions that fed the same lines under the same scoping reach the same
// Fingerprint, which is what makes a cached solver answer reusable.
//
// Lines are opaque: nothing here parses SMT-LIB2. Classify only looks at a
// small set of prefixes to decide how the transaction loop treats a line.
//
// A State is not safe for concurrent use. It is owned by exactly one
// transaction loop.
package session
