package session

import (
	"errors"
	"fmt"
)

// ErrScopeUnderflow is returned by PopScope when no scope is open.
//
// It means the input's push/pop nesting is malformed and the fingerprint can
// no longer be trusted. Callers must end the session.
var ErrScopeUnderflow = errors.New("(pop) command without a corresponding (push)")

// State is the evolving fingerprint of one solver session.
//
// stack[0] is the top-level scope and is never removed.
type State struct {
	current Digest
	stack   []Digest
}

// New returns the state of a session that has seen no lines.
func New() *State {
	return &State{
		current: emptyDigest,
		stack:   []Digest{emptyDigest},
	}
}

// Feed folds a non-scoping line into the current accumulator.
//
// Cacheable commands are fed too, before their fingerprint is taken.
func (s *State) Feed(line string) {
	s.current = s.current.next(line)
}

// PushScope snapshots the current accumulator.
func (s *State) PushScope() {
	s.stack = append(s.stack, s.current)
}

// PopScope rewinds the accumulator to the snapshot taken by the matching
// PushScope and discards that snapshot.
//
// Returns ErrScopeUnderflow, leaving the state untouched, when only the
// top-level scope remains.
func (s *State) PopScope() error {
	return s.PopScopes(1)
}

// PushScopes opens n scopes at once. n <= 0 is a no-op.
func (s *State) PushScopes(n int) {
	for i := 0; i < n; i++ {
		s.PushScope()
	}
}

// PopScopes closes n scopes at once. n <= 0 is a no-op.
// Either all n scopes are closed or none are.
func (s *State) PopScopes(n int) error {
	if n <= 0 {
		return nil
	}
	if n > s.Depth() {
		return fmt.Errorf("%w: pop %d with %d open", ErrScopeUnderflow, n, s.Depth())
	}

	top := len(s.stack) - n
	s.current = s.stack[top]
	s.stack = s.stack[:top]
	return nil
}

// Depth returns the number of open scopes above the top level.
func (s *State) Depth() int {
	return len(s.stack) - 1
}

// Fingerprint encodes the current accumulator. It is the cache key for a
// cacheable command issued at this point of the session.
func (s *State) Fingerprint() string {
	return s.current.String()
}

// Digest returns the raw current accumulator.
func (s *State) Digest() Digest {
	return s.current
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	stack := make([]Digest, len(s.stack))
	copy(stack, s.stack)
	return &State{current: s.current, stack: stack}
}
