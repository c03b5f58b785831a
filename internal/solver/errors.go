package solver

import "errors"

var (
	// ErrClosed means the relay stopped: the solver exited, its output
	// ended, a pipe write failed, or Close was called.
	ErrClosed = errors.New("solver channel closed")

	// ErrSolverNotFound means the solver binary could not be resolved.
	ErrSolverNotFound = errors.New("solver binary not found")

	// ErrNoSolver means no solver path was configured.
	ErrNoSolver = errors.New("no solver configured")
)
