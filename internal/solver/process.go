package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Spec describes how to launch a solver.
type Spec struct {
	// Path is the solver binary, either absolute or looked up in $PATH.
	Path string

	// Args are passed verbatim to the solver.
	Args []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is appended to the current environment.
	Env []string

	// Stderr receives the solver's stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// Process is a running solver and the relay attached to its pipes.
type Process struct {
	spec   Spec
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	relay  *Relay
	logger *slog.Logger

	waitOnce sync.Once
	waitErr  error
}

// Start resolves and launches the solver described by spec.
//
// The process is bound to ctx: cancelling ctx kills it. Callers must call
// Kill when the session ends so the solver is never left orphaned.
//
// Errors:
//
//	ErrNoSolver - spec.Path is empty
//	ErrSolverNotFound - spec.Path cannot be resolved
func Start(ctx context.Context, spec Spec, opts ...RelayOption) (*Process, error) {
	if spec.Path == "" {
		return nil, ErrNoSolver
	}

	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSolverNotFound, spec.Path)
	}

	p := &Process{spec: spec, logger: optionLogger(opts)}

	p.cmd = exec.CommandContext(ctx, path, spec.Args...)
	p.cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		p.cmd.Env = append(os.Environ(), spec.Env...)
	}
	p.cmd.Stderr = spec.Stderr
	if p.cmd.Stderr == nil {
		p.cmd.Stderr = os.Stderr
	}

	p.stdin, err = p.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start solver: %w", err)
	}

	p.logger.Debug("solver started",
		slog.String("path", path),
		slog.Any("args", spec.Args),
		slog.Int("pid", p.cmd.Process.Pid),
	)

	p.relay = NewRelay(p.stdin, p.stdout, opts...)
	return p, nil
}

// Channel returns the relay attached to the solver's pipes.
func (p *Process) Channel() *Relay {
	return p.relay
}

// PID returns the solver's process id.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Kill forcibly terminates the solver, stops the relay and reaps the
// process. Safe to call after the solver already exited.
func (p *Process) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	p.relay.Close()
	_ = p.stdin.Close()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill solver: %w", err)
	}

	// A killed solver exits with a signal status; that is expected here.
	_ = p.Wait()
	<-p.relay.Done()

	p.logger.Debug("solver stopped", slog.Int("pid", p.cmd.Process.Pid))
	return nil
}

// Wait waits for the solver to exit and returns its exit status.
// Safe to call multiple times.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// optionLogger returns the logger a relay built with opts would use.
func optionLogger(opts []RelayOption) *slog.Logger {
	probe := &Relay{logger: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}
	return probe.logger
}
