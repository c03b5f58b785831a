package solver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// DefaultExitLine is the command after which the relay stops.
const DefaultExitLine = "(exit)"

// Request asks the relay to forward one line to the solver.
type Request struct {
	Line string

	// WantReply makes the relay read exactly one line back.
	WantReply bool
}

// Reply is one line read from the solver, without its terminator.
type Reply struct {
	Line string
}

// Relay moves lines between the transaction loop and a solver.
//
// Thread-safety: Send and Receive are meant to be called from the single
// goroutine that owns the session. Close and Err are safe from any goroutine.
type Relay struct {
	w        io.Writer
	r        *bufio.Reader
	exitLine string
	logger   *slog.Logger

	requests chan Request
	replies  chan Reply
	stop     chan struct{}
	done     chan struct{}

	stopOnce sync.Once
	mu       sync.Mutex
	err      error
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithExitLine overrides DefaultExitLine.
func WithExitLine(line string) RelayOption {
	return func(r *Relay) {
		r.exitLine = line
	}
}

// WithLogger sets the logger used for relay diagnostics.
func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = l
	}
}

// NewRelay starts a relay writing requests to w and reading replies from r.
func NewRelay(w io.Writer, r io.Reader, opts ...RelayOption) *Relay {
	rl := &Relay{
		w:        w,
		r:        bufio.NewReader(r),
		exitLine: DefaultExitLine,
		logger:   slog.Default(),
		requests: make(chan Request),
		replies:  make(chan Reply),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	go rl.run()
	return rl
}

// Send hands a line to the relay. It blocks until the relay has taken the
// request, the relay has stopped (ErrClosed), or ctx is done.
func (r *Relay) Send(ctx context.Context, line string, wantReply bool) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	select {
	case r.requests <- Request{Line: line, WantReply: wantReply}:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next reply line.
//
// Returns ErrClosed once the relay has stopped and no reply is pending.
func (r *Relay) Receive(ctx context.Context) (string, error) {
	select {
	case rep, ok := <-r.replies:
		if !ok {
			return "", ErrClosed
		}
		return rep.Line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the relay. A relay blocked reading the solver's output only
// notices once that stream ends, which killing the process guarantees.
// Safe to call multiple times.
func (r *Relay) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Done is closed when the relay goroutine has exited.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Err returns why the relay stopped, or nil while it is running or after a
// clean stop (exit line or Close).
func (r *Relay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Relay) fail(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.logger.Debug("solver relay stopped", slog.String("error", err.Error()))
}

// run is the relay goroutine: one request, then at most one reply.
func (r *Relay) run() {
	defer close(r.done)
	defer close(r.replies)

	for {
		var req Request
		select {
		case <-r.stop:
			return
		case req = <-r.requests:
		}

		if _, err := io.WriteString(r.w, req.Line+"\n"); err != nil {
			r.fail(fmt.Errorf("write to solver: %w", err))
			return
		}

		if req.Line == r.exitLine {
			r.logger.Debug("exit forwarded, relay stopping")
			return
		}

		if !req.WantReply {
			continue
		}

		line, err := ReadLine(r.r)
		if err != nil {
			r.fail(fmt.Errorf("read from solver: %w", err))
			return
		}

		select {
		case r.replies <- Reply{Line: line}:
		case <-r.stop:
			return
		}
	}
}

// ReadLine reads one line and strips its "\n" or "\r\n" terminator.
// A final line without a terminator is still returned.
func ReadLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return trimEOL(line), nil
		}
		return "", err
	}
	return trimEOL(line), nil
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
