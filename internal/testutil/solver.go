package testutil

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/roach88/smtcache/internal/session"
)

// Responder decides what a fake solver answers to one line.
// ok=false means the solver writes nothing for that line.
type Responder func(line string) (reply string, ok bool)

// SMTResponder answers like a real solver would under rules: one line for
// every command that expects a reply, nothing otherwise.
//
// answers maps exact lines to replies. Lines that are not in answers get
// "sat" when cacheable and "success" otherwise.
func SMTResponder(rules session.Rules, answers map[string]string) Responder {
	return func(line string) (string, bool) {
		kind := session.Classify(line)
		if !rules.ExpectsReply(line, kind) {
			return "", false
		}
		if reply, ok := answers[line]; ok {
			return reply, true
		}
		if kind == session.KindCacheable {
			return "sat", true
		}
		return "success", true
	}
}

// ScriptedSolver is an in-memory solver process: it reads lines from its
// stdin pipe and writes scripted replies to its stdout pipe.
//
// Thread-safety: Received and Count are safe for concurrent use.
type ScriptedSolver struct {
	respond Responder
	crashOn string

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	mu       sync.Mutex
	received []string
	done     chan struct{}
}

// ScriptOption configures a ScriptedSolver.
type ScriptOption func(*ScriptedSolver)

// CrashOn makes the solver close its output, as if it died, when it
// receives line.
func CrashOn(line string) ScriptOption {
	return func(s *ScriptedSolver) {
		s.crashOn = line
	}
}

// NewScriptedSolver starts a fake solver goroutine.
func NewScriptedSolver(respond Responder, opts ...ScriptOption) *ScriptedSolver {
	s := &ScriptedSolver{
		respond: respond,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stdinR, s.stdinW = io.Pipe()
	s.stdoutR, s.stdoutW = io.Pipe()

	go s.run()
	return s
}

// Stdin is where the relay writes commands.
func (s *ScriptedSolver) Stdin() io.Writer {
	return s.stdinW
}

// Stdout is where the relay reads replies.
func (s *ScriptedSolver) Stdout() io.Reader {
	return s.stdoutR
}

// Received returns every line the solver has read, in order.
func (s *ScriptedSolver) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// Count returns how many received lines start with prefix.
func (s *ScriptedSolver) Count(prefix string) int {
	n := 0
	for _, l := range s.Received() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// Close kills the fake solver and waits for it to stop.
func (s *ScriptedSolver) Close() {
	_ = s.stdinR.Close()
	_ = s.stdoutW.Close()
	<-s.done
}

// Done is closed when the solver goroutine has stopped.
func (s *ScriptedSolver) Done() <-chan struct{} {
	return s.done
}

func (s *ScriptedSolver) run() {
	defer close(s.done)
	defer s.stdoutW.Close()

	br := bufio.NewReader(s.stdinR)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(line, "\n")

		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()

		if line == session.ExitLine || (s.crashOn != "" && line == s.crashOn) {
			_ = s.stdinR.Close()
			return
		}

		reply, ok := s.respond(line)
		if !ok {
			continue
		}
		if _, err := io.WriteString(s.stdoutW, reply+"\n"); err != nil {
			return
		}
	}
}
