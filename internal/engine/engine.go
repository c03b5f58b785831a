package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/smtcache/internal/session"
	"github.com/roach88/smtcache/internal/solver"
	"github.com/roach88/smtcache/internal/store"
)

// Channel is the engine's view of the solver: one line out, at most one
// line back, strictly in order. *solver.Relay implements it.
//
// Both methods return solver.ErrClosed once the solver side is gone.
type Channel interface {
	Send(ctx context.Context, line string, wantReply bool) error
	Receive(ctx context.Context) (string, error)
}

var _ Channel = (*solver.Relay)(nil)

// EndReason says why a session stopped.
type EndReason string

const (
	// EndOfInput means the client closed its input or sent an empty line.
	EndOfInput EndReason = "eof"

	// ExitRequested means (exit) was forwarded to the solver.
	ExitRequested EndReason = "exit"

	// SolverClosed means the solver's output ended.
	SolverClosed EndReason = "solver_closed"

	// Cancelled means the session context was cancelled.
	Cancelled EndReason = "cancelled"

	// Failed means a *SessionError ended the session.
	Failed EndReason = "failed"
)

// Stats counts what happened during one session.
type Stats struct {
	Lines     int64 `json:"lines"`
	Comments  int64 `json:"comments"`
	Lookups   int64 `json:"lookups"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Forwarded int64 `json:"forwarded"`
	Replies   int64 `json:"replies"`
}

// Result describes how a session ended.
type Result struct {
	SessionID string    `json:"session_id"`
	Reason    EndReason `json:"reason"`
	Stats     Stats     `json:"stats"`

	// Fingerprint and ScopeDepth are the session state when it ended.
	Fingerprint string `json:"fingerprint"`
	ScopeDepth  int    `json:"scope_depth"`
}

// Config is the per-session protocol configuration.
type Config struct {
	// Rules decide which lines the solver answers.
	Rules session.Rules

	// Solver labels log lines and the session audit row.
	Solver string
}

// Engine runs the transaction loop for one client/solver pair.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine, once per channel
//   - The engine owns the cache handle for the duration of Run
type Engine struct {
	cache   store.Cache
	ch      Channel
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	ids     SessionIDGenerator
	now     func() time.Time
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSessionIDGenerator overrides the UUIDv7 session id generator.
func WithSessionIDGenerator(g SessionIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithNow overrides the wall clock used for audit timestamps and
// round-trip timing.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine that answers from cache and relays through ch.
func New(cache store.Cache, ch Channel, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cache:  cache,
		ch:     ch,
		cfg:    cfg,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// sessionRun is the state owned by one call to Run.
type sessionRun struct {
	*Engine
	id     string
	state  *session.State
	stats  Stats
	lineNo int
	out    *bufio.Writer
	log    *slog.Logger
}

// Run processes client lines from in until the session ends, writing
// replies to out.
//
// Ordinary endings return a Result and a nil error, except cancellation,
// which returns ctx.Err(). Fatal conditions return a *SessionError. The
// Result is always populated.
func (e *Engine) Run(ctx context.Context, in io.Reader, out io.Writer) (Result, error) {
	id := e.ids.Generate()
	s := &sessionRun{
		Engine: e,
		id:     id,
		state:  session.New(),
		out:    bufio.NewWriter(out),
		log:    e.logger.With("session", id),
	}

	started := e.now()
	s.log.Info("session starting",
		"solver", e.cfg.Solver,
		"print_success", e.cfg.Rules.PrintSuccess,
	)

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	reason, err := s.loop(ctx, readLines(readCtx, in))

	res := Result{
		SessionID:   id,
		Reason:      reason,
		Stats:       s.stats,
		Fingerprint: s.state.Fingerprint(),
		ScopeDepth:  s.state.Depth(),
	}
	s.record(ctx, res, started, err)

	if err != nil && reason == Failed {
		s.log.Error("session failed", "error", err, "line_no", s.lineNo)
	} else {
		s.log.Info("session ended",
			"reason", reason,
			"lines", s.stats.Lines,
			"hits", s.stats.Hits,
			"misses", s.stats.Misses,
			"scope_depth", res.ScopeDepth,
		)
	}
	return res, err
}

// loop is the transaction loop proper. It returns when a line ends the
// session, the input ends or ctx is cancelled.
func (s *sessionRun) loop(ctx context.Context, lines <-chan inputLine) (EndReason, error) {
	for {
		var (
			in inputLine
			ok bool
		)
		select {
		case <-ctx.Done():
			return Cancelled, ctx.Err()
		case in, ok = <-lines:
		}
		if !ok {
			return EndOfInput, nil
		}
		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				return EndOfInput, nil
			}
			return Failed, newClientError(s.lineNo+1, "read client input", in.err)
		}

		s.lineNo++
		reason, done, err := s.step(ctx, in.line)
		if err != nil || done {
			return reason, err
		}
	}
}

// step handles one client line. done reports that the session is over.
func (s *sessionRun) step(ctx context.Context, line string) (reason EndReason, done bool, err error) {
	kind := session.Classify(line)
	if kind == session.KindEnd {
		return EndOfInput, true, nil
	}
	s.stats.Lines++

	rules := s.cfg.Rules
	switch kind {
	case session.KindComment:
		s.stats.Comments++
		return "", false, nil

	case session.KindExit:
		if _, err := s.exchange(ctx, line, kind, false); err != nil {
			return s.channelEnd(ctx, err)
		}
		return ExitRequested, true, nil

	case session.KindPush:
		s.state.PushScopes(rules.ScopeLevels(line))
		s.log.Debug("scope opened", "line_no", s.lineNo, "scope_depth", s.state.Depth())
		return s.passThrough(ctx, line, kind)

	case session.KindPop:
		if err := s.state.PopScopes(rules.ScopeLevels(line)); err != nil {
			return Failed, true, newScopeUnderflowError(s.lineNo, err)
		}
		s.log.Debug("scope closed", "line_no", s.lineNo, "scope_depth", s.state.Depth())
		return s.passThrough(ctx, line, kind)

	case session.KindCacheable:
		s.state.Feed(line)
		return s.cacheable(ctx, line)

	default:
		s.state.Feed(line)
		return s.passThrough(ctx, line, kind)
	}
}

// cacheable answers a result-producing command from the cache or, on a
// miss, from the solver, storing the solver's reply.
func (s *sessionRun) cacheable(ctx context.Context, line string) (EndReason, bool, error) {
	fp := s.state.Fingerprint()

	s.stats.Lookups++
	value, ok, err := s.cache.Get(ctx, fp)
	if err != nil {
		return s.storeEnd(ctx, "lookup", err)
	}
	s.metrics.recordLookup(ctx, ok)

	if ok {
		s.stats.Hits++
		s.log.Debug("cache lookup",
			"line_no", s.lineNo,
			"fingerprint", fp,
			"scope_depth", s.state.Depth(),
			"outcome", "hit",
		)
		return s.emit(value)
	}

	s.stats.Misses++
	s.log.Debug("cache lookup",
		"line_no", s.lineNo,
		"fingerprint", fp,
		"scope_depth", s.state.Depth(),
		"outcome", "miss",
	)

	reply, err := s.exchange(ctx, line, session.KindCacheable, true)
	if err != nil {
		return s.channelEnd(ctx, err)
	}

	inserted, err := s.cache.PutIfAbsent(ctx, fp, reply)
	if err != nil {
		return s.storeEnd(ctx, "insert", err)
	}
	if !inserted {
		s.log.Debug("result already stored by another writer", "fingerprint", fp)
	}

	return s.emit(reply)
}

// passThrough forwards a line and relays its reply if one is expected.
func (s *sessionRun) passThrough(ctx context.Context, line string, kind session.Kind) (EndReason, bool, error) {
	want := s.cfg.Rules.ExpectsReply(line, kind)

	reply, err := s.exchange(ctx, line, kind, want)
	if err != nil {
		return s.channelEnd(ctx, err)
	}
	if !want {
		return "", false, nil
	}
	return s.emit(reply)
}

// exchange sends line and, if wantReply, waits for its reply.
func (s *sessionRun) exchange(ctx context.Context, line string, kind session.Kind, wantReply bool) (string, error) {
	start := s.now()

	if err := s.ch.Send(ctx, line, wantReply); err != nil {
		return "", err
	}
	s.stats.Forwarded++
	if !wantReply {
		return "", nil
	}

	reply, err := s.ch.Receive(ctx)
	if err != nil {
		return "", err
	}
	s.metrics.recordRoundtrip(ctx, kind.String(), s.now().Sub(start))
	return reply, nil
}

// emit writes one reply line to the client and flushes it.
func (s *sessionRun) emit(reply string) (EndReason, bool, error) {
	if _, err := s.out.WriteString(reply + "\n"); err != nil {
		return Failed, true, newClientError(s.lineNo, "write reply", err)
	}
	if err := s.out.Flush(); err != nil {
		return Failed, true, newClientError(s.lineNo, "flush reply", err)
	}
	s.stats.Replies++
	return "", false, nil
}

// channelEnd maps a solver channel error to a session ending.
func (s *sessionRun) channelEnd(ctx context.Context, err error) (EndReason, bool, error) {
	switch {
	case ctx.Err() != nil:
		return Cancelled, true, ctx.Err()
	case errors.Is(err, solver.ErrClosed):
		s.log.Info("solver closed the channel", "line_no", s.lineNo)
		return SolverClosed, true, nil
	default:
		return Failed, true, newSolverError(s.lineNo, err)
	}
}

// storeEnd maps a cache error to a session ending.
func (s *sessionRun) storeEnd(ctx context.Context, op string, err error) (EndReason, bool, error) {
	if ctx.Err() != nil {
		return Cancelled, true, ctx.Err()
	}
	return Failed, true, newStoreError(s.lineNo, op, err)
}

// record writes the session audit row when the backend keeps one.
// Failures are logged and never change the session outcome.
func (s *sessionRun) record(ctx context.Context, res Result, started time.Time, runErr error) {
	rec, ok := s.cache.(store.SessionRecorder)
	if !ok {
		return
	}

	reason := string(res.Reason)
	var se *SessionError
	if errors.As(runErr, &se) {
		reason = string(se.Code)
	}

	err := rec.RecordSession(context.WithoutCancel(ctx), store.SessionRecord{
		ID:        res.SessionID,
		Solver:    s.cfg.Solver,
		StartedAt: started,
		EndedAt:   s.now(),
		Lines:     res.Stats.Lines,
		Lookups:   res.Stats.Lookups,
		Hits:      res.Stats.Hits,
		Misses:    res.Stats.Misses,
		Forwarded: res.Stats.Forwarded,
		EndReason: reason,
	})
	if err != nil {
		s.log.Warn("failed to record session", "error", err)
	}
}
