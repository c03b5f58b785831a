package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/smtcache/internal/engine"
	"github.com/roach88/smtcache/internal/solver"
	"github.com/roach88/smtcache/internal/store"
	"github.com/roach88/smtcache/internal/testutil"
)

// SessionTimeout bounds every scripted session.
const SessionTimeout = 10 * time.Second

// Epoch is the wall clock every scripted session sees.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness runs the sessions of one scenario against one store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Expect clause and assertion failures are reported in the Result; the
// error return is reserved for harness failures.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	for _, step := range scenario.Sessions {
		tr, err := h.runSession(ctx, scenario, step)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", step.Name, err)
		}
		result.Sessions = append(result.Sessions, tr)

		for _, msg := range checkExpect(tr, step.Expect) {
			result.AddError(fmt.Sprintf("session %s: %s", step.Name, msg))
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Rules: scenario.Solver.Rules()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// runSession runs one client session against a fresh scripted solver.
func (h *Harness) runSession(ctx context.Context, scenario *Scenario, step SessionStep) (Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, SessionTimeout)
	defer cancel()

	rules := scenario.Solver.Rules()
	answers := scenario.Solver.Answers
	if step.Answers != nil {
		answers = step.Answers
	}

	var opts []testutil.ScriptOption
	if step.CrashOn != "" {
		opts = append(opts, testutil.CrashOn(step.CrashOn))
	}
	fake := testutil.NewScriptedSolver(testutil.SMTResponder(rules, answers), opts...)
	relay := solver.NewRelay(fake.Stdin(), fake.Stdout(), solver.WithLogger(h.logger))

	eng := engine.New(h.store, relay, engine.Config{Rules: rules, Solver: "scripted"},
		engine.WithLogger(h.logger),
		engine.WithSessionIDGenerator(testutil.NewFixedIDGenerator(scenario.Name+"/"+step.Name)),
		engine.WithNow(func() time.Time { return Epoch }),
	)

	var out bytes.Buffer
	res, runErr := eng.Run(ctx, strings.NewReader(step.Input), &out)

	relay.Close()
	<-relay.Done()
	fake.Close()

	if runErr != nil && !engine.IsFatal(runErr) {
		return Transcript{}, runErr
	}

	tr := Transcript{
		Session:    step.Name,
		ID:         res.SessionID,
		Reason:     string(res.Reason),
		Stats:      res.Stats,
		Output:     splitLines(out.String()),
		Solver:     fake.Received(),
		ScopeDepth: res.ScopeDepth,
	}
	var se *engine.SessionError
	if errors.As(runErr, &se) {
		tr.Error = string(se.Code)
	}
	return tr, nil
}

// checkExpect compares a transcript with its expect clause.
func checkExpect(tr Transcript, e *SessionExpect) []string {
	if e == nil {
		return nil
	}

	var errs []string
	if e.Reason != "" && e.Reason != tr.Reason {
		errs = append(errs, fmt.Sprintf("reason = %q, expected %q", tr.Reason, e.Reason))
	}
	if e.Error != tr.Error {
		errs = append(errs, fmt.Sprintf("error = %q, expected %q", tr.Error, e.Error))
	}
	if e.Output != nil && !equalLines(tr.Output, e.Output) {
		errs = append(errs, fmt.Sprintf("output = %q, expected %q", tr.Output, e.Output))
	}
	if e.Hits != nil && *e.Hits != tr.Stats.Hits {
		errs = append(errs, fmt.Sprintf("hits = %d, expected %d", tr.Stats.Hits, *e.Hits))
	}
	if e.Misses != nil && *e.Misses != tr.Stats.Misses {
		errs = append(errs, fmt.Sprintf("misses = %d, expected %d", tr.Stats.Misses, *e.Misses))
	}
	return errs
}

// splitLines splits newline-terminated output. Empty output is an empty
// slice so transcripts serialise as [].
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
