package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/smtcache/internal/session"
	"github.com/roach88/smtcache/internal/store"
)

// AssertionContext gives assertions access to the scenario's store.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// Rules decide how a history is folded into a fingerprint.
	Rules session.Rules
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Solver   []string // Lines the session forwarded, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Solver) > 0 {
		fmt.Fprintf(&buf, "\nForwarded to solver:\n")
		for i, line := range e.Solver {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertSolverReceived:
		return assertSolverReceived(result, a)
	case AssertSolverCount:
		return assertSolverCount(result, a)
	case AssertStored, AssertNotStored:
		return assertStored(actx, a)
	case AssertEntries:
		return assertEntries(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertSolverReceived checks the exact sequence of forwarded lines.
func assertSolverReceived(result *Result, a Assertion) error {
	tr, ok := result.Transcript(a.Session)
	if !ok {
		return fmt.Errorf("no session named %q", a.Session)
	}
	if equalLines(tr.Solver, a.Lines) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSolverReceived,
		Expected: fmt.Sprintf("%q", a.Lines),
		Actual:   fmt.Sprintf("%q", tr.Solver),
		Solver:   tr.Solver,
	}
}

// assertSolverCount checks how many forwarded lines start with prefix.
func assertSolverCount(result *Result, a Assertion) error {
	tr, ok := result.Transcript(a.Session)
	if !ok {
		return fmt.Errorf("no session named %q", a.Session)
	}

	count := 0
	for _, line := range tr.Solver {
		if strings.HasPrefix(line, a.Prefix) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertSolverCount,
		Expected: fmt.Sprintf("%d lines starting with %q", a.Count, a.Prefix),
		Actual:   fmt.Sprintf("%d", count),
		Solver:   tr.Solver,
	}
}

// assertStored looks up the fingerprint of a.History.
func assertStored(actx *AssertionContext, a Assertion) error {
	key, err := FingerprintOf(a.History, actx.Rules)
	if err != nil {
		return err
	}

	value, ok, err := actx.Store.Get(actx.Ctx, key)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", key, err)
	}

	if a.Type == AssertNotStored {
		if !ok {
			return nil
		}
		return &AssertionError{
			Type:     AssertNotStored,
			Expected: fmt.Sprintf("nothing stored under %s", key),
			Actual:   fmt.Sprintf("%q", value),
		}
	}

	if ok && value == a.Result {
		return nil
	}
	actual := "nothing stored"
	if ok {
		actual = fmt.Sprintf("%q", value)
	}
	return &AssertionError{
		Type:     AssertStored,
		Expected: fmt.Sprintf("%q under %s", a.Result, key),
		Actual:   actual,
	}
}

// assertEntries checks the number of stored results.
func assertEntries(actx *AssertionContext, a Assertion) error {
	stats, err := actx.Store.Stats(actx.Ctx)
	if err != nil {
		return err
	}
	if stats.Entries == int64(a.Count) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEntries,
		Expected: fmt.Sprintf("%d stored results", a.Count),
		Actual:   fmt.Sprintf("%d", stats.Entries),
	}
}

// FingerprintOf returns the key the last line of history is looked up
// under when a session sends exactly history.
func FingerprintOf(history []string, rules session.Rules) (string, error) {
	st := session.New()
	for i, line := range history {
		switch session.Classify(line) {
		case session.KindComment, session.KindEnd, session.KindExit:
		case session.KindPush:
			st.PushScopes(rules.ScopeLevels(line))
		case session.KindPop:
			if err := st.PopScopes(rules.ScopeLevels(line)); err != nil {
				return "", fmt.Errorf("history[%d]: %w", i, err)
			}
		default:
			st.Feed(line)
		}
	}
	return st.Fingerprint(), nil
}
