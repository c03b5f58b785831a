package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSolverCount,
		Expected: `1 lines starting with "(check"`,
		Actual:   "0",
		Solver:   []string{"(declare-const a Bool)"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: solver_count")
	assert.Contains(t, msg, "Expected: 1 lines")
	assert.Contains(t, msg, "Actual: 0")
	assert.Contains(t, msg, "[1] (declare-const a Bool)")
}

func TestAssertSolverReceived(t *testing.T) {
	result := NewResult()
	result.Sessions = append(result.Sessions, Transcript{
		Session: "a",
		Solver:  []string{"(assert p)", "(check-sat)"},
	})

	assert.NoError(t, assertSolverReceived(result, Assertion{Session: "a", Lines: []string{"(assert p)", "(check-sat)"}}))
	assert.Error(t, assertSolverReceived(result, Assertion{Session: "a", Lines: []string{"(check-sat)"}}))
	assert.Error(t, assertSolverReceived(result, Assertion{Session: "b"}))
}

func TestAssertSolverCount(t *testing.T) {
	result := NewResult()
	result.Sessions = append(result.Sessions, Transcript{
		Session: "a",
		Solver:  []string{"(check-sat)", "(assert p)", "(check-sat-assuming (p))"},
	})

	assert.NoError(t, assertSolverCount(result, Assertion{Session: "a", Prefix: "(check", Count: 2}))
	assert.NoError(t, assertSolverCount(result, Assertion{Session: "a", Prefix: "(get-value", Count: 0}))
	assert.Error(t, assertSolverCount(result, Assertion{Session: "a", Prefix: "(assert", Count: 0}))
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
