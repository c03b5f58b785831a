package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/smtcache/internal/engine"
	"github.com/roach88/smtcache/internal/session"
)

// Scenario is a sequence of sessions that share one cache.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Solver configures the scripted solver used by every session.
	Solver SolverSpec `yaml:"solver"`

	// Sessions run in order against the same store.
	Sessions []SessionStep `yaml:"sessions"`

	// Assertions are checked after every session has run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SolverSpec describes the scripted solver and the protocol rules.
type SolverSpec struct {
	// PrintSuccess makes the solver acknowledge every command.
	PrintSuccess bool `yaml:"print_success"`

	// ScopeLevels is "single" (default) or "literal".
	ScopeLevels string `yaml:"scope_levels,omitempty"`

	// ReplyPrefixes overrides the commands that always get a reply.
	ReplyPrefixes []string `yaml:"reply_prefixes,omitempty"`

	// Answers maps exact lines to replies. Unlisted cacheable lines get
	// "sat", other replying lines get "success".
	Answers map[string]string `yaml:"answers,omitempty"`
}

// Rules returns the protocol rules for this solver.
func (s SolverSpec) Rules() session.Rules {
	return session.Rules{
		PrintSuccess:  s.PrintSuccess,
		ReplyPrefixes: s.ReplyPrefixes,
		ScopeMode:     session.ScopeMode(s.ScopeLevels),
	}
}

// SessionStep is one client session.
type SessionStep struct {
	// Name identifies the session in assertions and the transcript.
	Name string `yaml:"name"`

	// Input is the client's stdin, one command per line.
	Input string `yaml:"input"`

	// Answers, when set, replaces the solver answers for this session.
	Answers map[string]string `yaml:"answers,omitempty"`

	// CrashOn makes the solver die when it receives this line.
	CrashOn string `yaml:"crash_on,omitempty"`

	// Expect is checked when the session ends. Nil means no checks.
	Expect *SessionExpect `yaml:"expect,omitempty"`
}

// SessionExpect specifies how a session should end.
// Nil pointer fields are not checked.
type SessionExpect struct {
	// Reason is the expected end reason (eof, exit, solver_closed).
	Reason string `yaml:"reason,omitempty"`

	// Error is the expected SessionError code, e.g. SCOPE_UNDERFLOW.
	Error string `yaml:"error,omitempty"`

	// Output is the exact list of lines written to the client.
	Output []string `yaml:"output,omitempty"`

	Hits   *int64 `yaml:"hits,omitempty"`
	Misses *int64 `yaml:"misses,omitempty"`
}

// Assertion validates what the sessions did to the solver and the store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Session names the session (solver_received, solver_count).
	Session string `yaml:"session,omitempty"`

	// Lines are the expected forwarded lines (solver_received).
	Lines []string `yaml:"lines,omitempty"`

	// Prefix selects forwarded lines (solver_count).
	Prefix string `yaml:"prefix,omitempty"`

	// Count is the expected number (solver_count, entries).
	Count int `yaml:"count,omitempty"`

	// History is a session history ending in a cacheable command; its
	// fingerprint is the key checked by stored and not_stored.
	History []string `yaml:"history,omitempty"`

	// Result is the expected stored value (stored).
	Result string `yaml:"result,omitempty"`
}

// Assertion type constants.
const (
	AssertSolverReceived = "solver_received"
	AssertSolverCount    = "solver_count"
	AssertStored         = "stored"
	AssertNotStored      = "not_stored"
	AssertEntries        = "entries"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := session.ValidateScopeMode(s.Solver.ScopeLevels); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if len(s.Sessions) == 0 {
		return fmt.Errorf("at least one session is required")
	}

	names := make(map[string]bool, len(s.Sessions))
	for i, step := range s.Sessions {
		if step.Name == "" {
			return fmt.Errorf("sessions[%d]: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("sessions[%d]: duplicate session name %q", i, step.Name)
		}
		names[step.Name] = true

		if err := validateExpect(i, step.Expect); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}

	return nil
}

func validateExpect(index int, e *SessionExpect) error {
	if e == nil {
		return nil
	}
	switch engine.EndReason(e.Reason) {
	case "", engine.EndOfInput, engine.ExitRequested, engine.SolverClosed, engine.Failed:
	default:
		return fmt.Errorf("sessions[%d]: unknown end reason %q", index, e.Reason)
	}
	return nil
}

// validateAssertion checks that an assertion has the fields its type needs.
func validateAssertion(index int, a Assertion, sessions map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSolverReceived, AssertSolverCount:
		if !sessions[a.Session] {
			return fmt.Errorf("assertions[%d]: unknown session %q for %s", index, a.Session, a.Type)
		}
		if a.Type == AssertSolverCount && a.Prefix == "" {
			return fmt.Errorf("assertions[%d]: prefix is required for solver_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertStored, AssertNotStored:
		if len(a.History) == 0 {
			return fmt.Errorf("assertions[%d]: history is required for %s", index, a.Type)
		}
		if a.Type == AssertStored && a.Result == "" {
			return fmt.Errorf("assertions[%d]: result is required for stored", index)
		}
	case AssertEntries:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
