package harness

import "github.com/roach88/smtcache/internal/engine"

// Transcript is everything observable about one finished session.
type Transcript struct {
	Session string       `json:"session"`
	ID      string       `json:"id"`
	Reason  string       `json:"reason"`
	Error   string       `json:"error,omitempty"`
	Stats   engine.Stats `json:"stats"`

	// Output is what the client read, one reply per line.
	Output []string `json:"output"`

	// Solver is what the solver read, one command per line.
	Solver []string `json:"solver"`

	// ScopeDepth is the number of scopes still open at the end.
	ScopeDepth int `json:"scope_depth"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Sessions holds one transcript per session, in order.
	Sessions []Transcript `json:"sessions"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Sessions: []Transcript{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Transcript returns the transcript of the named session.
func (r *Result) Transcript(name string) (Transcript, bool) {
	for _, t := range r.Sessions {
		if t.Session == name {
			return t, true
		}
	}
	return Transcript{}, false
}
