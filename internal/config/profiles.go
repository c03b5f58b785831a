package config

import (
	"sort"

	"github.com/roach88/smtcache/internal/session"
)

// Profile is a named solver invocation.
type Profile struct {
	Name          string            `json:"name" yaml:"name"`
	Solver        string            `json:"solver" yaml:"solver"`
	Args          []string          `json:"args,omitempty" yaml:"args,omitempty"`
	PrintSuccess  bool              `json:"print_success" yaml:"print_success"`
	ReplyPrefixes []string          `json:"reply_prefixes,omitempty" yaml:"reply_prefixes,omitempty"`
	ScopeLevels   session.ScopeMode `json:"scope_levels,omitempty" yaml:"scope_levels,omitempty"`
	Builtin       bool              `json:"builtin" yaml:"-"`
}

// profileFile is a profile as written in a config file.
type profileFile struct {
	Solver        string   `json:"solver"`
	Args          []string `json:"args,omitempty"`
	PrintSuccess  *bool    `json:"print_success,omitempty"`
	ReplyPrefixes []string `json:"reply_prefixes,omitempty"`
	ScopeLevels   string   `json:"scope_levels,omitempty"`
}

func (p profileFile) profile(name string) Profile {
	out := Profile{
		Name:          name,
		Solver:        p.Solver,
		Args:          p.Args,
		ReplyPrefixes: p.ReplyPrefixes,
		ScopeLevels:   session.ScopeMode(p.ScopeLevels),
	}
	if p.PrintSuccess != nil {
		out.PrintSuccess = *p.PrintSuccess
	}
	return out
}

// BuiltinProfiles returns the solver invocations known out of the box.
// Each call returns fresh values.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		"z3": {
			Name:    "z3",
			Solver:  "z3",
			Args:    []string{"-smt2", "-in"},
			Builtin: true,
		},
		"yices": {
			Name:         "yices",
			Solver:       "yices",
			Args:         []string{"--mode=push-pop", "--print-success"},
			PrintSuccess: true,
			Builtin:      true,
		},
		"yices-smt2": {
			Name:    "yices-smt2",
			Solver:  "yices-smt2",
			Args:    []string{"--incremental"},
			Builtin: true,
		},
		"cvc5": {
			Name:    "cvc5",
			Solver:  "cvc5",
			Args:    []string{"--lang=smt2", "--incremental"},
			Builtin: true,
		},
	}
}

// SortedProfiles returns profiles ordered by name.
func SortedProfiles(profiles map[string]Profile) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
