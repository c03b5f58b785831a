// Package config resolves smtcache settings from built-in solver profiles,
// an optional YAML or CUE config file, the environment and CLI flags.
//
// Precedence, lowest first: built-in defaults and profiles, config file,
// environment, flags. A selected profile supplies solver, args,
// print_success and reply_prefixes; any of those set explicitly by a
// source wins over the profile.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/smtcache/internal/session"
	"github.com/roach88/smtcache/internal/telemetry"
)

// Defaults.
const (
	DefaultDatabase = "satcache.db"
	DefaultLogLevel = "info"
)

// Environment variables, named as in the original sat-cache tool.
const (
	EnvSolver       = "SAT_CACHE_SOLVER"
	EnvPrintSuccess = "SAT_CACHE_PRINT_SUCCESS"
	EnvDatabase     = "SAT_CACHE_DB"
)

var (
	// ErrInvalidConfig is matched by every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoSolver means no profile, file, variable or flag named a solver.
	ErrNoSolver = fmt.Errorf("%w: no solver configured (use --profile, --solver or %s)", ErrInvalidConfig, EnvSolver)

	// ErrUnknownProfile means the selected profile does not exist.
	ErrUnknownProfile = fmt.Errorf("%w: unknown profile", ErrInvalidConfig)
)

// Config is the resolved configuration for one invocation.
type Config struct {
	Database      string             `json:"database"`
	Profile       string             `json:"profile,omitempty"`
	Solver        string             `json:"solver,omitempty"`
	Args          []string           `json:"args,omitempty"`
	PrintSuccess  bool               `json:"print_success"`
	ReplyPrefixes []string           `json:"reply_prefixes,omitempty"`
	ScopeLevels   session.ScopeMode  `json:"scope_levels"`
	MemoEntries   int64              `json:"memo_entries"`
	Metrics       string             `json:"metrics"`
	MetricsFile   string             `json:"metrics_file,omitempty"`
	LogLevel      string             `json:"log_level"`
	Profiles      map[string]Profile `json:"-"`

	// Source is the config file that was read, if any.
	Source string `json:"source,omitempty"`
}

// Overrides holds the values one source sets. Nil means unset.
//
// Config files decode straight into Overrides after schema validation, so
// the json tags are the file's field names.
type Overrides struct {
	Database      *string                `json:"database,omitempty"`
	Profile       *string                `json:"profile,omitempty"`
	Solver        *string                `json:"solver,omitempty"`
	Args          []string               `json:"args,omitempty"`
	PrintSuccess  *bool                  `json:"print_success,omitempty"`
	ReplyPrefixes []string               `json:"reply_prefixes,omitempty"`
	ScopeLevels   *string                `json:"scope_levels,omitempty"`
	MemoEntries   *int64                 `json:"memo_entries,omitempty"`
	Metrics       *string                `json:"metrics,omitempty"`
	MetricsFile   *string                `json:"metrics_file,omitempty"`
	LogLevel      *string                `json:"log_level,omitempty"`
	Profiles      map[string]profileFile `json:"profiles,omitempty"`
}

// merge copies every value set in next over o.
func (o *Overrides) merge(next Overrides) {
	setString := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	setString(&o.Database, next.Database)
	setString(&o.Profile, next.Profile)
	setString(&o.Solver, next.Solver)
	setString(&o.ScopeLevels, next.ScopeLevels)
	setString(&o.Metrics, next.Metrics)
	setString(&o.MetricsFile, next.MetricsFile)
	setString(&o.LogLevel, next.LogLevel)

	if next.Args != nil {
		o.Args = next.Args
	}
	if next.PrintSuccess != nil {
		o.PrintSuccess = next.PrintSuccess
	}
	if next.ReplyPrefixes != nil {
		o.ReplyPrefixes = next.ReplyPrefixes
	}
	if next.MemoEntries != nil {
		o.MemoEntries = next.MemoEntries
	}
	for name, p := range next.Profiles {
		if o.Profiles == nil {
			o.Profiles = make(map[string]profileFile)
		}
		o.Profiles[name] = p
	}
}

// EnvOverrides reads the SAT_CACHE_* variables through lookup.
// SAT_CACHE_PRINT_SUCCESS turns print-success on by being present.
func EnvOverrides(lookup func(string) (string, bool)) Overrides {
	var o Overrides
	if v, ok := lookup(EnvSolver); ok && v != "" {
		o.Solver = &v
	}
	if _, ok := lookup(EnvPrintSuccess); ok {
		on := true
		o.PrintSuccess = &on
	}
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		o.Database = &v
	}
	return o
}

// Resolve merges sources, lowest precedence first, over the defaults.
func Resolve(sources ...Overrides) (*Config, error) {
	var m Overrides
	for _, s := range sources {
		m.merge(s)
	}

	c := &Config{
		Database:    DefaultDatabase,
		ScopeLevels: session.ScopeModeSingle,
		Metrics:     telemetry.ExporterNone,
		LogLevel:    DefaultLogLevel,
		Profiles:    BuiltinProfiles(),
	}
	for name, pf := range m.Profiles {
		c.Profiles[name] = pf.profile(name)
	}

	if m.Profile != nil {
		p, ok := c.Profiles[*m.Profile]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownProfile, *m.Profile)
		}
		c.Profile = p.Name
		c.Solver = p.Solver
		c.Args = slices.Clone(p.Args)
		c.PrintSuccess = p.PrintSuccess
		c.ReplyPrefixes = slices.Clone(p.ReplyPrefixes)
		if p.ScopeLevels != "" {
			c.ScopeLevels = p.ScopeLevels
		}
	}

	if m.Database != nil {
		c.Database = *m.Database
	}
	if m.Solver != nil {
		c.Solver = *m.Solver
	}
	if m.Args != nil {
		c.Args = slices.Clone(m.Args)
	}
	if m.PrintSuccess != nil {
		c.PrintSuccess = *m.PrintSuccess
	}
	if m.ReplyPrefixes != nil {
		c.ReplyPrefixes = slices.Clone(m.ReplyPrefixes)
	}
	if m.ScopeLevels != nil {
		c.ScopeLevels = session.ScopeMode(*m.ScopeLevels)
	}
	if m.MemoEntries != nil {
		c.MemoEntries = *m.MemoEntries
	}
	if m.Metrics != nil {
		c.Metrics = *m.Metrics
	}
	if m.MetricsFile != nil {
		c.MetricsFile = *m.MetricsFile
	}
	if m.LogLevel != nil {
		c.LogLevel = *m.LogLevel
	}

	return c, nil
}

// Validate checks everything a session needs before it starts. Whether
// the solver binary exists is checked when it is started.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("%w: database must not be empty", ErrInvalidConfig)
	}
	if c.Solver == "" {
		return ErrNoSolver
	}
	if err := session.ValidateScopeMode(string(c.ScopeLevels)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, p := range c.ReplyPrefixes {
		if !strings.HasPrefix(p, "(") {
			return fmt.Errorf("%w: reply prefix %q must start with '('", ErrInvalidConfig, p)
		}
	}
	if c.MemoEntries < 0 {
		return fmt.Errorf("%w: memo_entries must not be negative", ErrInvalidConfig)
	}
	if err := telemetry.ValidateExporter(c.Metrics); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Metrics == telemetry.ExporterPrometheus && c.MetricsFile == "" {
		return fmt.Errorf("%w: metrics: prometheus requires metrics_file", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Rules returns the protocol rules for the configured solver.
func (c *Config) Rules() session.Rules {
	return session.Rules{
		PrintSuccess:  c.PrintSuccess,
		ReplyPrefixes: c.ReplyPrefixes,
		ScopeMode:     c.ScopeLevels,
	}
}

// SolverLabel names the solver in logs and audit rows: the profile name
// when one is selected, otherwise the solver path.
func (c *Config) SolverLabel() string {
	if c.Profile != "" {
		return c.Profile
	}
	return c.Solver
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return l, nil
}
