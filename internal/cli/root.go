package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/smtcache/internal/config"
	"github.com/roach88/smtcache/internal/engine"
	"github.com/roach88/smtcache/internal/solver"
)

// Version is set by the linker for release builds.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string

	// LookupEnv reads the environment (for testing). Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// NoDefaultConfig skips $XDG_CONFIG_HOME/smtcache/config.yaml (for testing).
	NoDefaultConfig bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the smtcache CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smtcache",
		Short: "smtcache - caching middleware for SMT-LIB2 solvers",
		Long: `smtcache sits between an SMT-LIB2 client and a solver process.

It fingerprints the session history line by line (respecting push/pop
scopes) and answers check-sat, eval and get-value from a persistent store
when the same history was seen before.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging on stderr)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (.yaml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "cache database: SQLite path or redis:// URL")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewFingerprintCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewProfilesCommand(opts))

	return cmd
}

// Execute runs the CLI on the process arguments and streams and returns
// the exit code.
func Execute() int {
	return execute(&RootOptions{}, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(opts *RootOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	// Errors cobra raises itself (unknown flags, wrong arg counts) are
	// command errors.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitCommandError, "invalid command", err)
	}

	// Errors always go to stderr: stdout may be a solver protocol stream.
	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if !isValidFormat(f.Format) {
		f.Format = "text"
	}
	_ = f.Error(errorCode(exitErr), exitErr.Error(), nil)
	return exitErr.Code
}

// errorCode picks the JSON error code for err.
func errorCode(err error) string {
	var se *engine.SessionError
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, solver.ErrSolverNotFound),
		errors.Is(err, solver.ErrNoSolver):
		return ErrCodeConfig
	case GetExitCode(err) == ExitFailure:
		return ErrCodeSession
	default:
		return ErrCodeGeneric
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves configuration with the global flags applied on top
// of flags.
func (o *RootOptions) loadConfig(flags config.Overrides) (*config.Config, error) {
	if o.Database != "" {
		db := o.Database
		flags.Database = &db
	}
	cfg, err := config.Load(config.LoadOptions{
		Path:          o.ConfigPath,
		NoDefaultPath: o.NoDefaultConfig,
		LookupEnv:     o.LookupEnv,
		Flags:         flags,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. stdout carries only protocol
// replies or command output, never logs.
func (o *RootOptions) newLogger(w io.Writer, level string) *slog.Logger {
	logLevel, err := config.ParseLogLevel(level)
	if err != nil {
		logLevel = slog.LevelInfo
	}
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
