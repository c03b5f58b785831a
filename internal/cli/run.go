package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/smtcache/internal/config"
	"github.com/roach88/smtcache/internal/engine"
	"github.com/roach88/smtcache/internal/solver"
	"github.com/roach88/smtcache/internal/store"
	"github.com/roach88/smtcache/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Profile      string
	Solver       string
	PrintSuccess bool
	ScopeLevels  string
	Metrics      string
	MetricsFile  string

	// SessionIDs allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionIDs engine.SessionIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [flags] [-- solver-args...]",
		Short: "Run one cached solver session on stdin/stdout",
		Long: `Run one SMT-LIB2 session: read commands from stdin, answer cacheable
queries from the store, relay everything else to the solver and write
replies to stdout.

Arguments after -- are passed to the solver and replace the profile's
arguments. Logs go to stderr.

Example:
  smtcache run --profile z3
  SAT_CACHE_SOLVER=/usr/local/bin/z3 smtcache run -- -smt2 -in
  smtcache run --db redis://cache:6379/0 --profile yices`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "solver profile (z3, yices, yices-smt2, cvc5 or from config)")
	cmd.Flags().StringVar(&opts.Solver, "solver", "", "solver binary (overrides the profile)")
	cmd.Flags().BoolVar(&opts.PrintSuccess, "print-success", false, "solver acknowledges every command with one line")
	cmd.Flags().StringVar(&opts.ScopeLevels, "scope-levels", "", "push/pop argument handling (single|literal)")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "metrics exporter (none|stdout|prometheus)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "prometheus textfile written when the session ends")

	return cmd
}

// overrides returns the flag values the user actually set.
func (o *RunOptions) overrides(cmd *cobra.Command, args []string) config.Overrides {
	var f config.Overrides
	flags := cmd.Flags()
	if flags.Changed("profile") {
		f.Profile = &o.Profile
	}
	if flags.Changed("solver") {
		f.Solver = &o.Solver
	}
	if flags.Changed("print-success") {
		f.PrintSuccess = &o.PrintSuccess
	}
	if flags.Changed("scope-levels") {
		f.ScopeLevels = &o.ScopeLevels
	}
	if flags.Changed("metrics") {
		f.Metrics = &o.Metrics
	}
	if flags.Changed("metrics-file") {
		f.MetricsFile = &o.MetricsFile
	}
	if len(args) > 0 {
		f.Args = args
	}
	return f
}

func runSession(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(opts.overrides(cmd, args))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := opts.newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if cfg.Source != "" {
		logger.Debug("config loaded", "path", cfg.Source)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// Open cache (create if not exists)
	logger.Debug("opening cache", "database", cfg.Database, "memo_entries", cfg.MemoEntries)
	cache, err := store.OpenCache(ctx, cfg.Database, store.Options{MemoEntries: cfg.MemoEntries})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			logger.Error("error closing cache", "error", closeErr)
		}
	}()

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.SessionIDs != nil {
		engineOpts = append(engineOpts, engine.WithSessionIDGenerator(opts.SessionIDs))
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:       cfg.Metrics,
		MetricsFile:    cfg.MetricsFile,
		Writer:         cmd.ErrOrStderr(),
		ServiceVersion: Version,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialise metrics", err)
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("error flushing metrics", "error", shutdownErr)
		}
	}()
	if tp.Enabled() {
		m, err := engine.NewMetrics(tp.MeterProvider())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create metrics", err)
		}
		engineOpts = append(engineOpts, engine.WithMetrics(m))
	}

	proc, err := solver.Start(ctx, solver.Spec{
		Path:   cfg.Solver,
		Args:   cfg.Args,
		Stderr: cmd.ErrOrStderr(),
	}, solver.WithLogger(logger))
	if err != nil {
		if errors.Is(err, solver.ErrSolverNotFound) || errors.Is(err, solver.ErrNoSolver) {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		return WrapExitError(ExitFailure, "failed to start solver", err)
	}
	// The child never outlives the session.
	defer func() {
		if killErr := proc.Kill(); killErr != nil {
			logger.Debug("solver exit", "error", killErr)
		}
	}()

	eng := engine.New(cache, proc.Channel(), engine.Config{
		Rules:  cfg.Rules(),
		Solver: cfg.SolverLabel(),
	}, engineOpts...)

	res, err := eng.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "session failed", err)
	}

	logger.Debug("session summary",
		slog.String("session", res.SessionID),
		slog.String("reason", string(res.Reason)),
		slog.Int64("hits", res.Stats.Hits),
		slog.Int64("misses", res.Stats.Misses),
		slog.Int64("forwarded", res.Stats.Forwarded),
	)
	return nil
}
