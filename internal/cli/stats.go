package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/smtcache/internal/config"
	"github.com/roach88/smtcache/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Entries int // list this many stored results
}

// StatsResult is the stats command output.
type StatsResult struct {
	Database string        `json:"database"`
	Stats    store.Stats   `json:"stats"`
	HitRate  float64       `json:"hit_rate"`
	Entries  []store.Entry `json:"entries,omitempty"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Long: `Show the number of stored results and the hit/miss totals recorded
for past sessions. Only SQLite databases keep statistics.

Example:
  smtcache stats --db satcache.db
  smtcache stats --entries 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Entries, "entries", 0, "also list up to N stored results")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	st, err := openExistingStore(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read statistics", err)
	}

	result := StatsResult{
		Database: cfg.Database,
		Stats:    stats,
		HitRate:  stats.HitRate(),
	}
	if opts.Entries > 0 {
		result.Entries, err = st.Entries(ctx, opts.Entries)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list entries", err)
		}
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	outputStatsText(cmd, result)
	return nil
}

// openExistingStore opens a SQLite cache that must already exist.
func openExistingStore(path string) (*store.Store, error) {
	if store.IsRedisURL(path) {
		return nil, NewExitError(ExitCommandError, "statistics are kept only in SQLite databases")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// outputStatsText outputs the statistics as text.
func outputStatsText(cmd *cobra.Command, result StatsResult) {
	w := cmd.OutOrStdout()
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "Database: %s\n", result.Database)
	fmt.Fprintln(w)
	p.Fprintf(w, "  Results:   %d (%d bytes)\n", result.Stats.Entries, result.Stats.ResultBytes)
	p.Fprintf(w, "  Sessions:  %d\n", result.Stats.Sessions)
	p.Fprintf(w, "  Lookups:   %d\n", result.Stats.Lookups)
	p.Fprintf(w, "  Hits:      %d\n", result.Stats.Hits)
	p.Fprintf(w, "  Misses:    %d\n", result.Stats.Misses)
	p.Fprintf(w, "  Forwarded: %d\n", result.Stats.Forwarded)
	p.Fprintf(w, "  Hit rate:  %.1f%%\n", result.HitRate*100)

	if len(result.Entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Entries:")
	for _, e := range result.Entries {
		fmt.Fprintf(w, "  %s  %s\n", e.Hash, e.Result)
	}
}
