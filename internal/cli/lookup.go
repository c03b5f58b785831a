package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/smtcache/internal/config"
	"github.com/roach88/smtcache/internal/store"
)

// LookupResult is the lookup command output.
type LookupResult struct {
	Fingerprint string `json:"fingerprint"`
	Found       bool   `json:"found"`
	Result      string `json:"result,omitempty"`
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <fingerprint>",
		Short: "Print the stored result for a fingerprint",
		Long: `Print the result stored under a session fingerprint, as printed by
"smtcache fingerprint". Exits 1 when nothing is stored.

Example:
  smtcache lookup sVj470Z443VLoMdSbDftL+kl9LYy1ZFz571NfUOJCyACZr9uDxMR2uiw27oodujV`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runLookup(opts *RootOptions, fingerprint string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var cache store.Cache
	if store.IsRedisURL(cfg.Database) {
		cache, err = store.OpenRedis(ctx, cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
	} else {
		cache, err = openExistingStore(cfg.Database)
		if err != nil {
			return err
		}
	}
	defer cache.Close()

	value, ok, err := cache.Get(ctx, fingerprint)
	if err != nil {
		return WrapExitError(ExitFailure, "lookup failed", err)
	}

	result := LookupResult{Fingerprint: fingerprint, Found: ok, Result: value}
	f := opts.formatter(cmd)
	if !ok {
		if opts.Format == "json" {
			_ = f.Success(result)
		}
		return NewExitError(ExitFailure, "no result stored for "+fingerprint)
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	return f.Success(value)
}
