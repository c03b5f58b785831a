package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/smtcache/internal/config"
)

// NewProfilesCommand creates the profiles command.
func NewProfilesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List solver profiles",
		Long: `List the built-in solver profiles and any defined in the config file.

Example:
  smtcache profiles
  smtcache profiles --config ~/.config/smtcache/config.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(rootOpts, cmd)
		},
	}

	return cmd
}

func runProfiles(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	profiles := config.SortedProfiles(cfg.Profiles)
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(profiles)
	}

	w := cmd.OutOrStdout()
	for _, p := range profiles {
		origin := "config"
		if p.Builtin {
			origin = "built-in"
		}
		cmdline := strings.TrimSpace(p.Solver + " " + strings.Join(p.Args, " "))
		fmt.Fprintf(w, "%-12s %-9s %s\n", p.Name, origin, cmdline)
		if p.PrintSuccess {
			fmt.Fprintf(w, "%-12s %-9s print-success\n", "", "")
		}
	}
	return nil
}
