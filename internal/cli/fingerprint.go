package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/smtcache/internal/config"
	"github.com/roach88/smtcache/internal/session"
	"github.com/roach88/smtcache/internal/solver"
)

// FingerprintOptions holds flags for the fingerprint command.
type FingerprintOptions struct {
	*RootOptions
	ScopeLevels string
	All         bool // print every line, not only cacheable ones
}

// FingerprintLine is the fingerprint the cache would use for one line.
type FingerprintLine struct {
	LineNo      int    `json:"line_no"`
	Line        string `json:"line"`
	Kind        string `json:"kind"`
	Fingerprint string `json:"fingerprint"`
	ScopeDepth  int    `json:"scope_depth"`
}

// NewFingerprintCommand creates the fingerprint command.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FingerprintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fingerprint [file]",
		Short: "Print the cache key at every cacheable line of a script",
		Long: `Replay an SMT-LIB2 script through the session fingerprint without a
solver or store, printing the key each cacheable command would be looked
up under. Reads stdin when no file is given.

Example:
  smtcache fingerprint query.smt2
  smtcache fingerprint --all --format json < query.smt2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ScopeLevels, "scope-levels", "", "push/pop argument handling (single|literal)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "print the fingerprint after every line")

	return cmd
}

func runFingerprint(opts *FingerprintOptions, args []string, cmd *cobra.Command) error {
	var flags config.Overrides
	if cmd.Flags().Changed("scope-levels") {
		flags.ScopeLevels = &opts.ScopeLevels
	}
	cfg, err := opts.loadConfig(flags)
	if err != nil {
		return err
	}
	if err := session.ValidateScopeMode(string(cfg.ScopeLevels)); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open script", err)
		}
		defer f.Close()
		in = f
	}

	lines, err := FingerprintScript(in, cfg.Rules(), opts.All)
	if err != nil {
		if errors.Is(err, session.ErrScopeUnderflow) {
			return WrapExitError(ExitFailure, "malformed script", err)
		}
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(lines)
	}
	w := cmd.OutOrStdout()
	for _, l := range lines {
		fmt.Fprintf(w, "%d\t%s\t%s\n", l.LineNo, l.Fingerprint, l.Line)
	}
	return nil
}

// FingerprintScript replays r through a session state exactly as the
// transaction loop would and reports the fingerprint at each cacheable
// line, or at every hashed line when all is set. Reading stops at an
// empty line or (exit).
func FingerprintScript(r io.Reader, rules session.Rules, all bool) ([]FingerprintLine, error) {
	st := session.New()
	br := bufio.NewReader(r)
	out := []FingerprintLine{}

	for lineNo := 1; ; lineNo++ {
		line, err := solver.ReadLine(br)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		kind := session.Classify(line)
		switch kind {
		case session.KindEnd, session.KindExit:
			return out, nil
		case session.KindComment:
			continue
		case session.KindPush:
			st.PushScopes(rules.ScopeLevels(line))
		case session.KindPop:
			if err := st.PopScopes(rules.ScopeLevels(line)); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		default:
			st.Feed(line)
		}

		if kind == session.KindCacheable || all {
			out = append(out, FingerprintLine{
				LineNo:      lineNo,
				Line:        line,
				Kind:        kind.String(),
				Fingerprint: st.Fingerprint(),
				ScopeDepth:  st.Depth(),
			})
		}
	}
}
