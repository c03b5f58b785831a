package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliResult is the outcome of one CLI invocation.
type cliResult struct {
	Code   int
	Stdout string
	Stderr string
}

// runCLI executes the CLI in-process with an empty environment and no
// default config file.
func runCLI(t *testing.T, stdin string, env map[string]string, args ...string) cliResult {
	t.Helper()
	opts := &RootOptions{
		NoDefaultConfig: true,
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}
	var stdout, stderr bytes.Buffer
	code := execute(opts, args, strings.NewReader(stdin), &stdout, &stderr)
	return cliResult{Code: code, Stdout: stdout.String(), Stderr: stderr.String()}
}

// fakeSolver writes an executable shell script that behaves like a
// solver without print-success: it answers check-sat with answer and
// get-value with a fixed model, and stops on (exit).
func fakeSolver(t *testing.T, answer string) string {
	t.Helper()
	script := `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    "(exit)") exit 0 ;;
    "(check-sat)") echo "` + answer + `" ;;
    "(get-value"*) echo "((x #x00000000006c7b00))" ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "fake-solver")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
