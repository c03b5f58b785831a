package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "smtcache", cmd.Use)
	assert.Contains(t, cmd.Long, "fingerprints the session history")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "stats", "fingerprint", "lookup", "profiles"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"profile", "solver", "print-success", "scope-levels", "metrics", "metrics-file"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	res := runCLI(t, "", nil, "--format", "invalid", "profiles")

	assert.Equal(t, ExitCommandError, res.Code)
	assert.Contains(t, res.Stderr, "invalid format")
}

func TestUnknownFlagIsCommandError(t *testing.T) {
	res := runCLI(t, "", nil, "stats", "--no-such-flag")

	assert.Equal(t, ExitCommandError, res.Code)
	assert.Contains(t, res.Stderr, "unknown flag")
}

func TestErrorsGoToStderrAsJSON(t *testing.T) {
	res := runCLI(t, "", nil, "--format", "json", "run")

	assert.Equal(t, ExitCommandError, res.Code)
	assert.Empty(t, res.Stdout)
	assert.Contains(t, res.Stderr, `"status":"error"`)
	assert.Contains(t, res.Stderr, `"code":"`+ErrCodeConfig+`"`)
}
