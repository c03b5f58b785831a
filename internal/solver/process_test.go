package solver

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_NoSolver(t *testing.T) {
	_, err := Start(context.Background(), Spec{})
	assert.ErrorIs(t, err, ErrNoSolver)
}

func TestStart_SolverNotFound(t *testing.T) {
	_, err := Start(context.Background(), Spec{Path: "smtcache-no-such-solver-binary"})
	assert.ErrorIs(t, err, ErrSolverNotFound)
}

// cat echoes every line, which is enough to exercise the real pipes.
func TestProcess_EchoRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := Start(ctx, Spec{Path: "cat"})
	require.NoError(t, err)
	defer p.Kill()

	assert.NotZero(t, p.PID())

	ch := p.Channel()
	require.NoError(t, ch.Send(ctx, "(check-sat)", true))
	reply, err := ch.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "(check-sat)", reply)

	require.NoError(t, p.Kill())
	require.NoError(t, p.Kill(), "second kill is a no-op")

	_, err = ch.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
