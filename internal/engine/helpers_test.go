package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/smtcache/internal/session"
	"github.com/roach88/smtcache/internal/solver"
	"github.com/roach88/smtcache/internal/store"
	"github.com/roach88/smtcache/internal/testutil"
)

// fixedNow is the wall clock used by every test engine.
var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// sessionResult is everything observable about one finished session.
type sessionResult struct {
	Result
	Err    error
	Output string
	Solver []string
}

// outputLines returns the client output split into lines.
func (r sessionResult) outputLines() []string {
	if r.Output == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(r.Output, "\n"), "\n")
}

// runSession runs one session of input against a scripted solver and
// returns once the solver has recorded every line it was sent.
func runSession(
	t *testing.T,
	ctx context.Context,
	cache store.Cache,
	rules session.Rules,
	respond testutil.Responder,
	input string,
	opts ...Option,
) sessionResult {
	t.Helper()
	return runSessionWith(t, ctx, cache, rules, testutil.NewScriptedSolver(respond), input, opts...)
}

func runSessionWith(
	t *testing.T,
	ctx context.Context,
	cache store.Cache,
	rules session.Rules,
	fake *testutil.ScriptedSolver,
	input string,
	opts ...Option,
) sessionResult {
	t.Helper()

	relay := solver.NewRelay(fake.Stdin(), fake.Stdout())
	opts = append([]Option{
		WithSessionIDGenerator(testutil.NewFixedIDGenerator(t.Name())),
		WithNow(func() time.Time { return fixedNow }),
	}, opts...)
	e := New(cache, relay, Config{Rules: rules, Solver: "scripted"}, opts...)

	var out bytes.Buffer
	res, err := e.Run(ctx, strings.NewReader(input), &out)

	relay.Close()
	<-relay.Done()
	fake.Close()

	return sessionResult{Result: res, Err: err, Output: out.String(), Solver: fake.Received()}
}

// countingResponder answers every line that expects a reply under rules
// with "r1", "r2", ... in order.
func countingResponder(rules session.Rules) testutil.Responder {
	n := 0
	return func(line string) (string, bool) {
		if !rules.ExpectsReply(line, session.Classify(line)) {
			return "", false
		}
		n++
		return fmt.Sprintf("r%d", n), true
	}
}

// script joins lines into client input.
func script(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// memCache is an in-memory store.Cache with injectable failures.
type memCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	putErr error
	closed bool
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) PutIfAbsent(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return false, c.putErr
	}
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *memCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var errDiskFull = errors.New("disk full")

// fingerprintOf returns the fingerprint a session would compute after
// processing lines, using single-level scopes.
func fingerprintOf(t *testing.T, lines ...string) string {
	t.Helper()
	st := session.New()
	for _, l := range lines {
		switch session.Classify(l) {
		case session.KindComment, session.KindExit, session.KindEnd:
		case session.KindPush:
			st.PushScope()
		case session.KindPop:
			require.NoError(t, st.PopScope())
		default:
			st.Feed(l)
		}
	}
	return st.Fingerprint()
}
