// Package harness runs scripted caching scenarios end to end.
//
// A scenario is a sequence of client sessions that share one cache. Each
// session talks to an in-memory scripted solver through the real relay
// and transaction loop, so a scenario observes exactly what a client and
// a solver would: the replies written to the client, the lines that
// reached the solver, and what ended up in the store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	solver:
//	  print_success: false
//	  scope_levels: single
//	  answers:
//	    "(check-sat)": unsat
//	sessions:
//	  - name: cold
//	    input: |
//	      (declare-const a Bool)
//	      (check-sat)
//	    expect:
//	      reason: eof
//	      output: [unsat]
//	      misses: 1
//	  - name: warm
//	    answers:
//	      "(check-sat)": sat
//	    input: |
//	      (declare-const a Bool)
//	      (check-sat)
//	    expect:
//	      output: [unsat]
//	      hits: 1
//	assertions:
//	  - type: solver_count
//	    session: warm
//	    prefix: "(check-sat)"
//	    count: 0
//	  - type: stored
//	    history: ["(declare-const a Bool)", "(check-sat)"]
//	    result: unsat
//
// Per-session answers replace the scenario's solver answers, which makes
// it visible whether a reply came from the cache or from the solver.
//
// # Assertion Types
//
//   - solver_received: the session forwarded exactly these lines
//   - solver_count: the session forwarded N lines starting with prefix
//   - stored: the store holds result for the fingerprint of history
//   - not_stored: the store holds nothing for the fingerprint of history
//   - entries: the store holds exactly N results
//
// # Deterministic Testing
//
// Every session gets a fixed session id ("<scenario>/<session>") and a
// fixed wall clock, and the store is a fresh in-memory SQLite database,
// so transcripts are identical across runs and can be compared against
// golden files with RunWithGolden.
package harness
