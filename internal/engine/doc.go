// Package engine implements the smtcache transaction loop.
//
// The loop reads client lines one at a time, keeps the session fingerprint
// up to date, answers cacheable commands from the store when the same
// history was seen before, and relays everything else to the solver.
//
// ARCHITECTURE:
//
// Single-Owner Session Loop:
// Run owns the session state and the store handle. Only two helper
// goroutines exist: the line reader, which turns blocking client reads
// into a channel so cancellation can be observed, and the solver relay
// (package solver), which moves raw lines.
//
// Line Processing Flow:
// 1. Classify the line (end, comment, exit, push, pop, cacheable, command)
// 2. Update the fingerprint (feed, push or pop)
// 3. For cacheable lines: look up the fingerprint
// 4. On a miss: forward, await exactly one reply, insert-if-absent
// 5. Emit the reply to the client and flush
//
// At most one solver request is outstanding at any time and replies reach
// the client in request order.
//
// ENDINGS:
//
// End of input, (exit), solver closure and cancellation end a session
// normally and are reported in Result. Scope underflow and store failures
// are fatal and returned as *SessionError.
package engine
