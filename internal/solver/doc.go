// Package solver talks to a solver subprocess one line at a time.
//
// A Relay owns the two pipes of a solver and runs a background goroutine that
// handles exactly one request at a time: write the line, then (only when a
// reply is wanted) read exactly one line back. The transaction loop and the
// relay goroutine exchange typed messages:
//
//	Request{Line, WantReply}  loop  -> relay   (Send)
//	Reply{Line}               relay -> loop    (Receive)
//	closed reply stream       relay -> loop    (ErrClosed)
//
// Ordering is strict FIFO and nothing is pipelined, so the n-th reply always
// belongs to the n-th request that wanted one. The relay never touches
// session-hash state; it only moves raw lines.
//
// Process wraps an exec.Cmd around a Relay. A Relay can also be built on any
// io.Writer/io.Reader pair, which is how the tests drive it without a real
// solver binary.
package solver
