package engine

import (
	"bufio"
	"context"
	"io"

	"github.com/roach88/smtcache/internal/solver"
)

// inputLine is one client line or the error that ended the input.
type inputLine struct {
	line string
	err  error
}

// readLines reads r line by line on its own goroutine so the loop can
// select on cancellation while a client read is blocked.
//
// The channel is closed after the first error is delivered or when ctx
// is done. A read blocked in r when ctx is cancelled stays blocked until
// r returns; the goroutine then exits without delivering.
func readLines(ctx context.Context, r io.Reader) <-chan inputLine {
	lines := make(chan inputLine)

	go func() {
		defer close(lines)

		br := bufio.NewReader(r)
		for {
			line, err := solver.ReadLine(br)
			select {
			case lines <- inputLine{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return lines
}
