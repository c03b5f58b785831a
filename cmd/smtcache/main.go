// Command smtcache is a caching middleware for SMT-LIB2 solver sessions.
package main

import (
	"os"

	"github.com/roach88/smtcache/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
