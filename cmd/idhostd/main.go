// Command idhostd runs a single identity-hosting node: it serves the
// role-gated TCP protocol of internal/protocol, mirrors neighborhood
// state from a directory oracle, and exposes a local admin API for
// operators.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/idhost/cmd/idhostd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
