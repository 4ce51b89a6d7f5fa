// cmd/lattice is the Lattice CLI entry point. Grounded on sentra's own
// cmd/sentra/main.go (a hand-rolled flag/alias dispatcher), rebuilt on
// top of Cobra since that is the command framework the pack's own
// production CLI (go-probeum) actually ships with.
package main

import (
	"fmt"
	"os"

	"lattice/cmd/lattice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
