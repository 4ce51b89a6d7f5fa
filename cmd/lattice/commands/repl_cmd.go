package commands

import (
	"github.com/spf13/cobra"

	"lattice/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive Lattice shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repl.Start()
		return nil
	},
}
