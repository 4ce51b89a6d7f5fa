package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	latticetesting "lattice/internal/testing"
)

var testCmd = &cobra.Command{
	Use:   "test [dir]",
	Short: "Run every *_test.lc file under dir (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		summary, err := latticetesting.RunAll(root)
		if err != nil {
			return err
		}
		if summary.Failed() > 0 {
			return fmt.Errorf("%d test file(s) failed", summary.Failed())
		}
		return nil
	},
}
