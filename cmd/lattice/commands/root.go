package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags, the same convention
// sentra's own cmd/sentra/main.go used for BuildDate/GitCommit.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice is a phase-aware scripting language and its toolchain",
	Long: `Lattice is a dynamically typed scripting language with a phase
system (fluid, crystal, sublimated, unphased), closures, exceptions,
and cooperative concurrency, run by a stack-based bytecode VM.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("lattice version %s\n", Version))
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(testCmd)
}

// Execute runs the root command; main only needs to report an error.
func Execute() error {
	return rootCmd.Execute()
}
