package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lattice/internal/compiler"
)

var (
	buildDisasm bool
	buildOut    string
)

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Compile a Lattice source file, checking it for errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildFile(args[0], buildDisasm, buildOut)
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildDisasm, "disasm", false, "print a disassembly of the compiled bytecode")
	buildCmd.Flags().StringVarP(&buildOut, "output", "o", "", "write the disassembly to this file instead of stdout")
}

// buildFile compiles filename and reports success/failure; it does not
// write a serialized chunk (Chunk.Serialize is not used here), so "build"
// is really a compile-check with an optional disassembly dump (§10.5,
// §12 disassembler).
func buildFile(filename string, disasm bool, out string) error {
	source, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", filename, err)
	}

	stmts, err := parseSource(string(source), filename)
	if err != nil {
		return err
	}

	chunk, err := compiler.NewCompiler().Compile(stmts)
	if err != nil {
		return err
	}

	if !disasm {
		fmt.Printf("%s compiled cleanly\n", filename)
		return nil
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("could not create %s: %w", out, err)
		}
		defer f.Close()
		chunk.Disassemble(f)
		fmt.Printf("disassembly written to %s\n", out)
		return nil
	}
	chunk.Disassemble(w)
	return nil
}
