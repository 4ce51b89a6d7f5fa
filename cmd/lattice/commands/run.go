package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lattice/internal/compiler"
	"lattice/internal/errors"
	"lattice/internal/lexer"
	"lattice/internal/parser"
	"lattice/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a Lattice source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(args[0])
	},
}

func runFile(filename string) error {
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

	return func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = toCLIError(r)
			}
		}()
		_, vmErr := vm.New().Run(chunk)
		return vmErr
	}()
}

// parseSource runs the lex/parse stages, converting a parser panic into
// a returned error the same way the compiler already reports its own
// failures, so callers never need a bare recover of their own.
func parseSource(source, filename string) (stmts []parser.Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toCLIError(r)
		}
	}()
	toks := lexer.NewScanner(source).ScanTokens()
	p := parser.NewParserWithSource(toks, source, filename)
	stmts = p.Parse()
	return stmts, nil
}

func toCLIError(r interface{}) error {
	if le, ok := r.(*errors.LatticeError); ok {
		return fmt.Errorf("%s", le.Error())
	}
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
