// Package repl is the interactive Lattice shell. Grounded on sentra's
// own internal/repl/repl.go (a bufio.Scanner read loop re-compiling and
// re-running each line against one persistent VM), adapted to the new
// compiler/VM pair and widened to echo a bare expression's value the
// way a REPL should.
package repl

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"lattice/internal/compiler"
	"lattice/internal/errors"
	"lattice/internal/lexer"
	"lattice/internal/parser"
	"lattice/internal/vm"
)

func Start() {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("Lattice REPL | type 'exit' to quit")
	}
	scanner := bufio.NewScanner(os.Stdin)
	replVM := vm.New()

	for {
		if interactive {
			fmt.Print(">>> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		runLine(replVM, line)
	}
}

func runLine(v *vm.VM, line string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, formatPanic(r))
		}
	}()

	toks := lexer.NewScanner(line).ScanTokens()
	p := parser.NewParser(toks)
	stmts := p.Parse()

	if result, ok := wrapBareExpr(stmts); ok {
		stmts = result
	}

	chunk, err := compiler.NewCompiler().Compile(stmts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return
	}
	val, err := v.Run(chunk)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatPanic(err))
		return
	}
	if val.Kind != 0 || true {
		fmt.Println(val.String())
	}
}

// wrapBareExpr lets a one-liner like `1 + 2` print its value, the same
// courtesy the teacher's REPL extended by simply never popping a
// trailing bare expression statement's result.
func wrapBareExpr(stmts []parser.Stmt) ([]parser.Stmt, bool) {
	if len(stmts) != 1 {
		return stmts, false
	}
	es, ok := stmts[0].(*parser.ExpressionStmt)
	if !ok {
		return stmts, false
	}
	return []parser.Stmt{&parser.ReturnStmt{Value: es.Expr}}, true
}

func formatPanic(r interface{}) string {
	if le, ok := r.(*errors.LatticeError); ok {
		return le.Error()
	}
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}
