// Package testing discovers and runs *_test.lc files against a fresh
// VM apiece. Grounded on sentra's own internal/testing (a
// TestRunner/TestReporter pair driving Go-native TestCase closures),
// restructured around whole-file test scripts — a Lattice test is a
// script that throws (via the `assert` native or an explicit `throw`)
// on failure, not a registered Go function — while keeping the
// teacher's colored pass/fail text-output shape.
package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lattice/internal/compiler"
	"lattice/internal/errors"
	"lattice/internal/lexer"
	"lattice/internal/parser"
	"lattice/internal/vm"
)

type Result struct {
	File     string
	Passed   bool
	Duration time.Duration
	Err      error
}

type Summary struct {
	Results []Result
}

func (s *Summary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed {
			n++
		}
	}
	return n
}

func (s *Summary) Failed() int {
	return len(s.Results) - s.Passed()
}

// DiscoverTestFiles walks root collecting every *_test.lc file, the
// same "_test" suffix convention Go itself uses.
func DiscoverTestFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && (info.Name() == "vendor" || strings.HasPrefix(info.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(info.Name(), "_test.lc") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// RunFile lexes, parses, compiles and runs a single test file against
// its own fresh VM, treating any compile error or runtime panic as a
// failure.
func RunFile(path string) (res Result) {
	res.File = path
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Passed = false
			res.Err = toError(r)
		}
	}()

	source, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	toks := lexer.NewScanner(string(source)).ScanTokens()
	p := parser.NewParserWithSource(toks, string(source), path)
	stmts := p.Parse()

	chunk, err := compiler.NewCompiler().Compile(stmts)
	if err != nil {
		res.Err = err
		return res
	}

	testVM := vm.New()
	if _, err := testVM.Run(chunk); err != nil {
		res.Err = err
		return res
	}
	res.Passed = true
	return res
}

func toError(r interface{}) error {
	if le, ok := r.(*errors.LatticeError); ok {
		return le
	}
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// RunAll discovers and runs every test file under root, printing a
// colored pass/fail line per file (kept from sentra's own TextReporter:
// green check, red cross) plus a one-line summary.
func RunAll(root string) (*Summary, error) {
	files, err := DiscoverTestFiles(root)
	if err != nil {
		return nil, err
	}
	summary := &Summary{}
	for _, f := range files {
		res := RunFile(f)
		summary.Results = append(summary.Results, res)
		if res.Passed {
			fmt.Printf("\033[32m✓\033[0m %s (%v)\n", f, res.Duration)
		} else {
			fmt.Printf("\033[31m✗\033[0m %s (%v)\n", f, res.Duration)
			if res.Err != nil {
				fmt.Printf("    %v\n", res.Err)
			}
		}
	}
	fmt.Printf("\n%d passed, %d failed\n", summary.Passed(), summary.Failed())
	return summary, nil
}
