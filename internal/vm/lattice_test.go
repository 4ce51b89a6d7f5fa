package vm

import (
	"fmt"
	"testing"

	"lattice/internal/bytecode"
	"lattice/internal/compiler"
	"lattice/internal/errors"
	"lattice/internal/lexer"
	"lattice/internal/parser"
	"lattice/internal/value"
)

// compileSource lexes, parses and compiles a full program, recovering a
// parser panic (the parser's own error-reporting path, per
// internal/parser) into a plain error the way internal/testing's
// RunFile does for *_test.lc files.
func compileSource(src string) (chunk *bytecode.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	toks := lexer.NewScanner(src).ScanTokens()
	stmts := parser.NewParser(toks).Parse()
	return compiler.NewCompiler().Compile(stmts)
}

func panicToError(r interface{}) error {
	if le, ok := r.(*errors.LatticeError); ok {
		return le
	}
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("%v", r)
}

// runSource lexes, parses, compiles and runs a full program against a
// fresh VM, the same pipeline internal/testing's RunFile drives against
// *_test.lc files, inlined here to keep package vm's own tests free of
// an import cycle back through internal/testing.
func runSource(t *testing.T, src string) value.Value {
	t.Helper()
	chunk, err := compileSource(src)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	result, err := New().Run(chunk)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return result
}

// runSourceErr is like runSource but expects Run to fail, returning the
// error instead of failing the test.
func runSourceErr(t *testing.T, src string) error {
	t.Helper()
	chunk, err := compileSource(src)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	_, err = New().Run(chunk)
	if err == nil {
		t.Fatal("expected a runtime error, got none")
	}
	return err
}

func TestClosureCapturesUpvalue(t *testing.T) {
	src := `
	fn make_counter() {
		let count = 0
		fn increment() {
			count = count + 1
			return count
		}
		return increment
	}

	let counter = make_counter()
	counter()
	counter()
	return counter()
	`
	got := runSource(t, src)
	if got.Kind != value.KindInt || got.I != 3 {
		t.Errorf("got %v, want int 3", got)
	}
}

func TestClosuresAreIndependent(t *testing.T) {
	src := `
	fn make_counter() {
		let count = 0
		return fn() => {
			count = count + 1
			count
		}
	}

	let a = make_counter()
	let b = make_counter()
	a()
	a()
	a()
	b()
	return a() + b()
	`
	got := runSource(t, src)
	if got.Kind != value.KindInt || got.I != 6 {
		t.Errorf("got %v, want int 6 (a=4, b=2)", got)
	}
}

func TestTryCatchRecoversThrow(t *testing.T) {
	src := `
	let result = 0
	try {
		throw "boom"
		result = -1
	} catch (e) {
		result = 42
	}
	return result
	`
	got := runSource(t, src)
	if got.Kind != value.KindInt || got.I != 42 {
		t.Errorf("got %v, want int 42", got)
	}
}

func TestFinallyRunsOnBothPaths(t *testing.T) {
	src := `
	let events = []
	fn risky(fail) {
		try {
			if fail {
				throw "fail"
			}
			events.push("ok")
		} catch (e) {
			events.push("caught")
		} finally {
			events.push("cleanup")
		}
	}

	risky(false)
	risky(true)
	return events
	`
	got := runSource(t, src)
	if got.Kind != value.KindArray {
		t.Fatalf("got %v, want array", got)
	}
	elems := got.Obj.(*value.ArrayObj).Elems
	want := []string{"ok", "cleanup", "caught", "cleanup"}
	if len(elems) != len(want) {
		t.Fatalf("got %d elements, want %d (%v)", len(elems), len(want), got)
	}
	for i, w := range want {
		if elems[i].AsString() != w {
			t.Errorf("element %d: got %q, want %q", i, elems[i].AsString(), w)
		}
	}
}

func TestUncaughtThrowPropagatesAsError(t *testing.T) {
	err := runSourceErr(t, `throw "unhandled"`)
	le, ok := err.(*errors.LatticeError)
	if !ok {
		t.Fatalf("got %T, want *errors.LatticeError", err)
	}
	if le.Type != errors.UserThrown {
		t.Errorf("got error type %v, want UserThrown", le.Type)
	}
}

func TestPhaseTransitions(t *testing.T) {
	src := `
	let x = 5
	let frozen = freeze(x)
	let thawed = thaw(frozen)
	return [phase_of(x), phase_of(frozen), phase_of(thawed)]
	`
	got := runSource(t, src)
	elems := got.Obj.(*value.ArrayObj).Elems
	want := []string{"fluid", "crystal", "fluid"}
	for i, w := range want {
		if elems[i].AsString() != w {
			t.Errorf("phase %d: got %q, want %q", i, elems[i].AsString(), w)
		}
	}
}

func TestSublimateRefusesWrite(t *testing.T) {
	err := runSourceErr(t, `
	let x = sublimate([1, 2, 3])
	x[0] = 99
	`)
	le, ok := err.(*errors.LatticeError)
	if !ok {
		t.Fatalf("got %T, want *errors.LatticeError", err)
	}
	if le.Type != errors.PhaseError {
		t.Errorf("got error type %v, want PhaseError", le.Type)
	}
}

func TestTrackRecordsHistory(t *testing.T) {
	src := `
	let temp = 10
	track("temp")
	temp = 20
	temp = 30
	return len(history("temp"))
	`
	got := runSource(t, src)
	if got.Kind != value.KindInt || got.I < 1 {
		t.Errorf("got %v, want at least one history entry", got)
	}
}

func TestChannelSendRecv(t *testing.T) {
	src := `
	let ch = channel()
	spawn(fn() => {
		send(ch, 99)
	})
	return recv(ch)
	`
	got := runSource(t, src)
	if got.Kind != value.KindTuple {
		t.Fatalf("got %v, want tuple", got)
	}
	elems := got.Obj.(*value.TupleObj).Elems
	if elems[0].Kind != value.KindInt || elems[0].I != 99 {
		t.Errorf("got %v, want (99, true)", got)
	}
	if !elems[1].B {
		t.Errorf("got ok=%v, want true", elems[1].B)
	}
}

func TestScopeRunsWorkersConcurrently(t *testing.T) {
	src := `
	fn work(n) => n * n
	return scope([fn() => work(2), fn() => work(3), fn() => work(4)], fn(results) => {
		let total = 0
		for r in results {
			total = total + r
		}
		total
	})
	`
	got := runSource(t, src)
	if got.Kind != value.KindInt || got.I != 29 {
		t.Errorf("got %v, want int 29 (4+9+16)", got)
	}
}

func TestDeferRunsOnReturn(t *testing.T) {
	src := `
	let events = []
	fn f() {
		defer events.push("deferred")
		events.push("body")
		return events
	}
	f()
	return events
	`
	got := runSource(t, src)
	elems := got.Obj.(*value.ArrayObj).Elems
	if len(elems) != 2 || elems[0].AsString() != "body" || elems[1].AsString() != "deferred" {
		t.Errorf("got %v, want [body, deferred]", got)
	}
}
