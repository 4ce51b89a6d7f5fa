// Package compiler walks the parser's AST and emits a bytecode.Chunk
// (§4.1, §4.3). Grounded on sentra's internal/compiler (a flat
// visitor-based StmtCompiler plus a HoistingCompiler wrapper for
// mutually-recursive top-level functions), generalized with real
// block-scoped locals and upvalue resolution the teacher's compiler
// never had — its own locals were a flat linear scan with no concept
// of scope depth or closures sharing a live variable (see DESIGN.md).
package compiler

import (
	"fmt"

	"lattice/internal/bytecode"
	"lattice/internal/parser"
)

// localVar is a name bound to a stack slot, alive from the point it's
// declared until its enclosing scope closes.
type localVar struct {
	name     string
	depth    int
	slot     int
	captured bool
}

type upvalDesc struct {
	isLocal bool
	index   int
}

type loopCtx struct {
	baseDepth      int // scopeDepth when the loop started
	baseLocals     int // len(locals) when the loop started
	breakJumps     []int
	continueJumps  []int // patched once the continue target (condition recheck or update clause) is known
}

// funcState is one compiling function's mutable state: its own chunk,
// its locals/upvalues, and a link to the enclosing function (for
// upvalue resolution) — the same chain shape sentra's closure-capable
// lambda compiler walks via StmtCompiler.parent, made precise instead
// of a flat name scan.
type funcState struct {
	chunk      *bytecode.Chunk
	enclosing  *funcState
	locals     []localVar
	upvalues   []upvalDesc
	scopeDepth int
	loops      []*loopCtx
	line       int
}

// Compiler drives a single compilation unit (one file/REPL chunk).
type Compiler struct {
	fs      *funcState
	exports []string
}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// CompileError wraps a problem found at compile time (§4.1 "a fault
// that surfaces before the VM ever runs" — sentra's own CompileError
// kind, raised here instead of deep inside dispatch).
type CompileError struct {
	Message string
	Line    int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("CompileError: %s [line %d]", e.Message, e.Line)
}

// Compile compiles a full program (a sequence of top-level statements)
// into an executable Chunk. Top-level function declarations are
// hoisted in a first pass so mutually recursive top-level functions
// can call each other regardless of declaration order, the same
// guarantee sentra's HoistingCompiler gives (restricted here to the
// top level, since nested-scope hoisting has no natural use in
// practice and the teacher's own hoisting pass was top-level only).
func (c *Compiler) Compile(stmts []parser.Stmt) (chunk *bytecode.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	c.fs = &funcState{chunk: bytecode.NewChunk("<script>")}
	c.hoistFunctions(stmts)
	for _, s := range stmts {
		if _, ok := s.(*parser.FunctionStmt); ok {
			continue // already compiled by hoistFunctions
		}
		if exp, ok := s.(*parser.ExportStmt); ok {
			c.compileExport(exp)
			continue
		}
		c.compileStmt(s)
	}
	c.emit(bytecode.OpDeferRun)
	c.emit(bytecode.OpHalt)
	c.fs.chunk.Exports = c.exports
	return c.fs.chunk, nil
}

// hoistFunctions pre-declares every top-level `fn` as a global before
// the main pass runs, so a function defined later in the file can
// still be called by one defined earlier.
func (c *Compiler) hoistFunctions(stmts []parser.Stmt) {
	for _, s := range stmts {
		fn, ok := s.(*parser.FunctionStmt)
		if exp, isExp := s.(*parser.ExportStmt); isExp {
			fn, ok = exp.Stmt.(*parser.FunctionStmt)
		}
		if !ok {
			continue
		}
		c.compileFunctionStmt(fn)
	}
}

func (c *Compiler) compileExport(exp *parser.ExportStmt) {
	c.exports = append(c.exports, exp.Name)
	if exp.Stmt != nil {
		if _, ok := exp.Stmt.(*parser.FunctionStmt); ok {
			return // already hoisted
		}
		c.compileStmt(exp.Stmt)
	}
}

func (c *Compiler) line() int {
	return c.fs.line
}

func (c *Compiler) emit(op bytecode.OpCode) int {
	return c.fs.chunk.WriteOp(op, c.line())
}

func (c *Compiler) emitByte(b byte) int {
	return c.fs.chunk.WriteByte(b, c.line())
}

func (c *Compiler) emitU16(v uint16) int {
	return c.fs.chunk.WriteU16(v, c.line())
}

func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emit(op)
	pos := c.emitU16(0xffff)
	return pos // offset of the high byte of the placeholder
}

func (c *Compiler) patchJump(pos int) {
	dist := len(c.fs.chunk.Code) - (pos + 2)
	c.fs.chunk.PatchU16(pos, uint16(int16(dist)))
}

func (c *Compiler) emitLoop(target int) {
	c.emit(bytecode.OpLoop)
	dist := len(c.fs.chunk.Code) + 2 - target
	c.emitU16(uint16(dist))
}

func (c *Compiler) constant(v interface{}) int {
	return c.fs.chunk.AddConstant(goLiteralToValue(v))
}

func (c *Compiler) fail(format string, args ...interface{}) {
	panic(&CompileError{Message: fmt.Sprintf(format, args...), Line: c.line()})
}

// --- scopes ---

func (c *Compiler) beginScope() {
	c.fs.scopeDepth++
}

// endScope pops every local declared in the scope being closed,
// closing it as an upvalue first if some inner closure captured it
// (§9 "close-on-scope-exit"), mirroring what doReturn does for an
// entire frame but for a single block.
func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	for len(c.fs.locals) > 0 && c.fs.locals[len(c.fs.locals)-1].depth > c.fs.scopeDepth {
		last := c.fs.locals[len(c.fs.locals)-1]
		if last.captured {
			c.emit(bytecode.OpCloseUpvalue)
		} else {
			c.emit(bytecode.OpPop)
		}
		c.fs.locals = c.fs.locals[:len(c.fs.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string) int {
	if len(c.fs.locals) >= 256 {
		c.fail("too many local variables in one function")
	}
	slot := len(c.fs.locals)
	c.fs.locals = append(c.fs.locals, localVar{name: name, depth: c.fs.scopeDepth, slot: slot})
	return slot
}

func resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i].slot, true
		}
	}
	return 0, false
}

func addUpvalue(fs *funcState, isLocal bool, index int) int {
	for i, u := range fs.upvalues {
		if u.isLocal == isLocal && u.index == index {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, upvalDesc{isLocal: isLocal, index: index})
	return len(fs.upvalues) - 1
}

func resolveUpvalue(fs *funcState, name string) (int, bool) {
	if fs.enclosing == nil {
		return 0, false
	}
	if slot, ok := resolveLocal(fs.enclosing, name); ok {
		markCaptured(fs.enclosing, slot)
		return addUpvalue(fs, true, slot), true
	}
	if idx, ok := resolveUpvalue(fs.enclosing, name); ok {
		return addUpvalue(fs, false, idx), true
	}
	return 0, false
}

func markCaptured(fs *funcState, slot int) {
	for i := range fs.locals {
		if fs.locals[i].slot == slot {
			fs.locals[i].captured = true
			return
		}
	}
}

// popLocalsAbove emits the pops/closes needed to unwind the operand
// stack down to baseLocals, without altering the compiler's own
// locals bookkeeping (used by break/continue, which jump out of a
// scope without formally ending it).
func (c *Compiler) popLocalsAbove(baseLocals int) {
	for i := len(c.fs.locals) - 1; i >= baseLocals; i-- {
		if c.fs.locals[i].captured {
			c.emit(bytecode.OpCloseUpvalue)
		} else {
			c.emit(bytecode.OpPop)
		}
	}
}
