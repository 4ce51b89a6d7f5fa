package compiler

import (
	"lattice/internal/bytecode"
	"lattice/internal/parser"
	"lattice/internal/value"
)

func (c *Compiler) compileStmt(s parser.Stmt) {
	s.Accept(c)
}

func (c *Compiler) compileStmtList(stmts []parser.Stmt) {
	for _, s := range stmts {
		c.compileStmt(s)
	}
}

// compileFunction compiles a function body into its own funcState
// (chunk + locals + upvalues), grounded on sentra's sub-compiler
// pattern in VisitFunctionStmt/VisitLambdaExpr (a fresh StmtCompiler
// per function, linked to its parent for closure resolution), made
// precise with real upvalue descriptors instead of a name re-scan.
func (c *Compiler) compileFunction(name string, params []string, body func()) {
	outer := c.fs
	inner := &funcState{chunk: bytecode.NewChunk(name), enclosing: outer, scopeDepth: 1}
	c.fs = inner
	for _, p := range params {
		c.declareLocal(p)
	}
	body()
	c.emit(bytecode.OpNil)
	c.emit(bytecode.OpDeferRun)
	c.emit(bytecode.OpReturn)

	template := &value.ClosureObj{
		Name:       name,
		Kind:       value.KindCompiled,
		Arity:      len(params),
		ParamNames: params,
		Body:       inner.chunk,
	}
	upvals := inner.upvalues
	c.fs = outer
	idx := outer.chunk.AddConstant(value.NewClosure(template))
	c.emit(bytecode.OpClosure)
	c.emitU16(uint16(idx))
	c.emitByte(byte(len(upvals)))
	for _, u := range upvals {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(u.index))
	}
}

func (c *Compiler) compileFunctionStmt(fn *parser.FunctionStmt) {
	build := func() {
		c.compileFunction(fn.Name, fn.Params, func() {
			c.compileStmtList(fn.Body)
		})
	}
	if c.fs.scopeDepth > 0 {
		slot := c.declareLocal(fn.Name)
		build()
		c.emit(bytecode.OpSetLocal)
		c.emitByte(byte(slot))
		return
	}
	build()
	c.emitDefineGlobal(fn.Name)
}

func (c *Compiler) VisitFunctionStmt(stmt *parser.FunctionStmt) interface{} {
	c.compileFunctionStmt(stmt)
	return nil
}

func (c *Compiler) VisitPrintStmt(stmt *parser.PrintStmt) interface{} {
	stmt.Expr.Accept(c)
	c.emit(bytecode.OpPrint)
	c.emitByte(1)
	return nil
}

func (c *Compiler) VisitLetStmt(stmt *parser.LetStmt) interface{} {
	c.declareVariable(stmt.Name, func() {
		stmt.Expr.Accept(c)
	})
	return nil
}

func (c *Compiler) VisitAssignmentStmt(stmt *parser.AssignmentStmt) interface{} {
	stmt.Value.Accept(c)
	c.compileVarSet(stmt.Name)
	c.emit(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitIndexAssignmentStmt(stmt *parser.IndexAssignmentStmt) interface{} {
	stmt.Object.Accept(c)
	stmt.Index.Accept(c)
	stmt.Value.Accept(c)
	c.emit(bytecode.OpSetIndex)
	c.emit(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitExpressionStmt(stmt *parser.ExpressionStmt) interface{} {
	stmt.Expr.Accept(c)
	c.emit(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitReturnStmt(stmt *parser.ReturnStmt) interface{} {
	if stmt.Value != nil {
		stmt.Value.Accept(c)
	} else {
		c.emit(bytecode.OpNil)
	}
	c.emit(bytecode.OpDeferRun)
	c.emit(bytecode.OpReturn)
	return nil
}

// VisitDeferStmt compiles the deferred statement as its own zero-arg
// closure and pushes it onto the frame's defer stack (§4.5). Nesting it
// through compileFunction reuses the exact closure/upvalue machinery a
// real function body gets, so a deferred body can close over locals
// from the enclosing scope the same way a nested `fn` would.
func (c *Compiler) VisitDeferStmt(stmt *parser.DeferStmt) interface{} {
	c.compileFunction("<deferred>", nil, func() {
		c.compileStmt(stmt.Stmt)
	})
	c.emit(bytecode.OpDeferPush)
	return nil
}

func (c *Compiler) VisitIfStmt(stmt *parser.IfStmt) interface{} {
	stmt.Condition.Accept(c)
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	c.beginScope()
	c.compileStmtList(stmt.Then)
	c.endScope()

	hasElse := len(stmt.Else) > 0
	var endJump int
	if hasElse {
		endJump = c.emitJump(bytecode.OpJump)
	}
	c.patchJump(elseJump)
	c.emit(bytecode.OpPop)
	if hasElse {
		c.beginScope()
		c.compileStmtList(stmt.Else)
		c.endScope()
		c.patchJump(endJump)
	}
	return nil
}

func (c *Compiler) currentLoop() *loopCtx {
	if len(c.fs.loops) == 0 {
		return nil
	}
	return c.fs.loops[len(c.fs.loops)-1]
}

func (c *Compiler) VisitWhileStmt(stmt *parser.WhileStmt) interface{} {
	loopStart := len(c.fs.chunk.Code)
	lc := &loopCtx{baseDepth: c.fs.scopeDepth, baseLocals: len(c.fs.locals)}
	c.fs.loops = append(c.fs.loops, lc)

	stmt.Condition.Accept(c)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	c.beginScope()
	c.compileStmtList(stmt.Body)
	c.endScope()

	for _, cj := range lc.continueJumps {
		c.patchJump(cj)
	}
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emit(bytecode.OpPop)
	for _, bj := range lc.breakJumps {
		c.patchJump(bj)
	}
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	return nil
}

func (c *Compiler) VisitForStmt(stmt *parser.ForStmt) interface{} {
	c.beginScope()
	if stmt.Init != nil {
		c.compileStmt(stmt.Init)
	}
	loopStart := len(c.fs.chunk.Code)
	hasCond := stmt.Condition != nil
	var exitJump int
	if hasCond {
		stmt.Condition.Accept(c)
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emit(bytecode.OpPop)
	}

	lc := &loopCtx{baseDepth: c.fs.scopeDepth, baseLocals: len(c.fs.locals)}
	c.fs.loops = append(c.fs.loops, lc)
	c.beginScope()
	c.compileStmtList(stmt.Body)
	c.endScope()

	for _, cj := range lc.continueJumps {
		c.patchJump(cj)
	}
	if stmt.Update != nil {
		stmt.Update.Accept(c)
		c.emit(bytecode.OpPop)
	}
	c.emitLoop(loopStart)
	if hasCond {
		c.patchJump(exitJump)
		c.emit(bytecode.OpPop)
	}
	for _, bj := range lc.breakJumps {
		c.patchJump(bj)
	}
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	c.endScope()
	return nil
}

// VisitForInStmt desugars `for x in collection { ... }` into an
// index-driven while loop: there's no dedicated iterator-protocol
// opcode (no teacher or pack example carries one for a stack VM of
// this shape), so the collection's own `len` method and INDEX do the
// walking (§ method dispatch table; see DESIGN.md).
func (c *Compiler) VisitForInStmt(stmt *parser.ForInStmt) interface{} {
	c.beginScope()
	stmt.Collection.Accept(c)
	collSlot := c.declareLocal("<forin_coll>")
	c.emit(bytecode.OpSetLocal)
	c.emitByte(byte(collSlot))

	idx := c.constant(0.0)
	c.emit(bytecode.OpConstant)
	c.emitByte(byte(idx))
	idxSlot := c.declareLocal("<forin_idx>")
	c.emit(bytecode.OpSetLocal)
	c.emitByte(byte(idxSlot))

	loopStart := len(c.fs.chunk.Code)
	lc := &loopCtx{baseDepth: c.fs.scopeDepth, baseLocals: len(c.fs.locals)}
	c.fs.loops = append(c.fs.loops, lc)

	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(collSlot))
	lenNameIdx := c.nameConstant("len")
	if lenNameIdx > 65535 {
		c.fail("constant pool exhausted")
	}
	c.emit(bytecode.OpInvoke)
	c.emitU16(uint16(lenNameIdx))
	c.emitByte(0)
	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(idxSlot))
	c.emit(bytecode.OpSwap)
	c.emit(bytecode.OpLess) // idx < len
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)

	c.beginScope()
	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(collSlot))
	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(idxSlot))
	c.emit(bytecode.OpIndex)
	varSlot := c.declareLocal(stmt.Variable)
	c.emit(bytecode.OpSetLocal)
	c.emitByte(byte(varSlot))
	c.compileStmtList(stmt.Body)
	c.endScope()

	for _, cj := range lc.continueJumps {
		c.patchJump(cj)
	}
	c.emit(bytecode.OpIncLocal)
	c.emitByte(byte(idxSlot))
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emit(bytecode.OpPop)
	for _, bj := range lc.breakJumps {
		c.patchJump(bj)
	}
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	c.endScope()
	return nil
}

func (c *Compiler) VisitBreakStmt(stmt *parser.BreakStmt) interface{} {
	lc := c.currentLoop()
	if lc == nil {
		c.fail("'break' outside a loop")
	}
	c.popLocalsAbove(lc.baseLocals)
	lc.breakJumps = append(lc.breakJumps, c.emitJump(bytecode.OpJump))
	return nil
}

func (c *Compiler) VisitContinueStmt(stmt *parser.ContinueStmt) interface{} {
	lc := c.currentLoop()
	if lc == nil {
		c.fail("'continue' outside a loop")
	}
	c.popLocalsAbove(lc.baseLocals)
	lc.continueJumps = append(lc.continueJumps, c.emitJump(bytecode.OpJump))
	return nil
}

func (c *Compiler) VisitImportStmt(stmt *parser.ImportStmt) interface{} {
	idx := c.nameConstant(stmt.Path)
	if idx > 255 {
		c.fail("too many distinct import paths (>255) for a single-byte IMPORT operand")
	}
	c.emit(bytecode.OpImport)
	c.emitByte(byte(idx))
	name := stmt.Alias
	if name == "" {
		name = stmt.Path
	}
	if c.fs.scopeDepth > 0 {
		slot := c.declareLocal(name)
		c.emit(bytecode.OpSetLocal)
		c.emitByte(byte(slot))
		return nil
	}
	c.emitDefineGlobal(name)
	return nil
}

func (c *Compiler) VisitExportStmt(stmt *parser.ExportStmt) interface{} {
	if stmt.Stmt != nil {
		c.compileStmt(stmt.Stmt)
	}
	return nil
}

// VisitClassStmt: Lattice replaces classes with structs/enums (§3) —
// there's no surface grammar here for struct/enum literals, so a
// class declaration has nothing to lower to. Hand-built chunks cover
// build_struct/build_enum directly; see DESIGN.md.
func (c *Compiler) VisitClassStmt(stmt *parser.ClassStmt) interface{} {
	c.fail("class declarations have no Lattice equivalent (structs/enums are built via build_struct/build_enum, not this grammar)")
	return nil
}

func (c *Compiler) VisitTryStmt(stmt *parser.TryStmt) interface{} {
	handlerJump := c.emitJump(bytecode.OpPushExceptionHandler)
	c.beginScope()
	c.compileStmtList(stmt.TryBlock)
	c.endScope()
	c.emit(bytecode.OpPopExceptionHandler)
	jumpOverCatch := c.emitJump(bytecode.OpJump)

	c.patchJump(handlerJump)
	c.beginScope()
	if stmt.CatchVar != "" {
		slot := c.declareLocal(stmt.CatchVar)
		c.emit(bytecode.OpSetLocal)
		c.emitByte(byte(slot))
	} else {
		c.emit(bytecode.OpPop)
	}
	c.compileStmtList(stmt.CatchBlock)
	c.endScope()
	c.patchJump(jumpOverCatch)

	if len(stmt.FinallyBlock) > 0 {
		c.beginScope()
		c.compileStmtList(stmt.FinallyBlock)
		c.endScope()
	}
	return nil
}

func (c *Compiler) VisitThrowStmt(stmt *parser.ThrowStmt) interface{} {
	stmt.Value.Accept(c)
	c.emit(bytecode.OpThrow)
	return nil
}

func (c *Compiler) VisitMatchStmt(stmt *parser.MatchStmt) interface{} {
	stmt.Value.Accept(c)
	var endJumps []int
	for i, mc := range stmt.Cases {
		isDefault := false
		if lit, ok := mc.Pattern.(*parser.Literal); ok {
			if s, ok := lit.Value.(string); ok && s == "_" {
				isDefault = true
			}
		}
		var nextJump int
		if !isDefault {
			c.emit(bytecode.OpDup)
			mc.Pattern.Accept(c)
			c.emit(bytecode.OpEqual)
			nextJump = c.emitJump(bytecode.OpJumpIfFalse)
			c.emit(bytecode.OpPop)
		}
		c.beginScope()
		c.compileStmtList(mc.Body)
		c.endScope()
		if i < len(stmt.Cases)-1 {
			endJumps = append(endJumps, c.emitJump(bytecode.OpJump))
		}
		if !isDefault {
			c.patchJump(nextJump)
			c.emit(bytecode.OpPop)
		}
	}
	c.emit(bytecode.OpPop)
	for _, ej := range endJumps {
		c.patchJump(ej)
	}
	return nil
}
