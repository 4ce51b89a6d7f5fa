package compiler

import "lattice/internal/bytecode"

// compileVarGet/compileVarSet resolve a name against the local ->
// upvalue -> global chain, the same order sentra's own StmtCompiler
// checks (locals first, global fallback) but extended one link
// further for closures (§3, §9).
func (c *Compiler) compileVarGet(name string) {
	if slot, ok := resolveLocal(c.fs, name); ok {
		c.emit(bytecode.OpGetLocal)
		c.emitByte(byte(slot))
		return
	}
	if idx, ok := resolveUpvalue(c.fs, name); ok {
		c.emit(bytecode.OpGetUpvalue)
		c.emitByte(byte(idx))
		return
	}
	c.emitGetGlobal(name)
}

func (c *Compiler) compileVarSet(name string) {
	if slot, ok := resolveLocal(c.fs, name); ok {
		c.emit(bytecode.OpSetLocal)
		c.emitByte(byte(slot))
		return
	}
	if idx, ok := resolveUpvalue(c.fs, name); ok {
		c.emit(bytecode.OpSetUpvalue)
		c.emitByte(byte(idx))
		return
	}
	c.emitSetGlobal(name)
}

func (c *Compiler) nameConstant(name string) int {
	return c.fs.chunk.AddConstant(goLiteralToValue(name))
}

func (c *Compiler) emitGetGlobal(name string) {
	idx := c.nameConstant(name)
	if idx > 255 {
		c.emit(bytecode.OpGetGlobalWide)
		c.emitU16(uint16(idx))
		return
	}
	c.emit(bytecode.OpGetGlobal)
	c.emitByte(byte(idx))
}

func (c *Compiler) emitSetGlobal(name string) {
	idx := c.nameConstant(name)
	if idx > 255 {
		c.emit(bytecode.OpSetGlobalWide)
		c.emitU16(uint16(idx))
		return
	}
	c.emit(bytecode.OpSetGlobal)
	c.emitByte(byte(idx))
}

func (c *Compiler) emitDefineGlobal(name string) {
	idx := c.nameConstant(name)
	if idx > 255 {
		c.emit(bytecode.OpDefineGlobalWide)
		c.emitU16(uint16(idx))
		return
	}
	c.emit(bytecode.OpDefineGlobal)
	c.emitByte(byte(idx))
}

// declareVariable binds name to a local slot if we're inside any
// scope (function body or nested block), or to a global otherwise —
// matching §4.1's "global scope is everything outside a function or
// block."
func (c *Compiler) declareVariable(name string, afterValuePushed func()) {
	if c.fs.scopeDepth > 0 {
		slot := c.declareLocal(name)
		afterValuePushed()
		c.emit(bytecode.OpSetLocal)
		c.emitByte(byte(slot))
		return
	}
	afterValuePushed()
	c.emitDefineGlobal(name)
}
