package compiler

import (
	"lattice/internal/bytecode"
	"lattice/internal/parser"
)

// Every Expr visitor here leaves exactly one value on the stack —
// the invariant the rest of the compiler (and the disassembler) relies
// on, grounded on sentra's own expression compiler which holds the
// same contract even though its opcode set differs (§4.1).

func (c *Compiler) VisitLiteralExpr(expr *parser.Literal) interface{} {
	idx := c.constant(expr.Value)
	if idx > 255 {
		c.emit(bytecode.OpConstantWide)
		c.emitU16(uint16(idx))
		return nil
	}
	c.emit(bytecode.OpConstant)
	c.emitByte(byte(idx))
	return nil
}

func (c *Compiler) VisitVariableExpr(expr *parser.Variable) interface{} {
	c.compileVarGet(expr.Name)
	return nil
}

func (c *Compiler) VisitAssignExpr(expr *parser.Assign) interface{} {
	expr.Value.Accept(c)
	c.compileVarSet(expr.Name)
	return nil
}

func (c *Compiler) VisitBinaryExpr(expr *parser.Binary) interface{} {
	expr.Left.Accept(c)
	expr.Right.Accept(c)
	switch expr.Operator {
	case "+":
		c.emit(bytecode.OpAdd)
	case "-":
		c.emit(bytecode.OpSub)
	case "*":
		c.emit(bytecode.OpMul)
	case "/":
		c.emit(bytecode.OpDiv)
	case "%":
		c.emit(bytecode.OpMod)
	case "==":
		c.emit(bytecode.OpEqual)
	case "!=":
		c.emit(bytecode.OpNotEqual)
	case ">":
		c.emit(bytecode.OpGreater)
	case "<":
		c.emit(bytecode.OpLess)
	case ">=":
		c.emit(bytecode.OpGreaterEqual)
	case "<=":
		c.emit(bytecode.OpLessEqual)
	default:
		c.fail("unknown binary operator '%s'", expr.Operator)
	}
	return nil
}

func (c *Compiler) VisitUnaryExpr(expr *parser.UnaryExpr) interface{} {
	expr.Operand.Accept(c)
	switch expr.Operator {
	case "!":
		c.emit(bytecode.OpNot)
	case "-":
		c.emit(bytecode.OpNegate)
	default:
		c.fail("unknown unary operator '%s'", expr.Operator)
	}
	return nil
}

// VisitLogicalExpr compiles && and || eagerly (both operands always
// evaluated) rather than with short-circuit jumps: the opcode set
// provides AND/OR as plain binary-boolean ops over two already-pushed
// operands, which is the contract sentra's own OpAnd/OpOr follow too
// (see DESIGN.md).
func (c *Compiler) VisitLogicalExpr(expr *parser.LogicalExpr) interface{} {
	expr.Left.Accept(c)
	expr.Right.Accept(c)
	switch expr.Operator {
	case "&&":
		c.emit(bytecode.OpAnd)
	case "||":
		c.emit(bytecode.OpOr)
	default:
		c.fail("unknown logical operator '%s'", expr.Operator)
	}
	return nil
}

func (c *Compiler) VisitCallExpr(expr *parser.CallExpr) interface{} {
	// obj.name(args) is a method call: receiver, args, INVOKE name argc
	if prop, ok := expr.Callee.(*parser.PropertyExpr); ok {
		prop.Object.Accept(c)
		for _, a := range expr.Args {
			a.Accept(c)
		}
		c.emit(bytecode.OpInvoke)
		c.emitU16(uint16(c.nameConstant(prop.Property)))
		c.emitByte(byte(len(expr.Args)))
		return nil
	}
	expr.Callee.Accept(c)
	for _, a := range expr.Args {
		a.Accept(c)
	}
	c.emit(bytecode.OpCall)
	c.emitByte(byte(len(expr.Args)))
	return nil
}

func (c *Compiler) VisitIfExpr(expr *parser.IfExpr) interface{} {
	expr.Cond.Accept(c)
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	expr.ThenBranch.Accept(c)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emit(bytecode.OpPop)
	if expr.ElseBranch != nil {
		expr.ElseBranch.Accept(c)
	} else {
		c.emit(bytecode.OpNil)
	}
	c.patchJump(endJump)
	return nil
}

// VisitBlockExpr treats the block's locals as belonging to the
// enclosing scope rather than opening its own (a deliberate
// simplification — see DESIGN.md "block-expression scoping"): the
// final statement's expression value is the block's value, the same
// way sentra's VisitBlockExpr threads the last visited statement's
// result through.
func (c *Compiler) VisitBlockExpr(expr *parser.BlockExpr) interface{} {
	for i, s := range expr.Stmts {
		if i == len(expr.Stmts)-1 {
			if es, ok := s.(*parser.ExpressionStmt); ok {
				es.Expr.Accept(c)
				return nil
			}
		}
		c.compileStmt(s)
	}
	c.emit(bytecode.OpNil)
	return nil
}

func (c *Compiler) VisitArrayExpr(expr *parser.ArrayExpr) interface{} {
	for _, e := range expr.Elements {
		e.Accept(c)
	}
	c.emit(bytecode.OpBuildArray)
	c.emitU16(uint16(len(expr.Elements)))
	return nil
}

func (c *Compiler) VisitMapExpr(expr *parser.MapExpr) interface{} {
	for i := range expr.Keys {
		expr.Keys[i].Accept(c)
		expr.Values[i].Accept(c)
	}
	c.emit(bytecode.OpBuildMap)
	c.emitU16(uint16(len(expr.Keys)))
	return nil
}

func (c *Compiler) VisitIndexExpr(expr *parser.IndexExpr) interface{} {
	expr.Object.Accept(c)
	expr.Index.Accept(c)
	c.emit(bytecode.OpIndex)
	return nil
}

func (c *Compiler) VisitSetIndexExpr(expr *parser.SetIndexExpr) interface{} {
	expr.Object.Accept(c)
	expr.Index.Accept(c)
	expr.Value.Accept(c)
	c.emit(bytecode.OpSetIndex)
	return nil
}

func (c *Compiler) VisitPropertyExpr(expr *parser.PropertyExpr) interface{} {
	expr.Object.Accept(c)
	idx := c.nameConstant(expr.Property)
	if idx > 255 {
		c.fail("too many distinct field names (>255) for a single-byte GET_FIELD operand")
	}
	c.emit(bytecode.OpGetField)
	c.emitByte(byte(idx))
	return nil
}

// VisitInterpolationExpr folds each part through the global to_string
// native and concatenates with ADD (the opcode set has no dedicated
// string-concat op; ADD already special-cases string+string, see
// dispatch.go's binaryAdd).
func (c *Compiler) VisitInterpolationExpr(expr *parser.InterpolationExpr) interface{} {
	if len(expr.Parts) == 0 {
		idx := c.constant("")
		c.emit(bytecode.OpConstant)
		c.emitByte(byte(idx))
		return nil
	}
	for i, part := range expr.Parts {
		c.compileStringify(part)
		if i > 0 {
			c.emit(bytecode.OpAdd)
		}
	}
	return nil
}

func (c *Compiler) compileStringify(part parser.Expr) {
	if lit, ok := part.(*parser.Literal); ok {
		if _, isStr := lit.Value.(string); isStr {
			part.Accept(c)
			return
		}
	}
	c.emitGetGlobal("to_string")
	part.Accept(c)
	c.emit(bytecode.OpCall)
	c.emitByte(1)
}

// VisitLambdaExpr compiles `fn(...) => expr` and `fn(...) => { ... }`
// alike: the body's trailing expression is always the return value, the
// same implicit-return convention VisitBlockExpr gives a bare `{ ... }`
// used as an expression.
func (c *Compiler) VisitLambdaExpr(expr *parser.LambdaExpr) interface{} {
	bodyStmts, ok := expr.Body.(*parser.BlockExpr)
	c.compileFunction("<lambda>", expr.Params, func() {
		if ok {
			c.compileImplicitReturnBlock(bodyStmts.Stmts)
		} else {
			expr.Body.Accept(c)
			c.emit(bytecode.OpDeferRun)
			c.emit(bytecode.OpReturn)
		}
	})
	return nil
}

// compileImplicitReturnBlock compiles every statement but the last
// normally, then — if the last is a bare expression statement — returns
// its value instead of popping it.
func (c *Compiler) compileImplicitReturnBlock(stmts []parser.Stmt) {
	for i, s := range stmts {
		if i == len(stmts)-1 {
			if es, ok := s.(*parser.ExpressionStmt); ok {
				es.Expr.Accept(c)
				c.emit(bytecode.OpDeferRun)
				c.emit(bytecode.OpReturn)
				return
			}
		}
		c.compileStmt(s)
	}
}
