package vm

import (
	"math"

	"lattice/internal/bytecode"
	"lattice/internal/errors"
	"lattice/internal/value"
)

// dispatch is the main interpreter loop (§4.3). ip/sp/fp live as VM
// fields rather than local registers so a fault can unwind cleanly via
// Go's own panic/recover — opcode handlers that detect a runtime fault
// panic with *errors.LatticeError and the deferred recover in
// dispatchFrom hands it to unwindToHandler, matching §4.5's "every
// runtime fault takes the same path."
func (v *VM) dispatch() (value.Value, error) {
	return v.dispatchFrom(len(v.frames) - 1)
}

// dispatchFrom runs the loop on behalf of the frame at entryDepth. After
// a caught fault it resumes with the same entryDepth, so a handler inside
// a called function returns control to its callers as usual.
func (v *VM) dispatchFrom(entryDepth int) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			le, ok := r.(*errors.LatticeError)
			if !ok {
				panic(r)
			}
			if len(v.tryStack) == 0 || v.tryStack[len(v.tryStack)-1].FrameDepth < entryDepth {
				// No handler reachable from this dispatch invocation —
				// bubble to whichever outer dispatch() (Run, or a
				// defer-thunk's own nested dispatch) owns one.
				err = le
				return
			}
			v.unwindToHandler(le)
			result, err = v.dispatchFrom(entryDepth)
		}
	}()
	for {
		frame := v.currentFrame()
		op := bytecode.OpCode(frame.chunk.Code[frame.ip])
		frame.ip++

		switch op {
		case bytecode.OpNil:
			v.push(value.Nil())
		case bytecode.OpTrue:
			v.push(value.Bool(true))
		case bytecode.OpFalse:
			v.push(value.Bool(false))
		case bytecode.OpUnit:
			v.push(value.Unit())
		case bytecode.OpConstant:
			idx := v.readByte()
			v.push(frame.chunk.Constant(int(idx)))
		case bytecode.OpConstantWide:
			idx := v.readU16()
			v.push(frame.chunk.Constant(int(idx)))
		case bytecode.OpLoadInt8:
			b := v.readByte()
			v.push(value.Int(int64(int8(b))))
		case bytecode.OpPop:
			v.pop()
		case bytecode.OpDup:
			v.push(v.peek(0))
		case bytecode.OpSwap:
			a, b := v.pop(), v.pop()
			v.push(a)
			v.push(b)

		case bytecode.OpAdd:
			v.binaryAdd()
		case bytecode.OpSub:
			v.binaryArith('-')
		case bytecode.OpMul:
			v.binaryArith('*')
		case bytecode.OpDiv:
			v.binaryArith('/')
		case bytecode.OpMod:
			v.binaryArith('%')
		case bytecode.OpNegate:
			v.unaryNegate()
		case bytecode.OpEqual:
			b, a := v.pop(), v.pop()
			v.push(value.Bool(value.Equal(a, b)))
		case bytecode.OpNotEqual:
			b, a := v.pop(), v.pop()
			v.push(value.Bool(!value.Equal(a, b)))
		case bytecode.OpLess:
			v.compare(func(c int) bool { return c < 0 })
		case bytecode.OpGreater:
			v.compare(func(c int) bool { return c > 0 })
		case bytecode.OpLessEqual:
			v.compare(func(c int) bool { return c <= 0 })
		case bytecode.OpGreaterEqual:
			v.compare(func(c int) bool { return c >= 0 })
		case bytecode.OpNot:
			a := v.pop()
			v.push(value.Bool(!a.IsTruthy()))
		case bytecode.OpAnd:
			b, a := v.pop(), v.pop()
			v.push(value.Bool(a.IsTruthy() && b.IsTruthy()))
		case bytecode.OpOr:
			b, a := v.pop(), v.pop()
			v.push(value.Bool(a.IsTruthy() || b.IsTruthy()))
		case bytecode.OpAddInt:
			b, a := v.pop(), v.pop()
			v.push(value.Int(a.I + b.I))
		case bytecode.OpSubInt:
			b, a := v.pop(), v.pop()
			v.push(value.Int(a.I - b.I))
		case bytecode.OpLessInt:
			b, a := v.pop(), v.pop()
			v.push(value.Bool(a.I < b.I))
		case bytecode.OpIncLocal:
			slot := int(v.readByte())
			s := frame.slotBase + slot
			v.stack[s].I++
		case bytecode.OpDecLocal:
			slot := int(v.readByte())
			s := frame.slotBase + slot
			v.stack[s].I--

		case bytecode.OpGetLocal:
			slot := int(v.readByte())
			v.push(v.stack[frame.slotBase+slot])
		case bytecode.OpSetLocal:
			slot := int(v.readByte())
			v.stack[frame.slotBase+slot] = v.peek(0)
		case bytecode.OpGetGlobal, bytecode.OpGetGlobalWide:
			name := v.readGlobalName(op)
			val, ok := v.globals.Get(name)
			if !ok {
				panic(v.runtimeError(errors.NameError, "undefined variable '%s'", name))
			}
			v.push(val)
		case bytecode.OpSetGlobal, bytecode.OpSetGlobalWide:
			name := v.readGlobalName(op)
			if !v.globals.Set(name, v.peek(0)) {
				panic(v.runtimeError(errors.NameError, "undefined variable '%s'", name))
			}
		case bytecode.OpDefineGlobal, bytecode.OpDefineGlobalWide:
			name := v.readGlobalName(op)
			v.globals.Define(name, v.pop())
		case bytecode.OpGetUpvalue:
			idx := int(v.readByte())
			v.push(frame.closure.Upvalues[idx].Get())
		case bytecode.OpSetUpvalue:
			idx := int(v.readByte())
			frame.closure.Upvalues[idx].Set(v.peek(0))
		case bytecode.OpCloseUpvalue:
			v.upvalues.closeFrom(v.sp - 1)
			v.pop()

		case bytecode.OpJump:
			off := v.readU16()
			frame.ip += int(int16(off))
		case bytecode.OpJumpIfFalse:
			off := v.readU16()
			if !v.peek(0).IsTruthy() {
				frame.ip += int(int16(off))
			}
		case bytecode.OpJumpIfTrue:
			off := v.readU16()
			if v.peek(0).IsTruthy() {
				frame.ip += int(int16(off))
			}
		case bytecode.OpJumpIfNotNil:
			off := v.readU16()
			if v.peek(0).Kind != value.KindNil {
				frame.ip += int(int16(off))
			}
		case bytecode.OpLoop:
			off := v.readU16()
			frame.ip -= int(off)

		case bytecode.OpCall:
			argc := int(v.readByte())
			v.call(argc)
		case bytecode.OpClosure:
			v.makeClosure()
		case bytecode.OpReturn:
			rv := v.doReturn()
			if len(v.frames) <= entryDepth {
				return rv, nil
			}
		case bytecode.OpInvoke:
			nameIdx := v.readU16()
			argc := int(v.readByte())
			name := frame.chunk.Constant(int(nameIdx)).AsString()
			v.invoke(name, argc, "")
		case bytecode.OpInvokeLocal:
			slot := int(v.readByte())
			nameIdx := v.readU16()
			argc := int(v.readByte())
			name := frame.chunk.Constant(int(nameIdx)).AsString()
			localName := frame.chunk.LocalNames[slot]
			v.invoke(name, argc, localName)
		case bytecode.OpInvokeGlobal:
			nameIdx := v.readU16()
			_ = v.readByte() // method_idx inline-cache slot, unused by this interpreter
			argc := int(v.readByte())
			name := frame.chunk.Constant(int(nameIdx)).AsString()
			v.invoke(name, argc, "")

		case bytecode.OpBuildArray:
			n := int(v.readU16())
			v.buildArray(n)
		case bytecode.OpArrayFlatten:
			v.flattenTop()
		case bytecode.OpBuildMap:
			n := int(v.readU16())
			v.buildMap(n)
		case bytecode.OpBuildSet:
			n := int(v.readU16())
			v.buildSet(n)
		case bytecode.OpBuildTuple:
			n := int(v.readU16())
			v.buildTuple(n)
		case bytecode.OpBuildRange:
			end, start := v.pop(), v.pop()
			v.push(value.NewRange(start.I, end.I))
		case bytecode.OpBuildStruct:
			v.buildStruct()
		case bytecode.OpBuildEnum:
			v.buildEnum()

		case bytecode.OpIndex:
			idx, coll := v.pop(), v.pop()
			v.push(v.indexGet(coll, idx))
		case bytecode.OpSetIndex:
			val, idx, coll := v.pop(), v.pop(), v.pop()
			v.indexSet(coll, idx, val)
			v.push(val)
		case bytecode.OpSetIndexLocal:
			slot := int(v.readByte())
			val, idx := v.pop(), v.pop()
			coll := v.stack[frame.slotBase+slot]
			v.indexSet(coll, idx, val)
			v.push(val)
		case bytecode.OpGetField:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			obj := v.pop()
			v.push(v.getField(obj, name))
		case bytecode.OpSetField:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			val, obj := v.pop(), v.pop()
			v.setField(obj, name, val)
			v.push(val)

		case bytecode.OpPushExceptionHandler:
			off := v.readU16()
			v.tryStack = append(v.tryStack, TryHandler{
				ResumeIP:   frame.ip + int(int16(off)),
				FrameDepth: len(v.frames) - 1,
				StackTop:   v.sp,
			})
		case bytecode.OpPopExceptionHandler:
			if len(v.tryStack) > 0 {
				v.tryStack = v.tryStack[:len(v.tryStack)-1]
			}
		case bytecode.OpThrow:
			thrown := v.pop()
			v.throwValue(thrown)
		case bytecode.OpTryUnwrap:
			v.tryUnwrap()

		case bytecode.OpDeferPush:
			thunk := v.pop()
			v.defers = append(v.defers, DeferEntry{FrameDepth: len(v.frames) - 1, Thunk: thunk})
		case bytecode.OpDeferRun:
			v.runDefers(len(v.frames) - 1)

		case bytecode.OpFreeze:
			a := v.pop()
			v.push(value.Freeze(a))
		case bytecode.OpThaw:
			a := v.pop()
			v.push(value.Thaw(a))
		case bytecode.OpClone:
			a := v.pop()
			v.push(value.Clone(a))
		case bytecode.OpMarkFluid:
			a := v.pop()
			v.push(value.MarkFluid(a))
		case bytecode.OpSublimate:
			a := v.pop()
			v.push(value.Sublimate(a))
		case bytecode.OpFreezeVar:
			v.phaseVarOp(value.Freeze)
		case bytecode.OpThawVar:
			v.phaseVarOp(value.Thaw)
		case bytecode.OpSublimateVar:
			v.phaseVarOp(value.Sublimate)
		// name/kind/slot operands are consumed inside phaseVarOp itself,
		// via the same readU16/readByte helpers every other operand
		// decode uses (§4.1 "name=.. kind=.. slot=..").

		case bytecode.OpReact:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			cb := v.pop()
			v.phase.react(name, cb)
		case bytecode.OpUnreact:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			v.phase.unreact(name)
		case bytecode.OpBond:
			targetIdx := int(v.readByte())
			target := frame.chunk.Constant(targetIdx).AsString()
			strategyVal, depVal := v.pop(), v.pop()
			v.phase.bond(target, depVal.AsString(), bondStrategyFromString(strategyVal.AsString()))
		case bytecode.OpUnbond:
			target := v.pop().AsString()
			v.phase.unbond(target)
		case bytecode.OpSeed:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			contract := v.pop()
			v.phase.seed(name, contract)
		case bytecode.OpUnseed:
			name := v.pop().AsString()
			v.phase.unseed(name)
		case bytecode.OpTrack:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			val, _ := v.globals.Get(name)
			v.phase.track(name, val, v.currentLine(), frame.function)
		case bytecode.OpPressurize:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			mode := v.pop().AsString()
			v.phase.pressurize(name, PressureMode(mode))
		case bytecode.OpDepressurize:
			name := v.pop().AsString()
			v.phase.depressurize(name)
		case bytecode.OpGrow:
			nameIdx := int(v.readByte())
			name := frame.chunk.Constant(nameIdx).AsString()
			v.grow(name)

		case bytecode.OpScope:
			v.runScope()
		case bytecode.OpSelect:
			v.runSelect()
		case bytecode.OpChannelNew:
			v.push(value.NewChannel())
		case bytecode.OpChannelSend:
			val, ch := v.pop(), v.pop()
			v.channelSend(ch, val)
		case bytecode.OpChannelRecv:
			ch := v.pop()
			val, ok := v.channelRecv(ch)
			v.push(val)
			v.push(value.Bool(ok))

		case bytecode.OpPrint:
			argc := int(v.readByte())
			v.doPrint(argc)
		case bytecode.OpImport:
			pathIdx := int(v.readByte())
			path := frame.chunk.Constant(pathIdx).AsString()
			exports, err := v.doImport(path)
			if err != nil {
				panic(v.runtimeError(errors.ImportError, "%s", err.Error()))
			}
			v.push(exports)
		case bytecode.OpRequire:
			pathIdx := int(v.readByte())
			path := frame.chunk.Constant(pathIdx).AsString()
			if err := v.doRequire(path); err != nil {
				panic(v.runtimeError(errors.ImportError, "%s", err.Error()))
			}
			v.push(value.Unit())

		case bytecode.OpHalt:
			if v.sp > 0 {
				return v.pop(), nil
			}
			return value.Nil(), nil

		default:
			panic(v.runtimeError(errors.TypeError, "unknown opcode %d", op))
		}
	}
}

func (v *VM) readByte() byte {
	f := v.currentFrame()
	b := f.chunk.Code[f.ip]
	f.ip++
	return b
}

func (v *VM) readU16() uint16 {
	f := v.currentFrame()
	hi, lo := f.chunk.Code[f.ip], f.chunk.Code[f.ip+1]
	f.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (v *VM) readGlobalName(op bytecode.OpCode) string {
	f := v.currentFrame()
	switch op {
	case bytecode.OpGetGlobalWide, bytecode.OpSetGlobalWide, bytecode.OpDefineGlobalWide:
		idx := v.readU16()
		return f.chunk.Constant(int(idx)).AsString()
	default:
		idx := v.readByte()
		return f.chunk.Constant(int(idx)).AsString()
	}
}

func bondStrategyFromString(s string) bytecode.BondStrategy {
	switch s {
	case "inverse":
		return bytecode.BondInverse
	case "gate":
		return bytecode.BondGate
	default:
		return bytecode.BondMirror
	}
}

func (v *VM) binaryAdd() {
	b, a := v.pop(), v.pop()
	if a.Kind == value.KindString && b.Kind == value.KindString {
		v.push(value.Str(a.AsString() + b.AsString()))
		return
	}
	v.push(v.numeric(a, b, '+'))
}

func (v *VM) binaryArith(op byte) {
	b, a := v.pop(), v.pop()
	v.push(v.numeric(a, b, op))
}

func (v *VM) numeric(a, b value.Value, op byte) value.Value {
	if a.Kind != value.KindInt && a.Kind != value.KindFloat ||
		b.Kind != value.KindInt && b.Kind != value.KindFloat {
		panic(v.runtimeError(errors.TypeError, "operands must be numbers for '%c'", op))
	}
	bothInt := a.Kind == value.KindInt && b.Kind == value.KindInt
	if bothInt {
		switch op {
		case '+':
			return value.Int(a.I + b.I)
		case '-':
			return value.Int(a.I - b.I)
		case '*':
			return value.Int(a.I * b.I)
		case '/':
			if b.I == 0 {
				panic(v.runtimeError(errors.ArithmeticError, "division by zero"))
			}
			return value.Int(a.I / b.I)
		case '%':
			if b.I == 0 {
				panic(v.runtimeError(errors.ArithmeticError, "division by zero"))
			}
			return value.Int(a.I % b.I)
		}
	}
	fa, fb := toFloat(a), toFloat(b)
	switch op {
	case '+':
		return value.Float(fa + fb)
	case '-':
		return value.Float(fa - fb)
	case '*':
		return value.Float(fa * fb)
	case '/':
		return value.Float(fa / fb)
	case '%':
		return value.Float(math.Mod(fa, fb))
	}
	panic(v.runtimeError(errors.TypeError, "unsupported arithmetic op"))
}

func toFloat(v value.Value) float64 {
	if v.Kind == value.KindInt {
		return float64(v.I)
	}
	return v.F
}

func (v *VM) unaryNegate() {
	a := v.pop()
	switch a.Kind {
	case value.KindInt:
		v.push(value.Int(-a.I))
	case value.KindFloat:
		v.push(value.Float(-a.F))
	default:
		panic(v.runtimeError(errors.TypeError, "operand must be a number for unary '-'"))
	}
}

func (v *VM) compare(accept func(int) bool) {
	b, a := v.pop(), v.pop()
	if !isOrderable(a) || !isOrderable(b) {
		panic(v.runtimeError(errors.TypeError, "operands not comparable"))
	}
	v.push(value.Bool(accept(value.Compare(a, b))))
}

func isOrderable(v value.Value) bool {
	return v.Kind == value.KindInt || v.Kind == value.KindFloat || v.Kind == value.KindString
}

func (v *VM) doPrint(argc int) {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = v.pop()
	}
	for i, a := range args {
		if i > 0 {
			v.writeOut(" ")
		}
		v.writeOut(a.String())
	}
	v.writeOut("\n")
}
