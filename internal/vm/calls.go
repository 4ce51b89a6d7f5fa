package vm

import (
	"lattice/internal/bytecode"
	"lattice/internal/errors"
	"lattice/internal/value"
)

// call implements the `call` opcode's calling convention: argc values
// sit on top of the stack above the callee itself (§4.3 "Calls").
func (v *VM) call(argc int) {
	calleeIdx := v.sp - argc - 1
	v.enterClosureValue(v.stack[calleeIdx], argc, calleeIdx)
}

func (v *VM) enterClosureValue(callee value.Value, argc, calleeIdx int) {
	if callee.Kind != value.KindClosure {
		panic(v.runtimeError(errors.TypeError, "'%s' is not callable", callee.TypeName()))
	}
	cl := callee.Obj.(*value.ClosureObj)
	v.enterClosure(cl, argc, calleeIdx)
}

// enterClosure dispatches to a native Go implementation or pushes a new
// call frame over a compiled chunk, per the closure's NativeKind (§6).
func (v *VM) enterClosure(cl *value.ClosureObj, argc, calleeIdx int) {
	switch cl.Kind {
	case value.KindVMNative:
		args := make([]value.Value, argc)
		copy(args, v.stack[calleeIdx+1:calleeIdx+1+argc])
		v.sp = calleeIdx
		result, err := cl.Native(args)
		if err != nil {
			panic(v.nativeError(err))
		}
		v.push(result)
	case value.KindExtNative:
		// Routed through the same Native field, but only ever reaches
		// one built by require_ext, which closes over cl.ExtAdapter and
		// does the host/guest conversion there (extension.go) — the
		// "distinct adapter" §6 requires extension calls to go through,
		// as opposed to a vm_native's direct Go call above.
		if cl.ExtAdapter == nil {
			panic(v.runtimeError(errors.TypeError, "'%s' has no extension adapter", cl.Name))
		}
		args := make([]value.Value, argc)
		copy(args, v.stack[calleeIdx+1:calleeIdx+1+argc])
		v.sp = calleeIdx
		result, err := cl.Native(args)
		if err != nil {
			panic(v.nativeError(err))
		}
		v.push(result)
	default:
		v.adjustArgs(cl, argc, calleeIdx)
		chunk, ok := cl.Body.(*bytecode.Chunk)
		if !ok {
			panic(v.runtimeError(errors.TypeError, "closure '%s' has no compiled body", cl.Name))
		}
		if len(v.frames) >= v.maxFrames {
			panic(v.runtimeError(errors.StackOverflow, "call stack overflow"))
		}
		v.frames = append(v.frames, Frame{
			chunk:      chunk,
			closure:    cl,
			slotBase:   calleeIdx + 1,
			returnBase: calleeIdx,
			function:   cl.Name,
		})
	}
}

// adjustArgs pads missing optional parameters with their declared
// defaults and packs a variadic tail into a trailing array local, so
// every compiled body sees exactly arity(+1) locals regardless of how
// many arguments the caller actually supplied (§4.3, §6).
func (v *VM) adjustArgs(cl *value.ClosureObj, argc, calleeIdx int) {
	arity := cl.Arity
	if cl.HasVariadic {
		if argc < arity {
			panic(v.runtimeError(errors.ArityError, "%s expects at least %d arguments, got %d", cl.Name, arity, argc))
		}
		rest := append([]value.Value(nil), v.stack[calleeIdx+1+arity:calleeIdx+1+argc]...)
		v.sp = calleeIdx + 1 + arity
		v.push(value.NewArray(rest))
		return
	}
	if argc > arity {
		panic(v.runtimeError(errors.ArityError, "%s expects %d arguments, got %d", cl.Name, arity, argc))
	}
	for i := argc; i < arity; i++ {
		if i < len(cl.DefaultValues) && cl.DefaultValues[i].Kind != value.KindNil {
			v.push(value.Clone(cl.DefaultValues[i]))
		} else {
			v.push(value.Nil())
		}
	}
}

// doReturn pops the return value, closes every upvalue captured from
// the returning frame's locals, unwinds the frame and restores sp to
// where the callee sat (§4.3, §9 "close-on-scope-exit").
func (v *VM) doReturn() value.Value {
	rv := v.pop()
	frame := v.currentFrame()
	v.upvalues.closeFrom(frame.slotBase)
	base := frame.returnBase
	v.frames = v.frames[:len(v.frames)-1]
	v.sp = base
	if len(v.frames) > 0 {
		v.push(rv)
	}
	return rv
}

// makeClosure builds a live ClosureObj from the chunk template sitting
// in the constant pool, resolving each upvalue descriptor against
// either the enclosing frame's own open upvalues or one already closed
// over by the currently-executing closure (§3, §9).
func (v *VM) makeClosure() {
	frame := v.currentFrame()
	constIdx := v.readU16()
	upvalCount := int(v.readByte())
	template := frame.chunk.Constant(int(constIdx)).Obj.(*value.ClosureObj)
	cl := &value.ClosureObj{
		Name:          template.Name,
		Kind:          template.Kind,
		Arity:         template.Arity,
		HasVariadic:   template.HasVariadic,
		ParamNames:    template.ParamNames,
		DefaultValues: template.DefaultValues,
		ParamPhases:   template.ParamPhases,
		Body:          template.Body,
		Upvalues:      make([]*value.Upvalue, upvalCount),
	}
	for i := 0; i < upvalCount; i++ {
		isLocal := v.readByte()
		index := int(v.readByte())
		if isLocal != 0 {
			cl.Upvalues[i] = v.upvalues.capture(v.stack, frame.slotBase+index)
		} else {
			cl.Upvalues[i] = frame.closure.Upvalues[index]
		}
	}
	v.push(value.NewClosure(cl))
}

// callValue invokes fn (expected to be a closure) with args and runs
// it to completion, whether it's compiled or native — used anywhere
// the VM itself needs to call back into Lattice code: deferred
// thunks, seed contracts, phase reactions and bond cascades.
func (v *VM) callValue(fn value.Value, args []value.Value) (value.Value, error) {
	if fn.Kind != value.KindClosure {
		return value.Value{}, errors.New(errors.TypeError, "value is not callable", v.currentLine())
	}
	calleeIdx := v.sp
	v.push(fn)
	for _, a := range args {
		v.push(a)
	}
	cl := fn.Obj.(*value.ClosureObj)
	framesBefore := len(v.frames)
	v.enterClosure(cl, len(args), calleeIdx)
	if len(v.frames) > framesBefore {
		return v.dispatch()
	}
	return v.pop(), nil
}

func (v *VM) nativeError(err error) *errors.LatticeError {
	if le, ok := err.(*errors.LatticeError); ok {
		return le
	}
	return v.runtimeError(errors.TypeError, "%s", err.Error())
}

// invoke implements `invoke`/`invoke_local`/`invoke_global`: look up a
// built-in method on the receiver's kind first, then fall back to a
// `TypeName::method` global function (§ method dispatch table). The
// localHint (declared local name of the receiver, if any) lets the
// phase-pressure check report which tracked variable is being mutated.
func (v *VM) invoke(name string, argc int, localHint string) {
	calleeIdx := v.sp - argc - 1
	receiver := v.stack[calleeIdx]
	if m, ok := lookupMethod(receiver.Kind, name); ok {
		args := make([]value.Value, argc)
		copy(args, v.stack[calleeIdx+1:calleeIdx+1+argc])
		if err := checkMethodPressure(v, receiver, name, localHint); err != nil {
			panic(v.nativeError(err))
		}
		v.sp = calleeIdx
		result, err := m(v, receiver, args)
		if err != nil {
			panic(v.nativeError(err))
		}
		v.push(result)
		return
	}
	fqName := receiver.TypeName() + "::" + name
	if fn, ok := v.globals.Get(fqName); ok {
		v.stack[calleeIdx] = fn
		v.call(argc)
		return
	}
	panic(v.runtimeError(errors.NameError, "no method '%s' on %s", name, receiver.TypeName()))
}
