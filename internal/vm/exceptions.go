package vm

import (
	"lattice/internal/errors"
	"lattice/internal/value"
)

// throwValue raises a user-level exception. It funnels through the
// same Go panic(*errors.LatticeError) that every other runtime fault
// uses, so a single recover path in dispatch() handles both (§4.5,
// §7: "a single, unified error value...delivered through the same
// unwinding routine regardless of cause").
func (v *VM) throwValue(thrown value.Value) {
	le := errors.New(errors.UserThrown, thrown.String(), v.currentLine())
	le.Thrown = &thrown
	panic(v.runtimeErrorFrom(le))
}

// runtimeErrorFrom attaches the current call stack to an
// already-constructed error, the way runtimeError does for
// freshly-raised faults.
func (v *VM) runtimeErrorFrom(le *errors.LatticeError) *errors.LatticeError {
	for i := len(v.frames) - 1; i >= 0; i-- {
		f := v.frames[i]
		ip := f.ip - 1
		if ip < 0 {
			ip = 0
		}
		le.AddStackFrame(f.function, f.chunk.LineAt(ip))
	}
	return le
}

// unwindToHandler pops the innermost registered try handler, runs any
// defers registered in frames being unwound past, truncates the frame
// and value stacks back to where the handler was installed, and
// resumes execution at its catch body with the caught value pushed on
// top of the stack (§4.5).
func (v *VM) unwindToHandler(le *errors.LatticeError) {
	h := v.tryStack[len(v.tryStack)-1]
	v.tryStack = v.tryStack[:len(v.tryStack)-1]

	for d := len(v.frames) - 1; d > h.FrameDepth; d-- {
		v.runDefers(d)
		v.upvalues.closeFrom(v.frames[d].slotBase)
	}
	v.runDefers(h.FrameDepth)

	v.frames = v.frames[:h.FrameDepth+1]
	v.sp = h.StackTop
	v.currentFrame().ip = h.ResumeIP
	v.push(le.AsRuntimeValue())
}

// tryUnwrap implements the `?`-style Result unwrap: an Err variant
// re-raises as a thrown value, an Ok variant unwraps its payload,
// anything else passes through unchanged (§6 supplemented feature).
func (v *VM) tryUnwrap() {
	val := v.pop()
	if val.Kind == value.KindEnum {
		e := val.Obj.(*value.EnumObj)
		switch e.VariantName {
		case "Err":
			var payload value.Value
			if len(e.Payload) > 0 {
				payload = e.Payload[0]
			} else {
				payload = value.Nil()
			}
			v.throwValue(payload)
			return
		case "Ok":
			if len(e.Payload) > 0 {
				v.push(e.Payload[0])
				return
			}
			v.push(value.Unit())
			return
		}
	}
	v.push(val)
}
