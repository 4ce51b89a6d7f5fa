package vm

import (
	"lattice/internal/bytecode"
	"lattice/internal/value"
)

// Frame is a single activation record: instruction pointer, base stack
// slot and the closure being executed (for its upvalues and, for
// compiled closures, its chunk) (§3 "CallFrame").
type Frame struct {
	ip         int
	chunk      *bytecode.Chunk
	closure    *value.ClosureObj
	slotBase   int
	returnBase int // stack index to truncate to on return (where the callee sat)
	function   string // display name, for stack traces
}

// TryHandler records a registered exception handler (§4.5).
type TryHandler struct {
	ResumeIP   int
	FrameDepth int
	StackTop   int
	CatchSlot  int // not set or read: unwindToHandler pushes the caught value and the catch body's OpSetLocal binds it
}

// DeferEntry records a deferred zero-argument closure awaiting LIFO
// execution on frame exit (§4.5).
type DeferEntry struct {
	FrameDepth int
	Thunk      value.Value
}
